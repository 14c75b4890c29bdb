/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PubSubMessage is one delivered (channel, payload) pair from a
// subscription.
type PubSubMessage struct {
	Channel string
	Payload string
}

// Subscription is a lazy stream of PubSubMessages plus a way to close it.
type Subscription interface {
	Channel() <-chan PubSubMessage
	Close() error
}

// Store is the typed wrapper over the shared key-value store: string
// get/set/del/exists, counters, lists, hashes, sets, pattern
// scan/delete, and pub/sub. Both RedisStore (production) and
// memStore (tests) satisfy this interface — the one place this service
// treats the backing store as swappable.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)

	RPush(ctx context.Context, key string, value string) error
	LPush(ctx context.Context, key string, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, count int64, value string) error

	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	DeletePattern(ctx context.Context, pattern string) error

	Publish(ctx context.Context, channel, payload string) error
	PSubscribe(ctx context.Context, pattern string) (Subscription, error)
}

// StoreError wraps a failure from the backing store so callers can
// use errors.As without depending on the underlying driver's types.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return storeErr("ping", s.client.Ping(ctx).Err())
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return storeErr("set", s.client.Set(ctx, key, value, 0).Err())
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return storeErr("del", s.client.Del(ctx, keys...).Err())
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, storeErr("exists", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	return n, storeErr("incr", err)
}

func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Decr(ctx, key).Result()
	return n, storeErr("decr", err)
}

func (s *RedisStore) RPush(ctx context.Context, key string, value string) error {
	return storeErr("rpush", s.client.RPush(ctx, key, value).Err())
}

func (s *RedisStore) LPush(ctx context.Context, key string, value string) error {
	return storeErr("lpush", s.client.LPush(ctx, key, value).Err())
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := s.client.LRange(ctx, key, start, stop).Result()
	return v, storeErr("lrange", err)
}

func (s *RedisStore) LRem(ctx context.Context, key string, count int64, value string) error {
	return storeErr("lrem", s.client.LRem(ctx, key, count, value).Err())
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return storeErr("hset", s.client.HSet(ctx, key, field, value).Err())
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("hget", err)
	}
	return v, true, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := s.client.HGetAll(ctx, key).Result()
	return v, storeErr("hgetall", err)
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return storeErr("hdel", s.client.HDel(ctx, key, fields...).Err())
}

func (s *RedisStore) SAdd(ctx context.Context, key, member string) error {
	return storeErr("sadd", s.client.SAdd(ctx, key, member).Err())
}

func (s *RedisStore) SRem(ctx context.Context, key, member string) error {
	return storeErr("srem", s.client.SRem(ctx, key, member).Err())
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := s.client.SMembers(ctx, key).Result()
	return v, storeErr("smembers", err)
}

func (s *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, storeErr("scan", err)
	}
	return keys, nil
}

func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := s.ScanKeys(ctx, pattern)
	if err != nil {
		return err
	}
	return s.Del(ctx, keys...)
}

func (s *RedisStore) Publish(ctx context.Context, channel, payload string) error {
	return storeErr("publish", s.client.Publish(ctx, channel, payload).Err())
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan PubSubMessage
	cancel context.CancelFunc
}

func (r *redisSubscription) Channel() <-chan PubSubMessage {
	return r.ch
}

func (r *redisSubscription) Close() error {
	r.cancel()
	return r.pubsub.Close()
}

func (s *RedisStore) PSubscribe(ctx context.Context, pattern string) (Subscription, error) {
	pubsub := s.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, storeErr("psubscribe", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan PubSubMessage, 256),
		cancel: cancel,
	}

	go func() {
		defer close(sub.ch)
		redisCh := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case sub.ch <- PubSubMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}
