/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// memStore is an in-process Store implementation satisfying the same
// interface as RedisStore, used by this package's own tests. Mirrors
// the pattern seen in jaminalder-codex-tic-tac-toe's tests constructing
// a service directly against an in-memory collaborator.
type memStore struct {
	mu       sync.Mutex
	strings  map[string]string
	lists    map[string][]string
	hashes   map[string]map[string]string
	sets     map[string]map[string]bool
	subs     map[string][]*memSubscription
}

func newMemStore() *memStore {
	return &memStore{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]bool),
		subs:    make(map[string][]*memSubscription),
	}
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.strings, k)
		delete(m.lists, k)
		delete(m.hashes, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strings[key]; ok {
		return true, nil
	}
	if _, ok := m.hashes[key]; ok {
		return true, nil
	}
	if _, ok := m.lists[key]; ok {
		return true, nil
	}
	return false, nil
}

func (m *memStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.strings[key], 10, 64)
	n++
	m.strings[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memStore) Decr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.strings[key], 10, 64)
	n--
	m.strings[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memStore) RPush(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], value)
	return nil
}

func (m *memStore) LPush(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *memStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	n := int64(len(list))
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *memStore) LRem(_ context.Context, key string, count int64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	out := list[:0]
	removed := int64(0)
	for _, v := range list {
		if v == value && (count == 0 || removed < count) {
			removed++
			continue
		}
		out = append(out, v)
	}
	m.lists[key] = out
	return nil
}

func (m *memStore) HSet(_ context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *memStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	return nil
}

func (m *memStore) SAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]bool)
		m.sets[key] = s
	}
	s[member] = true
	return nil
}

func (m *memStore) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[key], member)
	return nil
}

func (m *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for k := range m.sets[key] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		if ok, _ := filepath.Match(pattern, k); ok && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range m.strings {
		add(k)
	}
	for k := range m.hashes {
		add(k)
	}
	for k := range m.lists {
		add(k)
	}
	for k := range m.sets {
		add(k)
	}
	return out, nil
}

func (m *memStore) DeletePattern(ctx context.Context, pattern string) error {
	keys, err := m.ScanKeys(ctx, pattern)
	if err != nil {
		return err
	}
	return m.Del(ctx, keys...)
}

type memSubscription struct {
	ch     chan PubSubMessage
	closed bool
}

func (s *memSubscription) Channel() <-chan PubSubMessage {
	return s.ch
}

func (s *memSubscription) Close() error {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Publish delivers to every subscription whose pattern matches channel,
// mirroring Redis PSUBSCRIBE glob semantics closely enough for tests.
func (m *memStore) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pattern, subs := range m.subs {
		ok, _ := filepath.Match(pattern, channel)
		if !ok {
			continue
		}
		for _, s := range subs {
			if s.closed {
				continue
			}
			select {
			case s.ch <- PubSubMessage{Channel: channel, Payload: payload}:
			default:
			}
		}
	}
	return nil
}

func (m *memStore) PSubscribe(_ context.Context, pattern string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &memSubscription{ch: make(chan PubSubMessage, 256)}
	m.subs[pattern] = append(m.subs[pattern], sub)
	return sub, nil
}
