/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const gameChannelPrefix = "game_channel::"
const gameChannelPattern = gameChannelPrefix + "*"

// Router publishes BroadcastChunks to the store's pub/sub so every
// node serving this game's sockets sees them, and it runs one
// subscription per process that fans chunks back out to local Hubs.
// HaltTimer pacing happens on the subscriber side: each chunk's
// messages are delivered to the Hub as soon as they arrive, but a
// HaltTimer message blocks the per-game drain worker until its
// EndTimestampMs, so a client can never observe a later event before
// the timer it was told to wait out elapses.
type Router struct {
	store Store
	now   func() int64

	mu      sync.Mutex
	workers map[string]*gameDrain
}

func NewRouter(store Store, now func() int64) *Router {
	return &Router{store: store, now: now, workers: make(map[string]*gameDrain)}
}

// Publish sends one chunk of events for gameID to every subscribed node.
func (r *Router) Publish(ctx context.Context, chunk BroadcastChunk) error {
	raw, err := json.Marshal(chunk)
	if err != nil {
		return internalError(err.Error())
	}
	if err := r.store.Publish(ctx, gameChannelPrefix+chunk.GameID, string(raw)); err != nil {
		return internalError(err.Error())
	}
	return nil
}

// deliverFunc hands one already-paced GameMessage off to local
// subscribers (the registry wires this to a Hub's Broadcast/Send).
type deliverFunc func(gameID, playerID string, msg GameMessage)

// Run subscribes to every game's channel and dispatches chunks to
// per-game drain workers until ctx is cancelled.
func (r *Router) Run(ctx context.Context, deliver deliverFunc) error {
	sub, err := r.store.PSubscribe(ctx, gameChannelPattern)
	if err != nil {
		return internalError(err.Error())
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			var chunk BroadcastChunk
			if err := json.Unmarshal([]byte(msg.Payload), &chunk); err != nil {
				continue
			}
			r.drainFor(chunk.GameID, deliver).enqueue(chunk)
		}
	}
}

// drainFor returns (creating if needed) the single drain worker
// responsible for pacing this game's chunks.
func (r *Router) drainFor(gameID string, deliver deliverFunc) *gameDrain {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.workers[gameID]
	if !ok {
		d = newGameDrain(gameID, r.now, deliver)
		r.workers[gameID] = d
	}
	return d
}

// StopGame tears down the drain worker for a finished game.
func (r *Router) StopGame(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.workers[gameID]; ok {
		d.stop()
		delete(r.workers, gameID)
	}
}

// gameDrain is the per-game pacing worker: it processes chunks one at
// a time, in order, sleeping out any HaltTimer it encounters before
// delivering the next message.
type gameDrain struct {
	gameID  string
	now     func() int64
	deliver deliverFunc

	chunks chan BroadcastChunk
	done   chan struct{}
	once   sync.Once
}

func newGameDrain(gameID string, now func() int64, deliver deliverFunc) *gameDrain {
	d := &gameDrain{
		gameID:  gameID,
		now:     now,
		deliver: deliver,
		chunks:  make(chan BroadcastChunk, hubBuffer),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *gameDrain) enqueue(chunk BroadcastChunk) {
	select {
	case d.chunks <- chunk:
	case <-d.done:
	default:
		// A saturated drain worker drops the chunk rather than block
		// the subscription's single reader.
	}
}

func (d *gameDrain) stop() {
	d.once.Do(func() { close(d.done) })
}

func (d *gameDrain) run() {
	for {
		select {
		case <-d.done:
			return
		case chunk := <-d.chunks:
			for _, msg := range chunk.Messages {
				if chunk.PlayerID != "" {
					d.deliver(chunk.GameID, chunk.PlayerID, msg)
				} else {
					d.deliver(chunk.GameID, "", msg)
				}
				if msg.Type == MsgHaltTimer {
					d.waitUntil(msg.EndTimestampMs)
				}
			}
		}
	}
}

// waitUntil blocks the drain worker until the wall clock reaches
// endMs, or until the worker is stopped.
func (d *gameDrain) waitUntil(endMs int64) {
	remaining := endMs - d.now()
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(time.Duration(remaining) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.done:
	}
}
