package main

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRouterDeliversPublishedChunk(t *testing.T) {
	store := newMemStore()
	router := NewRouter(store, func() int64 { return time.Now().UnixMilli() })

	var mu sync.Mutex
	var received []GameMessage
	delivered := make(chan struct{}, 4)

	deliver := func(gameID, playerID string, msg GameMessage) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		delivered <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- router.Run(ctx, deliver) }()

	// Give the subscription time to register before publishing.
	time.Sleep(20 * time.Millisecond)

	chunk := BroadcastChunk{GameID: "g1", Messages: []GameMessage{chatMessage("alice", "hi")}}
	if err := router.Publish(ctx, chunk); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || received[0].Message != "hi" {
		t.Fatalf("unexpected delivered messages: %+v", received)
	}
}

func TestGameDrainWaitsOutHaltTimer(t *testing.T) {
	var now int64 = 1000
	clock := func() int64 { return now }

	var mu sync.Mutex
	var order []string
	delivered := make(chan struct{}, 4)

	deliver := func(gameID, playerID string, msg GameMessage) {
		mu.Lock()
		order = append(order, msg.Type)
		mu.Unlock()
		delivered <- struct{}{}
	}

	d := newGameDrain("g1", clock, deliver)
	defer d.stop()

	d.enqueue(BroadcastChunk{
		GameID: "g1",
		Messages: []GameMessage{
			haltTimer(now+50, ReasonDraftPickShowcase),
			teamDraft(TeamDraftMessage{MsgType: TDNextDrafter, DrafterID: "p2"}),
		},
	})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the halt timer message itself")
	}

	// The second message must not arrive until the halt timer's
	// deadline has actually elapsed.
	select {
	case <-delivered:
		t.Fatalf("NextDrafter delivered before the halt timer elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the paced message")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != MsgHaltTimer || order[1] != MsgTeamDraft {
		t.Fatalf("unexpected delivery order: %+v", order)
	}
}
