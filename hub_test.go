package main

import "testing"

func TestHubBroadcastDeliversToAllSubscribers(t *testing.T) {
	h := newHub("g1")
	a := h.Subscribe("p1")
	b := h.Subscribe("p2")

	h.Broadcast(chatMessage("alice", "hi"))

	for _, ch := range []<-chan WebSocketMessage{a, b} {
		select {
		case msg := <-ch:
			if msg.Message.Message != "hi" {
				t.Fatalf("unexpected message: %+v", msg)
			}
		default:
			t.Fatalf("expected a message to be waiting")
		}
	}
}

func TestHubSendTargetsOnePlayer(t *testing.T) {
	h := newHub("g1")
	a := h.Subscribe("p1")
	b := h.Subscribe("p2")

	h.Send("p1", chatMessage("alice", "just for you"))

	select {
	case <-a:
	default:
		t.Fatalf("expected p1 to receive the targeted message")
	}
	select {
	case <-b:
		t.Fatalf("p2 should not have received the targeted message")
	default:
	}
}

func TestHubBroadcastDropsWhenMailboxFull(t *testing.T) {
	h := newHub("g1")
	ch := h.Subscribe("p1")

	for i := 0; i < hubBuffer+10; i++ {
		h.Broadcast(chatMessage("alice", "spam"))
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != hubBuffer {
				t.Fatalf("expected exactly %d delivered messages, got %d", hubBuffer, count)
			}
			return
		}
	}
}

func TestHubUnsubscribeOnlyRemovesMatchingChannel(t *testing.T) {
	h := newHub("g1")
	first := h.Subscribe("p1")
	second := h.Subscribe("p1") // simulate a reconnect superseding the old mailbox

	h.Unsubscribe("p1", first)
	if h.Empty() {
		t.Fatalf("expected the superseding subscription to remain registered")
	}

	h.Unsubscribe("p1", second)
	if !h.Empty() {
		t.Fatalf("expected the hub to be empty after unsubscribing the live mailbox")
	}
}

func TestHubRemoveUnconditionally(t *testing.T) {
	h := newHub("g1")
	h.Subscribe("p1")
	h.Remove("p1")
	if !h.Empty() {
		t.Fatalf("expected Remove to drop the mailbox regardless of channel identity")
	}
}
