package command

import (
	"testing"
	"time"
)

func TestConversationLifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := NewConversationStore(time.Minute, clock.Now)

	store.Begin("a", AwaitRejectionReason, "42")
	conv, ok := store.Peek("a")
	if !ok || conv.PendingTicketNumber != "42" {
		t.Fatalf("expected live dialogue, got %+v %v", conv, ok)
	}
	if _, ok := store.Consume("a"); !ok {
		t.Fatalf("expected consume to return the dialogue")
	}
	if _, ok := store.Peek("a"); ok {
		t.Fatalf("consumed dialogue should be gone")
	}
}

func TestConversationExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := NewConversationStore(time.Minute, clock.Now)
	store.Begin("a", AwaitSubmissionForm, "")
	store.Begin("b", AwaitSubmissionForm, "")

	clock.now = clock.now.Add(30 * time.Second)
	store.Begin("b", AwaitSubmissionForm, "")

	clock.now = clock.now.Add(45 * time.Second)
	if _, ok := store.Peek("a"); ok {
		t.Fatalf("dialogue a should have expired")
	}
	if _, ok := store.Peek("b"); !ok {
		t.Fatalf("refreshed dialogue b should still be live")
	}

	clock.now = clock.now.Add(time.Minute)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to drop 1 dialogue, dropped %d", removed)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}
