package notifications

import (
	"testing"
	"time"
)

func TestService_NotifyReachesSubscribers(t *testing.T) {
	s := NewService()
	a, unsubA := s.Subscribe()
	defer unsubA()
	b, unsubB := s.Subscribe()
	defer unsubB()

	s.NotifyTodosChanged(TodoChange{Operation: "insert", ID: 1, Offset: 7})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case ev := <-ch:
			if ev.Type != EventTodosChanged {
				t.Errorf("type = %q, want %q", ev.Type, EventTodosChanged)
			}
			if ev.Timestamp == 0 {
				t.Error("timestamp not set")
			}
			change, ok := ev.Data.(TodoChange)
			if !ok || change.Offset != 7 {
				t.Errorf("data = %#v", ev.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestService_UnsubscribeIsIdempotent(t *testing.T) {
	s := NewService()
	ch, unsub := s.Subscribe()

	if got := s.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
	if got := s.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}
}

func TestService_FullChannelDoesNotBlock(t *testing.T) {
	s := NewService()
	_, unsub := s.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.NotifyTodosChanged(TodoChange{Operation: "update", ID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full subscriber")
	}
}

func TestService_ShutdownClosesSubscribers(t *testing.T) {
	s := NewService()
	ch, unsub := s.Subscribe()

	s.Shutdown()
	s.Shutdown()
	unsub()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after shutdown")
	}

	late, _ := s.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after shutdown should return a closed channel")
	}
}
