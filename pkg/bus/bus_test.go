package bus

import (
	"context"
	"testing"
	"time"
)

func TestEventFanout(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx := context.Background()
	eventsA, unsubA := b.Subscribe(ctx, 1)
	defer unsubA()
	eventsB, unsubB := b.Subscribe(ctx, 1)
	defer unsubB()

	event := Event{Type: EventMessageReceived, RequestID: "1", Channel: "whatsapp"}
	if ok := b.Publish(ctx, event); !ok {
		t.Fatal("expected event publish to succeed")
	}

	for name, events := range map[string]<-chan Event{"A": eventsA, "B": eventsB} {
		select {
		case got := <-events:
			if got.Type != EventMessageReceived {
				t.Fatalf("subscriber %s event type = %q, want %q", name, got.Type, EventMessageReceived)
			}
			if got.At.IsZero() {
				t.Fatalf("subscriber %s expected timestamp to be set", name)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("subscriber %s did not receive event", name)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx := context.Background()
	events, unsubscribe := b.Subscribe(ctx, 1)
	defer unsubscribe()

	if ok := b.Publish(ctx, Event{Type: EventMessageReceived}); !ok {
		t.Fatal("expected first event publish to succeed")
	}

	start := time.Now()
	if ok := b.Publish(ctx, Event{Type: EventReplySent}); !ok {
		t.Fatal("expected second event publish to succeed")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("publish blocked on slow subscriber")
	}

	select {
	case <-events:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected at least one event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx := context.Background()
	events, unsubscribe := b.Subscribe(ctx, 1)
	unsubscribe()
	unsubscribe()

	if ok := b.Publish(ctx, Event{Type: EventCatalogUpdated}); !ok {
		t.Fatal("expected event publish to succeed")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event channel close after unsubscribe")
	}
}

func TestContextCancellationUnsubscribes(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := b.Subscribe(ctx, 1)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("subscription did not end after context cancel")
	}

	if ok := b.Publish(ctx, Event{Type: EventReplySent}); ok {
		t.Fatal("expected publish to fail on canceled context")
	}
}

func TestCloseStopsBus(t *testing.T) {
	b := New()

	events, _ := b.Subscribe(context.Background(), 1)
	b.Close()
	b.Close()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected event channel to be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("subscription did not unblock after close")
	}

	if ok := b.Publish(context.Background(), Event{Type: EventReplySent}); ok {
		t.Fatal("expected publish to fail after close")
	}

	late, _ := b.Subscribe(context.Background(), 1)
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after close to be closed")
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	if b.Publish(context.Background(), Event{Type: EventReplySent}) {
		t.Fatal("expected nil bus publish to report false")
	}
}
