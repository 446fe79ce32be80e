package eventbus

import "testing"

func TestFanoutAndDrop(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TypeEventReceived})
	b.Publish(Event{Type: TypeEventSkipped})

	if e := <-a; e.Type != TypeEventReceived || e.Time.IsZero() {
		t.Fatalf("subscriber a got %+v", e)
	}
	if got := b.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	if len(c) != 2 {
		t.Fatalf("subscriber c buffered %d events, want 2", len(c))
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	b.Publish(Event{Type: TypeNotificationSent})
	if len(c) != 3 {
		t.Fatalf("subscriber c buffered %d events, want 3", len(c))
	}
}
