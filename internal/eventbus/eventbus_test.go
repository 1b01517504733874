package eventbus

import "testing"

func TestPublishFansOut(t *testing.T) {
	b := New[int](4)
	defer b.Close()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(42)
	if got := <-a; got != 42 {
		t.Fatalf("subscriber a got %d", got)
	}
	if got := <-c; got != 42 {
		t.Fatalf("subscriber c got %d", got)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New[int](1)
	defer b.Close()
	ch := b.Subscribe()

	// Nobody drains; the second publish must drop, not stall.
	b.Publish(1)
	b.Publish(2)

	if got := <-ch; got != 1 {
		t.Fatalf("got %d, want the first event retained", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("overflow event %d was delivered", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[int](1)
	defer b.Close()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Fatalf("unsubscribed channel still open")
	}
	b.Publish(1) // must not panic on the removed subscriber
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New[int](1)
	ch := b.Subscribe()
	b.Close()

	if _, open := <-ch; open {
		t.Fatalf("channel open after close")
	}
	b.Publish(1) // no-op after close
	if late := b.Subscribe(); late == nil {
		t.Fatalf("subscribe after close returned nil channel")
	} else if _, open := <-late; open {
		t.Fatalf("late subscription not closed")
	}
}
