package core

import "testing"

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	ch1, unsub1 := bus.Subscribe()
	ch2, unsub2 := bus.Subscribe()
	defer unsub1()
	defer unsub2()

	bus.Publish(Event{Type: EventPeer, Peer: "http://peer"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Peer != "http://peer" {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			t.Fatalf("expected a buffered event for every subscriber")
		}
	}
}

func TestEventBusDropsOnFullBuffer(t *testing.T) {
	bus := NewEventBus()
	ch, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBufSize+10; i++ {
		bus.Publish(Event{Type: EventPeer, Peer: "p"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != subscriberBufSize {
				t.Fatalf("expected exactly %d buffered events, got %d", subscriberBufSize, count)
			}
			return
		}
	}
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ch, unsub := bus.Subscribe()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
}
