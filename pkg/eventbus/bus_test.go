// 文件: pkg/eventbus/bus_test.go
package eventbus

import "testing"

func TestSubscribeFiltersByRoom(t *testing.T) {
	bus := NewBus()
	acctSub := bus.Subscribe(Room{Account: 1})
	everyoneSub := bus.Subscribe()

	bus.Publish(New(TypeTransactionUpdated, Room{Account: 1}, map[string]any{"id": 1}, 1000))
	bus.Publish(New(TypeTransactionUpdated, Room{Account: 2}, map[string]any{"id": 2}, 1001))

	select {
	case e := <-acctSub.Events():
		if e.Room().Account != 1 {
			t.Fatalf("expected account-1 event, got %+v", e.Room())
		}
	default:
		t.Fatal("expected account-scoped subscriber to receive its room's event")
	}

	received := 0
	for i := 0; i < 2; i++ {
		select {
		case <-everyoneSub.Events():
			received++
		default:
		}
	}
	if received != 2 {
		t.Fatalf("expected unscoped subscriber to receive both events, got %d", received)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	_, ok := <-sub.Events()
	if ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(Room{Account: 7})
	for i := 0; i < 100; i++ {
		bus.Publish(New(TypeStatsUpdate, Room{Account: 7}, i, int64(i)))
	}
	// Publish must return without blocking even though nothing drained sub.
	if len(sub.Events()) == 0 {
		t.Fatal("expected some buffered events to survive")
	}
}
