package service_test

import (
	"testing"

	"github.com/ejneale/inkpress/internal/service"
)

func TestBrokerSingleSubscriber(t *testing.T) {
	b := service.NewBroker()
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	statuses := []string{"running", "completed"}
	for _, st := range statuses {
		b.Publish("j1", service.Event{JobID: "j1", Status: st})
	}
	b.Close("j1")

	var got []string
	for ev := range ch {
		got = append(got, ev.Status)
	}

	if len(got) != len(statuses) {
		t.Fatalf("got %d events, want %d", len(got), len(statuses))
	}
	for i, st := range got {
		if st != statuses[i] {
			t.Errorf("event[%d].Status = %q, want %q", i, st, statuses[i])
		}
	}
}

func TestBrokerMultipleSubscribers(t *testing.T) {
	b := service.NewBroker()
	ch1, unsub1 := b.Subscribe("j1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("j1")
	defer unsub2()

	b.Publish("j1", service.Event{JobID: "j1", Status: "running"})
	b.Close("j1")

	for i, ch := range []<-chan service.Event{ch1, ch2} {
		ev, ok := <-ch
		if !ok {
			t.Fatalf("subscriber %d got closed channel before event", i+1)
		}
		if ev.Status != "running" {
			t.Errorf("subscriber %d got %q, want running", i+1, ev.Status)
		}
	}
}

func TestBrokerCloseClosesChannels(t *testing.T) {
	b := service.NewBroker()
	ch, unsub := b.Subscribe("j1")
	defer unsub()

	b.Close("j1")

	_, ok := <-ch
	if ok {
		t.Error("channel should be closed after Close()")
	}
}

func TestBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := service.NewBroker()
	b.Publish("j1", service.Event{JobID: "j1", Status: "running"})
	b.Close("j1")

	ch, unsub := b.Subscribe("j1")
	defer unsub()

	_, ok := <-ch
	if ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestBrokerPublishToUnknownTopic(t *testing.T) {
	b := service.NewBroker()
	// Must not panic or create subscriber state.
	b.Publish("nobody", service.Event{JobID: "nobody", Status: "running"})
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := service.NewBroker()
	ch, unsub := b.Subscribe("j1")
	unsub()

	b.Publish("j1", service.Event{JobID: "j1", Status: "running"})

	select {
	case ev, ok := <-ch:
		if ok {
			t.Errorf("received %+v after unsubscribe", ev)
		}
	default:
		// Nothing delivered: expected.
	}
}
