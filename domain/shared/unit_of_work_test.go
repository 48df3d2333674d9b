package shared

import (
	"errors"
	"testing"
)

type fakeAggregate struct {
	EventRecorder
	id string
}

func (a *fakeAggregate) ID() string   { return a.id }
func (a *fakeAggregate) Version() int { return 0 }

func TestAggregateTrackerDrainsInRegistrationOrder(t *testing.T) {
	a := &fakeAggregate{id: "a"}
	b := &fakeAggregate{id: "b"}
	a.Record(newTestEvent("created"))
	b.Record(newTestEvent("device_added"))
	a.Record(newTestEvent("updated"))

	var tr AggregateTracker
	tr.RegisterNew(b)
	tr.RegisterDirty(a)
	tr.RegisterDirty(b) // 重复登记

	var names []string
	for _, e := range tr.DrainEvents() {
		names = append(names, e.EventName())
	}
	want := []string{"device_added", "created", "updated"}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}
	if a.PendingEvents() != 0 || len(tr.DrainEvents()) != 0 {
		t.Errorf("events should be drained exactly once")
	}

	tr.Reset()
	a.Record(newTestEvent("late"))
	if len(tr.DrainEvents()) != 0 {
		t.Errorf("reset tracker should not see old aggregates")
	}
}

func TestPublishAllContinuesAfterFailure(t *testing.T) {
	bus := NewEventBus()
	var got []string
	_ = bus.Subscribe(AllEvents, NewFuncHandler("rec", func(e DomainEvent) error {
		got = append(got, e.EventName())
		return nil
	}))
	_ = bus.Subscribe("device_added", NewFuncHandler("boom", func(DomainEvent) error {
		return errors.New("subscriber failed")
	}))

	var failed []string
	PublishAll(bus, []DomainEvent{newTestEvent("device_added"), newTestEvent("updated")},
		func(e DomainEvent, err error) { failed = append(failed, e.EventName()) })

	if len(got) != 2 {
		t.Errorf("delivered = %v", got)
	}
	if len(failed) != 1 || failed[0] != "device_added" {
		t.Errorf("failed = %v", failed)
	}

	PublishAll(nil, []DomainEvent{newTestEvent("x")}, nil)
}
