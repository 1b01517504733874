package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/model"
	"github.com/fleetcore/dispatchd/core/state"
)

var bcastNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func bcastStop(id string) model.Stop {
	return model.Stop{
		ID:       id,
		Kind:     model.KindDelivery,
		Location: model.Coord{Lat: 48.86, Lon: 2.34},
		Demand:   model.Quantity{"box": 1},
		Window: model.TimeWindow{
			Earliest: bcastNow,
			Latest:   bcastNow.Add(4 * time.Hour),
		},
		ServiceSeconds: 60,
		Status:         model.StopPending,
	}
}

func committedMachine(t *testing.T) *state.Machine {
	t.Helper()
	m := state.NewMachine(nil, nil, nil, nil, nil)
	v := model.Vehicle{
		ID:       "v1",
		Capacity: model.Quantity{"box": 10},
		Shift:    model.TimeWindow{Earliest: bcastNow.Add(-time.Hour), Latest: bcastNow.Add(8 * time.Hour)},
		Depot:    model.Coord{Lat: 48.8566, Lon: 2.3522},
		Status:   model.VehicleAvailable,
	}
	if err := m.UpsertVehicle(v); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.AddStop(bcastStop("s1")); err != nil {
		t.Fatalf("add stop: %v", err)
	}

	assigned := bcastStop("s1")
	assigned.Status = model.StopAssigned
	plan := &model.Plan{
		ID:        "plan-1",
		CreatedAt: bcastNow,
		Routes: []model.Route{{
			VehicleID: "v1",
			Stops: []model.RouteStop{{
				Stop:             assigned,
				TravelSeconds:    600,
				ProjectedArrival: bcastNow.Add(10 * time.Minute),
			}},
		}},
	}
	if _, err := m.CommitPlan(plan); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return m
}

func recvMessage(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg := <-sub.C():
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s/%s", sub.Role, sub.Scope)
		return Message{}
	}
}

func TestSubscribeDeliversSnapshot(t *testing.T) {
	b := New(committedMachine(t), nil, nil)

	driver := b.Subscribe(RoleDriver, "v1")
	msg := recvMessage(t, driver)
	if msg.Type != TypeSnapshot || msg.Version != 1 {
		t.Fatalf("snapshot message = %+v", msg)
	}
	rd, ok := msg.Payload.(RouteDelta)
	if !ok || rd.VehicleID != "v1" || len(rd.Stops) != 1 || rd.Stops[0].StopID != "s1" {
		t.Fatalf("driver snapshot payload = %#v", msg.Payload)
	}

	customer := b.Subscribe(RoleCustomer, "s1")
	msg = recvMessage(t, customer)
	eta, ok := msg.Payload.(StopETA)
	if !ok || eta.StopID != "s1" || eta.ETA.IsZero() {
		t.Fatalf("customer snapshot payload = %#v", msg.Payload)
	}

	dispatcher := b.Subscribe(RoleDispatcher, "")
	msg = recvMessage(t, dispatcher)
	fd, ok := msg.Payload.(FleetDelta)
	if !ok || fd.PlanID != "plan-1" || len(fd.Routes) != 1 {
		t.Fatalf("dispatcher snapshot payload = %#v", msg.Payload)
	}
}

func TestStopTransitionScoping(t *testing.T) {
	m := committedMachine(t)
	b := New(m, nil, nil)

	own := b.Subscribe(RoleDriver, "v1")
	other := b.Subscribe(RoleDriver, "v2")
	customer := b.Subscribe(RoleCustomer, "s1")
	dispatcher := b.Subscribe(RoleDispatcher, "")
	for _, sub := range []*Subscription{own, other, customer, dispatcher} {
		recvMessage(t, sub) // drain the subscription snapshot
	}

	b.dispatch(events.StopTransitioned{
		StopID:    "s1",
		VehicleID: "v1",
		From:      model.StopAssigned,
		To:        model.StopEnRoute,
		At:        bcastNow,
	})

	for _, sub := range []*Subscription{own, customer, dispatcher} {
		msg := recvMessage(t, sub)
		if msg.Type != TypeStopStatus {
			t.Fatalf("%s/%s got %+v", sub.Role, sub.Scope, msg)
		}
		p := msg.Payload.(StopStatusPayload)
		if p.StopID != "s1" || p.To != "en_route" {
			t.Fatalf("payload = %+v", p)
		}
	}
	select {
	case msg := <-other.C():
		t.Fatalf("driver v2 received another vehicle's event: %+v", msg)
	default:
	}
}

func TestPositionScoping(t *testing.T) {
	b := New(committedMachine(t), nil, nil)
	own := b.Subscribe(RoleDriver, "v1")
	customer := b.Subscribe(RoleCustomer, "s1")
	dispatcher := b.Subscribe(RoleDispatcher, "")
	for _, sub := range []*Subscription{own, customer, dispatcher} {
		recvMessage(t, sub)
	}

	b.dispatch(events.PositionPing{VehicleID: "v1", Position: model.Coord{Lat: 48.87, Lon: 2.35}, At: bcastNow})

	for _, sub := range []*Subscription{own, dispatcher} {
		msg := recvMessage(t, sub)
		if msg.Type != TypeVehiclePosition {
			t.Fatalf("%s got %+v", sub.Role, msg)
		}
	}
	select {
	case msg := <-customer.C():
		t.Fatalf("customer received a position ping: %+v", msg)
	default:
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New(committedMachine(t), nil, nil)
	sub := b.Subscribe(RoleDispatcher, "")
	recvMessage(t, sub) // snapshot; nothing drains after this

	// Fill the buffer well past capacity; dispatch must never stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*3; i++ {
			b.dispatch(events.PositionPing{VehicleID: "v1", Position: model.Coord{}, At: bcastNow})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatch blocked on a slow subscriber")
	}

	// The subscriber recovers by asking for a snapshot.
	snap := b.SnapshotFor(RoleDispatcher, "")
	if snap.Type != TypeSnapshot || snap.Version != 1 {
		t.Fatalf("recovery snapshot = %+v", snap)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(committedMachine(t), nil, nil)
	sub := b.Subscribe(RoleDriver, "v1")
	recvMessage(t, sub)

	b.Unsubscribe(sub)
	if _, open := <-sub.C(); open {
		t.Fatalf("channel still open after unsubscribe")
	}
	b.Unsubscribe(sub) // repeated unsubscribe must not panic
}

// captureTransport records external publishes.
type captureTransport struct {
	mu   sync.Mutex
	pubs []string
}

func (c *captureTransport) Publish(role Role, scope string, _ Message) error {
	c.mu.Lock()
	c.pubs = append(c.pubs, string(role)+"/"+scope)
	c.mu.Unlock()
	return nil
}

func TestPlanCommitPublishesExternally(t *testing.T) {
	tr := &captureTransport{}
	b := New(committedMachine(t), tr, nil)

	b.dispatch(events.PlanCommitted{PlanID: "plan-1", Version: 1, At: bcastNow})

	tr.mu.Lock()
	defer tr.mu.Unlock()
	want := map[string]bool{"dispatcher/": true, "driver/v1": true}
	for _, p := range tr.pubs {
		delete(want, p)
	}
	if len(want) != 0 {
		t.Fatalf("missing external publishes %v, got %v", want, tr.pubs)
	}
}
