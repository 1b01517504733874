// Package broadcast fans committed state changes out to role-scoped
// subscribers. Each role receives the minimal delta it needs: drivers
// their own route, customers their own stop, dispatchers the fleet.
// Delivery is non-blocking; a slow subscriber misses messages and
// recovers by requesting a snapshot.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/state"
)

// defaultBuffer is the per-subscriber channel depth.
const defaultBuffer = 32

// Transport publishes role-scoped messages to an external channel, for
// clients that are not connected in-process.
type Transport interface {
	Publish(role Role, scope string, msg Message) error
}

// Subscription is one registered consumer. Messages arrive on C until
// Unsubscribe closes it.
type Subscription struct {
	ID    string
	Role  Role
	Scope string // vehicle ID, stop ID, or region ("" = whole fleet)

	ch chan Message
}

// C returns the delivery channel.
func (s *Subscription) C() <-chan Message { return s.ch }

// Broadcaster consumes the state machine's event feed and distributes
// role-scoped deltas.
type Broadcaster struct {
	machine   *state.Machine
	transport Transport
	log       logger.Logger
	buffer    int

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// New creates a Broadcaster over the given machine. transport may be
// nil for in-process-only delivery.
func New(machine *state.Machine, transport Transport, log logger.Logger) *Broadcaster {
	if log == nil {
		log = logger.Nop{}
	}
	return &Broadcaster{
		machine:   machine,
		transport: transport,
		log:       log,
		buffer:    defaultBuffer,
		subs:      make(map[string]*Subscription),
	}
}

// Subscribe registers a consumer for the given role and scope and
// immediately queues a snapshot message so the consumer starts from a
// known version.
func (b *Broadcaster) Subscribe(role Role, scope string) *Subscription {
	sub := &Subscription{
		ID:    uuid.New().String(),
		Role:  role,
		Scope: scope,
		ch:    make(chan Message, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()

	b.deliver(sub, b.SnapshotFor(role, scope))
	return sub
}

// Unsubscribe removes the consumer and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub.ID]; ok {
		delete(b.subs, sub.ID)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// SnapshotFor builds a snapshot message scoped to the role. Clients
// that detect a version gap call this to resynchronize.
func (b *Broadcaster) SnapshotFor(role Role, scope string) Message {
	snap := b.machine.Snapshot()
	msg := Message{Type: TypeSnapshot, Version: snap.Version, At: b.machine.Now()}
	switch role {
	case RoleDriver:
		if r := snap.RouteFor(scope); r != nil {
			msg.Payload = routeDelta(snap.PlanID, *r)
		} else {
			msg.Payload = RouteDelta{VehicleID: scope, PlanID: snap.PlanID}
		}
	case RoleCustomer:
		msg.Payload = b.stopETA(snap, scope)
	default:
		msg.Payload = fleetDelta(snap, scope)
	}
	return msg
}

// Run consumes the event feed until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context, evs <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			b.dispatch(ev)
		}
	}
}

func (b *Broadcaster) dispatch(ev events.Event) {
	switch e := ev.(type) {
	case events.PlanCommitted:
		b.onPlanCommitted(e)
	case events.StopTransitioned:
		b.onStopTransitioned(e)
	case events.PositionPing:
		b.onPosition(e)
	}
}

func (b *Broadcaster) onPlanCommitted(e events.PlanCommitted) {
	snap := b.machine.Snapshot()
	fleetMsg := Message{
		Type:    TypePlanCommitted,
		Version: snap.Version,
		At:      e.At,
		Payload: fleetDelta(snap, ""),
	}

	b.mu.RLock()
	subs := b.subscribers()
	b.mu.RUnlock()

	for _, sub := range subs {
		switch sub.Role {
		case RoleDriver:
			r := snap.RouteFor(sub.Scope)
			if r == nil {
				continue
			}
			b.deliver(sub, Message{
				Type:    TypePlanCommitted,
				Version: snap.Version,
				At:      e.At,
				Payload: routeDelta(snap.PlanID, *r),
			})
		case RoleCustomer:
			eta := b.stopETA(snap, sub.Scope)
			if eta == nil {
				continue
			}
			b.deliver(sub, Message{Type: TypePlanCommitted, Version: snap.Version, At: e.At, Payload: eta})
		default:
			if sub.Scope == "" {
				b.deliver(sub, fleetMsg)
			} else {
				b.deliver(sub, Message{
					Type:    TypePlanCommitted,
					Version: snap.Version,
					At:      e.At,
					Payload: fleetDelta(snap, sub.Scope),
				})
			}
		}
	}

	b.publishExternal(RoleDispatcher, "", fleetMsg)
	for _, r := range snap.Routes {
		b.publishExternal(RoleDriver, r.VehicleID, Message{
			Type:    TypePlanCommitted,
			Version: snap.Version,
			At:      e.At,
			Payload: routeDelta(snap.PlanID, r),
		})
	}
}

func (b *Broadcaster) onStopTransitioned(e events.StopTransitioned) {
	msg := Message{
		Type:    TypeStopStatus,
		Version: b.machine.Version(),
		At:      e.At,
		Payload: StopStatusPayload{
			StopID:          e.StopID,
			VehicleID:       e.VehicleID,
			From:            e.From.String(),
			To:              e.To.String(),
			RecordedArrival: e.RecordedArrival,
		},
	}

	b.mu.RLock()
	subs := b.subscribers()
	b.mu.RUnlock()

	for _, sub := range subs {
		switch sub.Role {
		case RoleDriver:
			if sub.Scope == e.VehicleID {
				b.deliver(sub, msg)
			}
		case RoleCustomer:
			if sub.Scope == e.StopID {
				b.deliver(sub, msg)
			}
		default:
			b.deliver(sub, msg)
		}
	}

	b.publishExternal(RoleCustomer, e.StopID, msg)
	b.publishExternal(RoleDispatcher, "", msg)
}

func (b *Broadcaster) onPosition(e events.PositionPing) {
	msg := Message{
		Type:    TypeVehiclePosition,
		Version: b.machine.Version(),
		At:      e.At,
		Payload: PositionPayload{VehicleID: e.VehicleID, Position: e.Position, At: e.At},
	}

	b.mu.RLock()
	subs := b.subscribers()
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.Role == RoleDispatcher || (sub.Role == RoleDriver && sub.Scope == e.VehicleID) {
			b.deliver(sub, msg)
		}
	}
	b.publishExternal(RoleDispatcher, "", msg)
}

// deliver sends without blocking. A full buffer drops the message; the
// subscriber notices the version gap and requests a snapshot.
func (b *Broadcaster) deliver(sub *Subscription, msg Message) {
	select {
	case sub.ch <- msg:
		messagesDelivered.WithLabelValues(string(sub.Role)).Inc()
	default:
		messagesDropped.WithLabelValues(string(sub.Role)).Inc()
	}
}

func (b *Broadcaster) publishExternal(role Role, scope string, msg Message) {
	if b.transport == nil {
		return
	}
	if err := b.transport.Publish(role, scope, msg); err != nil {
		b.log.Warnf("broadcast: transport publish %s/%s failed: %v", role, scope, err)
	}
}

// subscribers returns the current set; caller holds the read lock.
func (b *Broadcaster) subscribers() []*Subscription {
	out := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		out = append(out, s)
	}
	return out
}

// stopETA resolves the customer-facing view for one stop, or nil when
// the stop is unknown.
func (b *Broadcaster) stopETA(snap state.Snapshot, stopID string) any {
	for _, r := range snap.Routes {
		for _, rs := range r.Stops {
			if rs.Stop.ID == stopID {
				return StopETA{
					StopID:  stopID,
					Status:  rs.Stop.Status.String(),
					ETA:     rs.ProjectedArrival,
					LateSec: rs.TardinessSeconds,
				}
			}
		}
	}
	if s := snap.StopByID(stopID); s != nil {
		return StopETA{StopID: stopID, Status: s.Status.String()}
	}
	return nil
}

// fleetDelta builds the dispatcher payload, optionally narrowed to one
// region.
func fleetDelta(snap state.Snapshot, region string) FleetDelta {
	d := FleetDelta{PlanID: snap.PlanID}
	vehicleRegion := make(map[string]string, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		vehicleRegion[v.ID] = v.Region
	}
	for _, r := range snap.Routes {
		if region != "" && vehicleRegion[r.VehicleID] != region {
			continue
		}
		d.Routes = append(d.Routes, routeDelta(snap.PlanID, r))
	}
	for _, u := range snap.Unassigned {
		if region != "" && u.Stop.Region != region {
			continue
		}
		d.Unassigned = append(d.Unassigned, u)
	}
	return d
}
