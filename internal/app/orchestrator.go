package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/admission"
	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
	"github.com/nqh2610/lophoconline-sub007/internal/observability"
)

// Orchestrator glues admission, the connection registry and per-room
// presence actors together. All room-scoped mutations go through the room's
// own actor; the orchestrator never holds presence state itself.
type Orchestrator struct {
	Admissions *admission.Registry
	Rooms      core.RoomManager
	Registry   *Registry
	Metrics    *observability.Metrics
}

// Attach binds a freshly admitted push stream and joins its room.
func (o *Orchestrator) Attach(adm admission.Admission, conn domain.ConnID, sc core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(conn, adm.Room, adm.Identity, sc, cancel)
	room := o.Rooms.GetOrCreate(adm.Room)
	room.Join(domain.Participant{Identity: adm.Identity, Conn: conn, Role: adm.Role}, sc)
	o.countPresence("joined")
}

// HandleMessage routes one outbound post from a device. Room and sender
// scoping is stamped server-side from the admission, never trusted from the
// payload.
func (o *Orchestrator) HandleMessage(adm admission.Admission, conn domain.ConnID, env core.Envelope) {
	env.Room = adm.Room
	env.From = adm.Identity
	env.Conn = conn

	if o.Metrics != nil {
		o.Metrics.SignalMessages.WithLabelValues("in", string(env.Type)).Inc()
	}

	switch env.Type {
	case core.MsgJoin:
		room := o.Rooms.GetOrCreate(adm.Room)
		sc, ok := o.signalOf(conn)
		if !ok {
			log.Warn().Str("module", "app.orch").Str("conn", string(conn)).Msg("join without push stream")
			return
		}
		room.Join(domain.Participant{Identity: adm.Identity, Conn: conn, Role: adm.Role}, sc)
		o.countPresence("joined")
	case core.MsgLeave:
		o.disconnect(adm, conn)
	case core.MsgOffer, core.MsgAnswer, core.MsgICE:
		room := o.Rooms.GetOrCreate(adm.Room)
		room.Relay(adm.Identity, env)
	default:
		log.Warn().Str("module", "app.orch").Str("type", string(env.Type)).Msg("unroutable message")
	}
}

// OnStreamClosed is invoked by the signaling adapter when a push stream
// drops. The departure itself is debounced inside the room actor; a prompt
// re-dial resuming the same descriptor cancels it silently, so the registry
// binding stays until the room actually retires the descriptor.
func (o *Orchestrator) OnStreamClosed(adm admission.Admission, conn domain.ConnID) {
	o.disconnect(adm, conn)
}

// OnRetire is the room actors' notification that a descriptor stopped being
// a member. Install it on the room manager before serving traffic.
func (o *Orchestrator) OnRetire(conn domain.ConnID, reason core.RetireReason) {
	if reason == core.RetiredReplaced {
		// The peer-replaced event tells the device to stop; canceling the
		// pumps enforces it server-side.
		o.Registry.Cancel(conn)
	}
	o.Registry.Unbind(conn)
	switch reason {
	case core.RetiredLeft:
		o.countPresence("left")
	case core.RetiredReplaced:
		o.countPresence("replaced")
	}
}

func (o *Orchestrator) disconnect(adm admission.Admission, conn domain.ConnID) {
	if room, ok := o.Rooms.Get(adm.Room); ok {
		room.Disconnect(adm.Identity, conn)
	}
	o.countPresence("disconnected")
}

func (o *Orchestrator) signalOf(conn domain.ConnID) (core.SignalConnection, bool) {
	r := o.Registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[conn]
	if !ok {
		return nil, false
	}
	return e.Signal, true
}

func (o *Orchestrator) countPresence(event string) {
	if o.Metrics != nil {
		o.Metrics.PresenceEvents.WithLabelValues(event).Inc()
	}
}
