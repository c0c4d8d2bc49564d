package core

import (
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
	"github.com/rs/zerolog/log"
)

type member struct {
	part domain.Participant
	conn SignalConnection
}

type pendingLeave struct {
	conn  domain.ConnID
	timer *time.Timer
}

// roomActor serializes all presence mutations for one room on a single
// goroutine. Identity equality decides "same logical user"; connection
// descriptor equality decides "same physical attempt". The one invariant it
// holds at every instant: at most one live connection per identity.
type roomActor struct {
	room     *domain.Room
	debounce time.Duration

	cmds chan func()
	done chan struct{}

	// Owned by the run goroutine. Never touched from outside.
	members    map[domain.Identity]*member
	pending    map[domain.Identity]*pendingLeave
	emptySince time.Time
	onRetire   func(domain.ConnID, RetireReason)
}

func NewRoomService(room *domain.Room, debounce time.Duration) RoomService {
	a := &roomActor{
		room:       room,
		debounce:   debounce,
		cmds:       make(chan func(), 16),
		done:       make(chan struct{}),
		members:    make(map[domain.Identity]*member),
		pending:    make(map[domain.Identity]*pendingLeave),
		emptySince: time.Now(),
	}
	go a.run()
	return a
}

func (a *roomActor) run() {
	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.cmds:
			cmd()
		}
	}
}

// do enqueues a command for the actor goroutine. Commands arriving after
// Stop are dropped.
func (a *roomActor) do(cmd func()) {
	select {
	case a.cmds <- cmd:
	case <-a.done:
	}
}

// doWait runs a command and waits for it, for snapshot-style reads.
func (a *roomActor) doWait(cmd func()) {
	ran := make(chan struct{})
	a.do(func() {
		cmd()
		close(ran)
	})
	select {
	case <-ran:
	case <-a.done:
	}
}

func (a *roomActor) Room() *domain.Room { return a.room }

func (a *roomActor) SetRetireHook(hook func(domain.ConnID, RetireReason)) {
	a.doWait(func() { a.onRetire = hook })
}

// retire runs the hook off the actor goroutine: observers may call back
// into the room (Disconnect from a canceled pump) and must not deadlock the
// command loop.
func (a *roomActor) retire(conn domain.ConnID, reason RetireReason) {
	if hook := a.onRetire; hook != nil {
		go hook(conn, reason)
	}
}

func (a *roomActor) Stop() {
	a.doWait(func() {
		for _, p := range a.pending {
			p.timer.Stop()
		}
	})
	close(a.done)
}

func (a *roomActor) MemberCount() int {
	var n int
	a.doWait(func() { n = len(a.members) })
	return n
}

func (a *roomActor) MembersSnapshot() []MemberDTO {
	var out []MemberDTO
	a.doWait(func() {
		out = make([]MemberDTO, 0, len(a.members))
		for _, m := range a.members {
			out = append(out, MemberDTO{Identity: m.part.Identity, Conn: m.part.Conn, Role: m.part.Role})
		}
	})
	return out
}

func (a *roomActor) IdleSince() (time.Time, bool) {
	var since time.Time
	var idle bool
	a.doWait(func() {
		if len(a.members) == 0 && !a.emptySince.IsZero() {
			since, idle = a.emptySince, true
		}
	})
	return since, idle
}

func (a *roomActor) Join(p domain.Participant, conn SignalConnection) {
	a.do(func() { a.join(p, conn) })
}

func (a *roomActor) Disconnect(identity domain.Identity, conn domain.ConnID) {
	a.do(func() { a.disconnect(identity, conn) })
}

func (a *roomActor) Relay(from domain.Identity, env Envelope) {
	a.do(func() {
		if other, ok := a.other(from); ok {
			a.emit(other.conn, env)
		}
	})
}

func (a *roomActor) join(p domain.Participant, conn SignalConnection) {
	a.cancelPending(p.Identity)

	cur, present := a.members[p.Identity]
	if present && cur.part.Conn == p.Conn {
		// Same physical attempt re-announcing itself after a transient
		// stream drop. Refresh the transport, emit nothing.
		cur.conn = conn
		return
	}

	if present {
		// Device takeover: exactly one peer-replaced to the superseded
		// descriptor, and the mapping flips atomically within this command.
		a.emit(cur.conn, Envelope{
			Type:     MsgPeerReplaced,
			Room:     a.room.ID,
			Identity: p.Identity,
			OldConn:  cur.part.Conn,
		})
		log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).
			Str("identity", string(p.Identity)).Str("old_conn", string(cur.part.Conn)).
			Str("new_conn", string(p.Conn)).Msg("connection superseded")
		a.retire(cur.part.Conn, RetiredReplaced)
	}

	a.members[p.Identity] = &member{part: p, conn: conn}
	a.emptySince = time.Time{}
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).
		Str("identity", string(p.Identity)).Str("conn", string(p.Conn)).Msg("member joined")

	// Once both identities hold live connections, each side learns about the
	// other so negotiation can start. The same applies after a takeover so
	// the new device can renegotiate.
	if other, ok := a.other(p.Identity); ok {
		a.emit(other.conn, Envelope{
			Type:     MsgPeerJoined,
			Room:     a.room.ID,
			Identity: p.Identity,
			Conn:     p.Conn,
		})
		a.emit(conn, Envelope{
			Type:     MsgPeerJoined,
			Room:     a.room.ID,
			Identity: other.part.Identity,
			Conn:     other.part.Conn,
		})
	}
}

func (a *roomActor) disconnect(identity domain.Identity, conn domain.ConnID) {
	cur, ok := a.members[identity]
	if !ok || cur.part.Conn != conn {
		// Stale disconnect from an already superseded or removed descriptor.
		return
	}
	if p, ok := a.pending[identity]; ok {
		p.timer.Stop()
	}
	timer := time.AfterFunc(a.debounce, func() {
		a.do(func() { a.expire(identity, conn) })
	})
	a.pending[identity] = &pendingLeave{conn: conn, timer: timer}
	log.Debug().Str("module", "core.room").Str("room", string(a.room.ID)).
		Str("identity", string(identity)).Dur("debounce", a.debounce).Msg("leave debounce armed")
}

func (a *roomActor) expire(identity domain.Identity, conn domain.ConnID) {
	p, ok := a.pending[identity]
	if !ok || p.conn != conn {
		return
	}
	delete(a.pending, identity)

	cur, ok := a.members[identity]
	if !ok || cur.part.Conn != conn {
		// Superseded while the timer was running; the takeover already
		// settled membership.
		return
	}
	delete(a.members, identity)
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).
		Str("identity", string(identity)).Msg("member left")
	a.retire(conn, RetiredLeft)

	if other, ok := a.other(identity); ok {
		a.emit(other.conn, Envelope{
			Type:     MsgPeerLeft,
			Room:     a.room.ID,
			Identity: identity,
		})
	}
	if len(a.members) == 0 {
		a.emptySince = time.Now()
	}
}

func (a *roomActor) cancelPending(identity domain.Identity) {
	if p, ok := a.pending[identity]; ok {
		p.timer.Stop()
		delete(a.pending, identity)
	}
}

// other returns the opposite party, relying on the 1:1 shape of a lesson.
func (a *roomActor) other(identity domain.Identity) (*member, bool) {
	for id, m := range a.members {
		if id != identity {
			return m, true
		}
	}
	return nil, false
}

func (a *roomActor) emit(conn SignalConnection, env Envelope) {
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("encode event")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("room", string(a.room.ID)).
			Str("type", string(env.Type)).Msg("event dropped")
	}
}
