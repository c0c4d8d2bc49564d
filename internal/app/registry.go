package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

type connEntry struct {
	Room     domain.RoomID
	Identity domain.Identity
	Signal   core.SignalConnection
	Cancel   context.CancelFunc
}

// Registry tracks live signaling connections by descriptor so the
// orchestrator can route, cancel and clean them up. Room membership itself
// is the presence actor's authority, not the registry's.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*connEntry)}
}

func (r *Registry) Bind(conn domain.ConnID, room domain.RoomID, identity domain.Identity, sc core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = &connEntry{Room: room, Identity: identity, Signal: sc, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).
		Str("room", string(room)).Str("identity", string(identity)).Msg("bound connection")
}

func (r *Registry) Lookup(conn domain.ConnID) (domain.RoomID, domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[conn]
	if !ok {
		return "", "", false
	}
	return e.Room, e.Identity, true
}

func (r *Registry) Unbind(conn domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("unbound connection")
}

// Cancel tears down the read/write pumps of a connection. Used when a
// descriptor is superseded and must self-terminate.
func (r *Registry) Cancel(conn domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[conn]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("canceled connection")
	return true
}
