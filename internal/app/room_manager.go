package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// RoomManagerImpl creates rooms lazily on first join and reaps them once
// presence stays empty past the grace period.
type RoomManagerImpl struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]core.RoomService
	debounce time.Duration
	grace    time.Duration

	onCountChange func(int)
	onRetire      func(domain.ConnID, core.RetireReason)
}

func NewRoomManager(debounce, grace time.Duration) *RoomManagerImpl {
	return &RoomManagerImpl{
		rooms:    make(map[domain.RoomID]core.RoomService),
		debounce: debounce,
		grace:    grace,
	}
}

// SetCountHook registers an observer for the live room count (metrics).
func (f *RoomManagerImpl) SetCountHook(hook func(int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCountChange = hook
}

// SetRetireHook is installed on every room created after the call.
func (f *RoomManagerImpl) SetRetireHook(hook func(domain.ConnID, core.RetireReason)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRetire = hook
}

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(&domain.Room{ID: id}, f.debounce)
	if f.onRetire != nil {
		room.SetRetireHook(f.onRetire)
	}
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	if f.onCountChange != nil {
		f.onCountChange(len(f.rooms))
	}
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}

func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[id]; ok {
		room.Stop()
		delete(f.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room destroyed")
		if f.onCountChange != nil {
			f.onCountChange(len(f.rooms))
		}
	}
}

// StartJanitor sweeps rooms whose presence has been empty past the grace
// period. A re-join before the sweep keeps the room.
func (f *RoomManagerImpl) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.reapIdle()
			}
		}
	}()
}

func (f *RoomManagerImpl) reapIdle() {
	now := time.Now()
	f.mu.RLock()
	var idle []domain.RoomID
	for id, r := range f.rooms {
		if since, ok := r.IdleSince(); ok && now.Sub(since) >= f.grace {
			idle = append(idle, id)
		}
	}
	f.mu.RUnlock()
	for _, id := range idle {
		f.StopRoom(id)
	}
}
