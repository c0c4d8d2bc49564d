// Package admission resolves opaque access tokens to a room, an identity and
// a join window. It is the sole gate into the call layer; the booking system
// owns the Session rows it reads.
package admission

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// Admission is everything the call layer needs to let a device in.
type Admission struct {
	SessionID string
	Room      domain.RoomID
	Identity  domain.Identity
	Role      domain.Role
	Window    domain.JoinWindow
}

// Store is the read-only lookup the registry runs against.
type Store interface {
	// SessionByToken returns the session a token belongs to, or
	// domain.ErrUnknownToken.
	SessionByToken(ctx context.Context, token string) (*domain.Session, error)
}

type Registry struct {
	store Store
	early time.Duration
	late  time.Duration
	now   func() time.Time
}

func NewRegistry(store Store, early, late time.Duration) *Registry {
	return &Registry{store: store, early: early, late: late, now: time.Now}
}

// ValidateAndAdmit checks a token against the session's join window
// [ScheduledStart − early, ScheduledEnd + late]. The window is the sole
// authority for admission; call-layer state never affects it.
func (r *Registry) ValidateAndAdmit(ctx context.Context, token string) (Admission, error) {
	s, err := r.store.SessionByToken(ctx, token)
	if err != nil {
		return Admission{}, err
	}

	var identity domain.Identity
	var role domain.Role
	switch token {
	case s.TutorToken:
		identity, role = s.TutorID, domain.RoleTutor
	case s.StudentToken:
		identity, role = s.StudentID, domain.RoleStudent
	default:
		return Admission{}, domain.ErrUnknownToken
	}

	if s.Status == domain.SessionCanceled || !s.Paid {
		return Admission{}, domain.ErrAdmissionRevoked
	}

	window := domain.JoinWindow{
		Open:  s.ScheduledStart.Add(-r.early),
		Close: s.ScheduledEnd.Add(r.late),
	}
	now := r.now()
	if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
		return Admission{}, domain.ErrAdmissionExpired
	}
	if now.Before(window.Open) {
		return Admission{}, domain.ErrAdmissionNotOpen
	}
	if now.After(window.Close) {
		return Admission{}, domain.ErrAdmissionExpired
	}

	log.Info().Str("module", "admission").Str("session", s.ID).
		Str("room", string(s.RoomID)).Str("role", string(role)).Msg("admitted")
	return Admission{
		SessionID: s.ID,
		Room:      s.RoomID,
		Identity:  identity,
		Role:      role,
		Window:    window,
	}, nil
}
