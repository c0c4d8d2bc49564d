package core

import (
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	Identity domain.Identity `json:"identity"`
	Conn     domain.ConnID   `json:"conn"`
	Role     domain.Role     `json:"role"`
}

// RoomService is the core-facing API of a room's presence state.
// It owns the membership set but never touches transport resources beyond
// pushing events; adapters own and close their connections.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	// Join admits a participant's connection. A join under an identity that
	// is already present with a different connection supersedes the prior
	// one atomically.
	Join(p domain.Participant, conn SignalConnection)

	// Disconnect starts the leave debounce for the given descriptor. The
	// mapping is removed, and peer-left emitted, only if no re-join for the
	// same identity lands before the debounce expires.
	Disconnect(identity domain.Identity, conn domain.ConnID)

	// Relay forwards a signaling message from one identity to the other
	// party's live connection, if any.
	Relay(from domain.Identity, env Envelope)

	// IdleSince reports when the room last became empty; ok is false while
	// the room has members or pending removals.
	IdleSince() (time.Time, bool)

	// SetRetireHook registers an observer invoked whenever a connection
	// descriptor stops being a member, either because its leave debounce
	// expired or because a newer device superseded it.
	SetRetireHook(func(domain.ConnID, RetireReason))

	Stop()
}

type RetireReason int

const (
	RetiredLeft RetireReason = iota
	RetiredReplaced
)

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
