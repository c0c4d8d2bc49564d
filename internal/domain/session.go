// Package domain contains entity without logic, just meta-data
package domain

import "time"

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCanceled  SessionStatus = "canceled"
	SessionCompleted SessionStatus = "completed"
)

// Session is the admission record for one booked lesson. The booking and
// payment system owns these rows; the call core only reads them.
type Session struct {
	ID             string
	RoomID         RoomID
	TutorID        Identity
	StudentID      Identity
	TutorToken     string
	StudentToken   string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ExpiresAt      time.Time
	Status         SessionStatus
	Paid           bool
}

// JoinWindow is the interval during which a token admits its holder.
type JoinWindow struct {
	Open  time.Time
	Close time.Time
}

func (w JoinWindow) Contains(t time.Time) bool {
	return !t.Before(w.Open) && !t.After(w.Close)
}
