package domain

type RoomID string

// Room is ephemeral call-layer state, created on first join and destroyed
// once presence stays empty past a grace period. Not a booking record.
type Room struct {
	ID RoomID
}
