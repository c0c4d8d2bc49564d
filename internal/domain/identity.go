package domain

// Identity is a logical participant (tutor or student). A participant keeps
// the same Identity across devices and reconnects.
type Identity string

// ConnID identifies one physical device/session attempt. It changes on every
// new connection while the Identity persists.
type ConnID string

type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// Participant pairs an identity with the connection descriptor currently
// carrying it.
type Participant struct {
	Identity Identity
	Conn     ConnID
	Role     Role
}
