// Package call drives the client side of one room membership: signaling,
// peer-connection negotiation and lifecycle, including device takeover and
// reconnects.
package call

// State is the lifecycle of one peer-connection attempt. Transitions are
// monotonic within an attempt; a reconnect re-enters Negotiating, a
// superseded or torn-down connection ends at Closed.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateNegotiating
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
