package core

// Frame is a raw encoded payload going out over a signaling transport.
type Frame []byte

// SignalConnection abstracts the per-device push stream.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
