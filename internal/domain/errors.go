package domain

import "errors"

// Admission failures are fatal to a join attempt and carry a specific reason.
var (
	ErrUnknownToken       = errors.New("unknown access token")
	ErrAdmissionExpired   = errors.New("session window expired")
	ErrAdmissionNotOpen   = errors.New("session window not yet open")
	ErrAdmissionRevoked   = errors.New("session revoked")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrPeerReplaced       = errors.New("connection superseded by another device")
)
