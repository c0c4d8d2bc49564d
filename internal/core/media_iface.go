package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is the transport half of one peer-connection attempt.
// The pion-backed implementation lives in adapters/rtc; tests use fakes.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool

	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	ApplyAnswer(webrtc.SessionDescription) error
	ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)

	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnConnected fires once the transport is ready to carry media and data.
	OnConnected(func())
	// OnDisconnected fires on transport loss; the controller decides whether
	// to reconnect.
	OnDisconnected(func())
	// OnClosed sets a callback for cleanup after a terminal close.
	OnClosed(func())

	// CreateDataChannel opens a logical channel over the connection.
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (*webrtc.DataChannel, error)
	// OnDataChannel fires for channels announced by the remote side.
	OnDataChannel(func(*webrtc.DataChannel))
	// AddLocalTrack attaches a local static RTP track to the underlying PeerConnection.
	AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error)
}
