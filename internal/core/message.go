package core

import (
	"encoding/json"
	"fmt"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgJoin         MessageType = "join"
	MsgLeave        MessageType = "leave"
	MsgOffer        MessageType = "offer"
	MsgAnswer       MessageType = "answer"
	MsgICE          MessageType = "ice"
	MsgPeerJoined   MessageType = "peer-joined"
	MsgPeerLeft     MessageType = "peer-left"
	MsgPeerReplaced MessageType = "peer-replaced"
	MsgError        MessageType = "error"
)

// Envelope is the tagged union exchanged over signaling, always scoped to
// room + sender identity. Unused fields are omitted per message type.
type Envelope struct {
	Type MessageType     `json:"type"`
	Room domain.RoomID   `json:"room,omitempty"`
	From domain.Identity `json:"from,omitempty"`
	Conn domain.ConnID   `json:"conn,omitempty"`

	SDP       string `json:"sdp,omitempty"`       // offer, answer
	Candidate string `json:"candidate,omitempty"` // ice (JSON-encoded ICECandidateInit)

	Identity domain.Identity `json:"identity,omitempty"` // peer-joined, peer-left
	OldConn  domain.ConnID   `json:"old_conn,omitempty"` // peer-replaced
	Error    string          `json:"error,omitempty"`
}

func (e Envelope) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.Type, err)
	}
	return Frame(b), nil
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return e, nil
}
