package channel

import (
	"time"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// Channel labels. All four are ordered and reliable; the file channel
// carries binary frames, the rest carry JSON.
const (
	LabelChat       = "chat"
	LabelWhiteboard = "whiteboard"
	LabelControl    = "control"
	LabelFile       = "file"
)

type ChatMessage struct {
	From   domain.Identity `json:"from"`
	Text   string          `json:"text"`
	SentAt time.Time       `json:"sent_at"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one whiteboard drawing operation. Clear is a full wipe and
// carries no points.
type Stroke struct {
	From   domain.Identity `json:"from"`
	Color  string          `json:"color,omitempty"`
	Width  float64         `json:"width,omitempty"`
	Points []Point         `json:"points,omitempty"`
	Erase  bool            `json:"erase,omitempty"`
	Clear  bool            `json:"clear,omitempty"`
}

type ControlKind string

const (
	CtrlMicState    ControlKind = "mic"
	CtrlCameraState ControlKind = "camera"
	CtrlEffectState ControlKind = "effect"
	CtrlReaction    ControlKind = "reaction"
)

type ControlMessage struct {
	Kind   ControlKind     `json:"kind"`
	From   domain.Identity `json:"from"`
	On     bool            `json:"on,omitempty"`
	Value  string          `json:"value,omitempty"`
	SentAt time.Time       `json:"sent_at"`
}
