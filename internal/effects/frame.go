package effects

import "time"

// Mode selects the background treatment applied to outgoing video.
type Mode string

const (
	ModeNone    Mode = "none"
	ModeBlur    Mode = "blur"
	ModeReplace Mode = "replace"
)

// Frame is one RGBA video frame, 4 bytes per pixel, row major.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
	Seq    uint64
	At     time.Time
}

func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix, Seq: f.Seq, At: f.At}
}
