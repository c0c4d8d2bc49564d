package effects

import "errors"

// Segmenter computes a foreground mask for one frame.
type Segmenter interface {
	Segment(f *Frame) (*Mask, error)
}

var ErrNotCalibrated = errors.New("segmenter has no reference background")

// ColorDistanceSegmenter classifies pixels by color distance against a
// reference frame of the empty background. It works on a downsampled grid
// and fills whole blocks, trading edge precision for a predictable cost.
type ColorDistanceSegmenter struct {
	ref        *Frame
	Downsample int
	Threshold  int
}

func NewColorDistanceSegmenter() *ColorDistanceSegmenter {
	return &ColorDistanceSegmenter{Downsample: 4, Threshold: 96}
}

// Calibrate stores the empty background the distances are measured against.
func (s *ColorDistanceSegmenter) Calibrate(f *Frame) {
	s.ref = f.Clone()
}

func (s *ColorDistanceSegmenter) Segment(f *Frame) (*Mask, error) {
	if s.ref == nil {
		return nil, ErrNotCalibrated
	}
	if s.ref.Width != f.Width || s.ref.Height != f.Height {
		return nil, errors.New("frame size differs from reference")
	}

	step := s.Downsample
	if step < 1 {
		step = 1
	}
	mask := &Mask{Width: f.Width, Height: f.Height, Data: make([]byte, f.Width*f.Height), Seq: f.Seq}

	for y := 0; y < f.Height; y += step {
		for x := 0; x < f.Width; x += step {
			off := (y*f.Width + x) * 4
			d := absDiff(f.Pix[off], s.ref.Pix[off]) +
				absDiff(f.Pix[off+1], s.ref.Pix[off+1]) +
				absDiff(f.Pix[off+2], s.ref.Pix[off+2])
			var v byte
			if d > s.Threshold {
				v = 255
			}
			fillBlock(mask, x, y, step, v)
		}
	}
	return mask, nil
}

func fillBlock(m *Mask, x, y, step int, v byte) {
	for dy := 0; dy < step && y+dy < m.Height; dy++ {
		row := (y+dy)*m.Width + x
		for dx := 0; dx < step && x+dx < m.Width; dx++ {
			m.Data[row+dx] = v
		}
	}
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
