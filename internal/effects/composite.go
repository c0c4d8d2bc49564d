package effects

// Composite blends frame over background using the mask as per-pixel alpha:
// mask 255 keeps the frame pixel, mask 0 takes the background pixel,
// intermediate values feather the edge. Frame, background and mask must
// share dimensions.
func Composite(frame, background *Frame, mask *Mask) *Frame {
	out := frame.Clone()
	if background == nil || mask == nil {
		return out
	}
	if background.Width != frame.Width || background.Height != frame.Height ||
		mask.Width != frame.Width || mask.Height != frame.Height {
		return out
	}
	for p := 0; p < frame.Width*frame.Height; p++ {
		a := int(mask.Data[p])
		if a == 255 {
			continue
		}
		off := p * 4
		for c := 0; c < 4; c++ {
			fg := int(frame.Pix[off+c])
			bg := int(background.Pix[off+c])
			out.Pix[off+c] = byte((fg*a + bg*(255-a)) / 255)
		}
	}
	return out
}
