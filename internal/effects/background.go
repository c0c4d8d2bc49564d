package effects

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// LoadBackground reads a PNG or JPEG file and scales it to the given frame
// size with nearest-neighbor sampling. The result plugs straight into
// Pipeline.SetBackground.
func LoadBackground(path string, width, height int) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", path, err)
	}
	return FrameFromImage(img, width, height), nil
}

// FrameFromImage rasterizes an image into an RGBA frame of the requested
// size. Aspect ratio is not preserved; the image is stretched to fit.
func FrameFromImage(img image.Image, width, height int) *Frame {
	out := NewFrame(width, height)
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return out
	}
	for y := 0; y < height; y++ {
		sy := bounds.Min.Y + y*srcH/height
		for x := 0; x < width; x++ {
			sx := bounds.Min.X + x*srcW/width
			r, g, b, a := img.At(sx, sy).RGBA()
			off := (y*width + x) * 4
			out.Pix[off] = byte(r >> 8)
			out.Pix[off+1] = byte(g >> 8)
			out.Pix[off+2] = byte(b >> 8)
			out.Pix[off+3] = byte(a >> 8)
		}
	}
	return out
}
