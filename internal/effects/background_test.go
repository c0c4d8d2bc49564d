package effects

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFrameFromImageScales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	f := FrameFromImage(img, 4, 4)
	if f.Width != 4 || f.Height != 4 {
		t.Fatalf("frame %dx%d, want 4x4", f.Width, f.Height)
	}
	// Top-left quadrant samples the red source pixel.
	if f.Pix[0] != 255 || f.Pix[1] != 0 || f.Pix[2] != 0 {
		t.Fatalf("top-left = (%d,%d,%d), want red", f.Pix[0], f.Pix[1], f.Pix[2])
	}
	// Bottom-right quadrant samples the white source pixel.
	off := (3*4 + 3) * 4
	if f.Pix[off] != 255 || f.Pix[off+1] != 255 || f.Pix[off+2] != 255 {
		t.Fatalf("bottom-right = (%d,%d,%d), want white", f.Pix[off], f.Pix[off+1], f.Pix[off+2])
	}
}

func TestLoadBackgroundRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 80, B: 120, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "bg.png")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(out, img); err != nil {
		t.Fatal(err)
	}
	out.Close()

	f, err := LoadBackground(path, 16, 16)
	if err != nil {
		t.Fatalf("LoadBackground() error = %v", err)
	}
	if f.Width != 16 || f.Height != 16 {
		t.Fatalf("frame %dx%d, want 16x16", f.Width, f.Height)
	}
	if f.Pix[0] != 40 || f.Pix[1] != 80 || f.Pix[2] != 120 {
		t.Fatalf("pixel = (%d,%d,%d), want (40,80,120)", f.Pix[0], f.Pix[1], f.Pix[2])
	}
}

func TestLoadBackgroundMissingFile(t *testing.T) {
	if _, err := LoadBackground(filepath.Join(t.TempDir(), "nope.png"), 4, 4); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
