package effects

// BoxBlur blurs a frame with a two-pass box filter. The radius is in
// pixels and a radius of 0 returns an unmodified clone.
func BoxBlur(f *Frame, radius int) *Frame {
	out := f.Clone()
	if radius <= 0 {
		return out
	}
	tmp := make([]byte, len(f.Pix))
	blurAxis(f.Pix, tmp, f.Width, f.Height, radius, true)
	blurAxis(tmp, out.Pix, f.Width, f.Height, radius, false)
	return out
}

// blurAxis runs a sliding-window average along one axis. Window sums update
// incrementally so cost is independent of the radius.
func blurAxis(src, dst []byte, width, height, radius int, horizontal bool) {
	outer, inner := height, width
	if !horizontal {
		outer, inner = width, height
	}
	idx := func(o, i int) int {
		if horizontal {
			return (o*width + i) * 4
		}
		return (i*width + o) * 4
	}

	for o := 0; o < outer; o++ {
		var sum [4]int
		count := 0
		for i := 0; i <= radius && i < inner; i++ {
			off := idx(o, i)
			for c := 0; c < 4; c++ {
				sum[c] += int(src[off+c])
			}
			count++
		}
		for i := 0; i < inner; i++ {
			off := idx(o, i)
			for c := 0; c < 4; c++ {
				dst[off+c] = byte(sum[c] / count)
			}
			if lead := i + radius + 1; lead < inner {
				loff := idx(o, lead)
				for c := 0; c < 4; c++ {
					sum[c] += int(src[loff+c])
				}
				count++
			}
			if trail := i - radius; trail >= 0 {
				toff := idx(o, trail)
				for c := 0; c < 4; c++ {
					sum[c] -= int(src[toff+c])
				}
				count--
			}
		}
	}
}
