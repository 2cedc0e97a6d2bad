package artifacts

import (
	"fmt"
	"image"
)

// Viewport is the detected mobile-emulation viewport within a raw captured
// frame, plus the crop percentages relative to the full image (spec §4.6).
type Viewport struct {
	Width, Height   int
	X, Y            int
	LeftPct         float64
	TopPct          float64
	WidthPct        float64
	HeightPct       float64
	Geometry        string // "WxH+0+0"
}

const colorDeltaChannel = 15
const colorDeltaSum = 15

// DetectViewport implements spec §4.6's mobile-viewport derivation: if
// jobWidth/jobHeight are known and the image is at least that large, use
// them directly; otherwise flood-walk from pixel (10,10) rightward then
// downward until a pixel differs from the background by more than 15
// per-channel or 15 summed delta, and use the first differing column/row as
// the viewport bounds. Falls back to the full image dimensions if no
// differing pixel is found.
func DetectViewport(img image.Image, jobWidth, jobHeight int) Viewport {
	b := img.Bounds()
	fullW, fullH := b.Dx(), b.Dy()

	if jobWidth > 0 && jobHeight > 0 && fullW >= jobWidth && fullH >= jobHeight {
		return newViewport(jobWidth, jobHeight, fullW, fullH)
	}

	bgX, bgY := b.Min.X+10, b.Min.Y+10
	if bgX >= b.Max.X || bgY >= b.Max.Y {
		return newViewport(fullW, fullH, fullW, fullH)
	}
	bgR, bgG, bgBl, _ := img.At(bgX, bgY).RGBA()

	width := fullW
	for x := bgX; x < b.Max.X; x++ {
		r, g, bl, _ := img.At(x, bgY).RGBA()
		if !colorsAreSimilar(bgR, bgG, bgBl, r, g, bl) {
			width = x - b.Min.X
			break
		}
	}

	height := fullH
	for y := bgY; y < b.Max.Y; y++ {
		r, g, bl, _ := img.At(bgX, y).RGBA()
		if !colorsAreSimilar(bgR, bgG, bgBl, r, g, bl) {
			height = y - b.Min.Y
			break
		}
	}

	return newViewport(width, height, fullW, fullH)
}

func newViewport(w, h, fullW, fullH int) Viewport {
	v := Viewport{Width: w, Height: h, X: 0, Y: 0}
	v.Geometry = fmt.Sprintf("%dx%d+0+0", w, h)
	if fullW > 0 {
		v.WidthPct = 100 * float64(w) / float64(fullW)
	}
	if fullH > 0 {
		v.HeightPct = 100 * float64(h) / float64(fullH)
	}
	return v
}

// colorsAreSimilar mirrors devtools.py's colors_are_similar: channels are
// compared on their 8-bit values (RGBA() returns 16-bit, so shift down),
// matching within colorDeltaChannel per channel and colorDeltaSum summed.
func colorsAreSimilar(r1, g1, b1, r2, g2, b2 uint32) bool {
	dr := abs(int(r1>>8) - int(r2>>8))
	dg := abs(int(g1>>8) - int(g2>>8))
	db := abs(int(b1>>8) - int(b2>>8))
	if dr > colorDeltaChannel || dg > colorDeltaChannel || db > colorDeltaChannel {
		return false
	}
	return dr+dg+db <= colorDeltaSum
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
