// Package testutil provides shared test fixtures for frame processing.
//
// Frames built here are deterministic so tests across packages can compare
// pixel buffers directly.
package testutil

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

// UniformFrame returns a w×h opaque frame filled with a single grey level.
func UniformFrame(w, h int, grey uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = grey
		img.Pix[i+1] = grey
		img.Pix[i+2] = grey
		img.Pix[i+3] = 0xff
	}
	return img
}

// NoiseFrame returns a frame of uniformly random grey levels in [lo, hi].
func NoiseFrame(w, h int, lo, hi uint8, seed int64) *image.RGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	span := int(hi) - int(lo) + 1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := uint8(int(lo) + r.Intn(span))
			img.SetRGBA(x, y, color.RGBA{g, g, g, 0xff})
		}
	}
	return img
}

// GradientFrame returns a horizontal grey ramp from lo on the left to hi on
// the right.
func GradientFrame(w, h int, lo, hi uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		g := uint8(int(lo))
		if w > 1 {
			g = uint8(int(lo) + (int(hi)-int(lo))*x/(w-1))
		}
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{g, g, g, 0xff})
		}
	}
	return img
}

// Frames returns n independent copies of UniformFrame.
func Frames(n, w, h int, grey uint8) []*image.RGBA {
	out := make([]*image.RGBA, n)
	for i := range out {
		out[i] = UniformFrame(w, h, grey)
	}
	return out
}

// Payload returns n deterministic pseudo-random bytes.
func Payload(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return b
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
