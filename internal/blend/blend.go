// Package blend composites rendered patterns into frame pixels at a
// configurable opacity.
package blend

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrOutOfBounds is returned when the overlay would run off the frame.
	ErrOutOfBounds = errors.New("blend: region outside frame")
	// ErrInvalidOpacity is returned for opacity outside [0, 1].
	ErrInvalidOpacity = errors.New("blend: opacity must be within [0, 1]")
)

// Palette holds the two grey levels a grid is rendered with before blending.
type Palette struct {
	Dark  uint8
	Light uint8
}

// Validate checks Dark < Light.
func (p Palette) Validate() error {
	if p.Dark >= p.Light {
		return fmt.Errorf("blend: palette dark %d must be below light %d", p.Dark, p.Light)
	}
	return nil
}

// VisiblePalette is pure black on pure white, for test carriers.
var VisiblePalette = Palette{Dark: 0, Light: 255}

// PaletteForOpacity returns the near-extreme grey levels used at the
// invisible operating point. Higher opacity pushes both levels a little
// further toward black and white.
func PaletteForOpacity(opacity float64) Palette {
	boost := int(opacity * 20)
	return Palette{
		Dark:  uint8(max(0, 5-boost)),
		Light: uint8(min(255, 250+boost)),
	}
}

// Blend writes (1-opacity)*dst + opacity*overlay into dst at the given
// offset, per channel, rounded and clamped to [0, 255]. Alpha is left as is.
// At opacity 0 dst is unchanged; at 1 it becomes the overlay outright.
func Blend(dst *image.RGBA, at image.Point, overlay *image.RGBA, opacity float64) error {
	if math.IsNaN(opacity) || opacity < 0 || opacity > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidOpacity, opacity)
	}
	ob := overlay.Bounds()
	region := image.Rectangle{Min: at, Max: at.Add(ob.Size())}
	if !region.In(dst.Bounds()) {
		return fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, region, dst.Bounds())
	}

	w := ob.Dx() * 4
	for y := 0; y < ob.Dy(); y++ {
		di := dst.PixOffset(region.Min.X, region.Min.Y+y)
		oi := overlay.PixOffset(ob.Min.X, ob.Min.Y+y)
		drow := dst.Pix[di : di+w]
		orow := overlay.Pix[oi : oi+w]
		for i := 0; i < w; i += 4 {
			drow[i] = mix(drow[i], orow[i], opacity)
			drow[i+1] = mix(drow[i+1], orow[i+1], opacity)
			drow[i+2] = mix(drow[i+2], orow[i+2], opacity)
		}
	}
	return nil
}

func mix(bg, fg uint8, opacity float64) uint8 {
	v := (1-opacity)*float64(bg) + opacity*float64(fg)
	return clamp(math.Round(v))
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Delta is the absolute change blending applies to a background level when
// pulled toward target at the given opacity, before rounding.
func Delta(opacity float64, background, target uint8) float64 {
	return opacity * math.Abs(float64(target)-float64(background))
}

// MaxDelta is the largest change any pixel of the given background level
// sees under the palette. It increases monotonically with opacity.
func MaxDelta(opacity float64, background uint8, p Palette) float64 {
	return max(Delta(opacity, background, p.Dark), Delta(opacity, background, p.Light))
}
