package embed

import (
	"image"
	"math/rand"
)

// Placer chooses the top-left corner for a square pattern inside a frame.
// ok is false when no in-bounds position exists.
type Placer interface {
	Name() string
	Place(frame image.Rectangle, footprint int) (pt image.Point, ok bool)
}

// FixedPlacer always uses the same coordinates relative to the frame origin.
type FixedPlacer struct {
	X, Y int
}

// Name returns the placement strategy name.
func (p FixedPlacer) Name() string { return "fixed" }

// Place returns the fixed point when the pattern fits there.
func (p FixedPlacer) Place(frame image.Rectangle, footprint int) (image.Point, bool) {
	pt := frame.Min.Add(image.Pt(p.X, p.Y))
	r := image.Rectangle{Min: pt, Max: pt.Add(image.Pt(footprint, footprint))}
	return pt, r.In(frame)
}

// maxPlacementAttempts bounds rejection sampling per frame.
const maxPlacementAttempts = 32

// RandomPlacer samples positions uniformly inside the frame shrunk by Margin
// on every side, rejecting candidates that would cross the margin.
// It is not safe for concurrent use.
type RandomPlacer struct {
	Margin int
	Rand   *rand.Rand
}

// NewRandomPlacer seeds a RandomPlacer.
func NewRandomPlacer(margin int, seed int64) *RandomPlacer {
	return &RandomPlacer{Margin: margin, Rand: rand.New(rand.NewSource(seed))}
}

// Name returns the placement strategy name.
func (p *RandomPlacer) Name() string { return "random" }

// Place samples a position. When the frame is too small for the margin the
// pattern is pinned at the margin corner if it still fits.
func (p *RandomPlacer) Place(frame image.Rectangle, footprint int) (image.Point, bool) {
	inner := frame.Inset(p.Margin)
	spanX := inner.Dx() - footprint
	spanY := inner.Dy() - footprint
	if spanX < 0 || spanY < 0 {
		pt := frame.Min.Add(image.Pt(p.Margin, p.Margin))
		r := image.Rectangle{Min: pt, Max: pt.Add(image.Pt(footprint, footprint))}
		return pt, r.In(frame)
	}

	for attempt := 0; attempt < maxPlacementAttempts; attempt++ {
		x := inner.Min.X + p.Rand.Intn(inner.Dx())
		y := inner.Min.Y + p.Rand.Intn(inner.Dy())
		r := image.Rect(x, y, x+footprint, y+footprint)
		if r.In(inner) {
			return r.Min, true
		}
	}
	x := inner.Min.X + p.Rand.Intn(spanX+1)
	y := inner.Min.Y + p.Rand.Intn(spanY+1)
	return image.Pt(x, y), true
}
