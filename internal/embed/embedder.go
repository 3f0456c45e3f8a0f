package embed

import (
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/ghostframe/internal/blend"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/pattern"
)

// Config controls how patterns are rendered and blended.
type Config struct {
	Footprint int           // pattern edge length in pixels
	Opacity   float64       // blend strength in [0, 1]
	Palette   blend.Palette // grey levels for on/off modules
	Pattern   pattern.Options
}

// Validate checks the embedding parameters.
func (c Config) Validate() error {
	if c.Footprint <= 0 {
		return fmt.Errorf("Footprint must be positive, got %d", c.Footprint)
	}
	if c.Opacity <= 0 || c.Opacity > 1 {
		return fmt.Errorf("Opacity must be in (0, 1], got %f", c.Opacity)
	}
	return c.Palette.Validate()
}

// Placement records where a fragment landed.
type Placement struct {
	Frame    int
	Fragment int
	At       image.Point
}

// Embedder renders fragment packages and blends them into frames.
type Embedder struct {
	cfg    Config
	placer Placer
}

// New creates an Embedder. The placer decides per-frame positions.
func New(cfg Config, placer Placer) (*Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embed config: %w", err)
	}
	if placer == nil {
		return nil, errors.New("embed: nil placer")
	}
	return &Embedder{cfg: cfg, placer: placer}, nil
}

// Prepare renders each package to an overlay image at the configured footprint.
func (e *Embedder) Prepare(packages [][]byte) ([]*image.RGBA, error) {
	overlays := make([]*image.RGBA, len(packages))
	for i, pkg := range packages {
		grid, err := pattern.Render(pkg, e.cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("render fragment %d: %w", i, err)
		}
		if grid.Truncated {
			monitoring.Logf("embed: fragment %d was truncated to fit a QR code and will fail verification", i)
		}
		img, err := pattern.ToPixels(grid, e.cfg.Footprint, e.cfg.Palette)
		if err != nil {
			return nil, fmt.Errorf("fragment %d pixels: %w", i, err)
		}
		overlays[i] = img
	}
	return overlays, nil
}

// Run applies a precomputed cadence to a stream of frames.
type Run struct {
	e        *Embedder
	overlays []*image.RGBA
	byFrame  map[int]int

	Plan     []Assignment
	Placed   []Placement
	Skipped  []int // frames whose placement was out of bounds
	Unplaced int   // fragments the cadence could not schedule
}

// Schedule computes the frame cadence for frameCount frames up front.
func (e *Embedder) Schedule(frameCount int, overlays []*image.RGBA) *Run {
	plan := PlanCadence(frameCount, len(overlays))
	byFrame := make(map[int]int, len(plan))
	for _, a := range plan {
		byFrame[a.Frame] = a.Fragment
	}
	if len(plan) < len(overlays) {
		monitoring.Logf("embed: only %d of %d fragments fit into %d frames", len(plan), len(overlays), frameCount)
	}
	return &Run{
		e:        e,
		overlays: overlays,
		byFrame:  byFrame,
		Plan:     plan,
		Unplaced: len(overlays) - len(plan),
	}
}

// Apply blends the scheduled fragment, if any, into frame index i.
// An out-of-bounds placement skips the frame and is not an error.
func (r *Run) Apply(i int, frame *image.RGBA) (placed bool, err error) {
	fragIdx, ok := r.byFrame[i]
	if !ok {
		return false, nil
	}
	at, ok := r.e.placer.Place(frame.Bounds(), r.e.cfg.Footprint)
	if !ok {
		monitoring.Logf("embed: frame %d (%v) too small for %dpx pattern, skipping fragment %d",
			i, frame.Bounds().Size(), r.e.cfg.Footprint, fragIdx)
		r.Skipped = append(r.Skipped, i)
		return false, nil
	}
	err = blend.Blend(frame, at, r.overlays[fragIdx], r.e.cfg.Opacity)
	if errors.Is(err, blend.ErrOutOfBounds) {
		monitoring.Logf("embed: frame %d placement %v out of bounds, skipping fragment %d", i, at, fragIdx)
		r.Skipped = append(r.Skipped, i)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blend fragment %d into frame %d: %w", fragIdx, i, err)
	}
	r.Placed = append(r.Placed, Placement{Frame: i, Fragment: fragIdx, At: at})
	return true, nil
}

// Embed renders packages and blends them into frames in place, following
// the cadence plan.
func (e *Embedder) Embed(frames []*image.RGBA, packages [][]byte) (*Run, error) {
	overlays, err := e.Prepare(packages)
	if err != nil {
		return nil, err
	}
	run := e.Schedule(len(frames), overlays)
	for i, f := range frames {
		if _, err := run.Apply(i, f); err != nil {
			return run, err
		}
	}
	return run, nil
}
