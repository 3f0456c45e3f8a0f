// Package calibrate finds the lowest opacity at which an embedded fragment
// is still recovered by the scanner and decoder, and suggests binarisation
// thresholds from the pixels a carrier actually contains.
package calibrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ghostframe/internal/blend"
	"github.com/banshee-data/ghostframe/internal/config"
	"github.com/banshee-data/ghostframe/internal/decode"
	"github.com/banshee-data/ghostframe/internal/fragment"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/pattern"
	"github.com/banshee-data/ghostframe/internal/scan"
)

// RecommendationMargin is added to the minimum detectable opacity.
const RecommendationMargin = 0.02

// ErrNoOpacities is returned when a sweep is asked to test nothing.
var ErrNoOpacities = errors.New("calibrate: no opacities to sweep")

// DefaultOpacities returns 0.05 through 0.50 in steps of 0.05.
func DefaultOpacities() []float64 {
	out := make([]float64, 0, 10)
	for i := 1; i <= 10; i++ {
		out = append(out, float64(i)*0.05)
	}
	return out
}

// Options configures a sweep.
type Options struct {
	Opacities    []float64
	PayloadBytes int
	Seed         int64
	Background   uint8

	MaxChunkBytes int
	Footprint     int
	Pattern       pattern.Options
	Palette       *blend.Palette // nil derives the palette from each opacity
	Scan          scan.Config
	Backends      []string
}

// OptionsFromChannel builds sweep options from a ChannelConfig.
func OptionsFromChannel(c *config.ChannelConfig) Options {
	opts := Options{
		Opacities:     DefaultOpacities(),
		PayloadBytes:  c.GetMaxChunkBytes(),
		Seed:          c.GetSeed(),
		Background:    128,
		MaxChunkBytes: c.GetMaxChunkBytes(),
		Footprint:     c.GetPatternFootprintPx(),
		Pattern: pattern.Options{
			QuietZone:     c.GetQuietZoneModules(),
			TruncateBytes: c.GetTruncateBytes(),
		},
		Scan:     scan.ConfigFromChannel(c, c.GetPatternFootprintPx()),
		Backends: c.GetBackends(),
	}
	if dark, light, ok := c.GetPaletteValues(); ok {
		opts.Palette = &blend.Palette{Dark: dark, Light: light}
	}
	return opts
}

// Point is the outcome at one opacity.
type Point struct {
	Opacity  float64
	MaxDelta float64
	Detected bool
	Strategy string
	Backend  string
	DarkQ25  float64
	LightQ75 float64
}

// Thresholds are suggested dual-threshold cutoffs.
type Thresholds struct {
	Dark  uint8
	Light uint8
}

// Result summarises a sweep.
type Result struct {
	Points []Point

	// MinDetectable is the lowest opacity that was recovered. Found is
	// false when no opacity was.
	MinDetectable float64
	Found         bool
	Recommended   float64

	Thresholds Thresholds
}

// Sweep embeds one test fragment at each opacity into a uniform frame one
// scan window in size and tries to recover it.
func Sweep(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Opacities) == 0 {
		return nil, ErrNoOpacities
	}
	if opts.PayloadBytes < 1 {
		return nil, fmt.Errorf("calibrate: payload bytes must be positive, got %d", opts.PayloadBytes)
	}
	scanner, err := scan.New(opts.Scan)
	if err != nil {
		return nil, err
	}
	dec, err := decode.New(opts.Backends)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, opts.PayloadBytes)
	rand.New(rand.NewSource(opts.Seed)).Read(payload)
	packages, err := fragment.Split(payload, opts.MaxChunkBytes)
	if err != nil {
		return nil, err
	}
	want := packages[0]
	grid, err := pattern.Render(want, opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("render test fragment: %w", err)
	}

	side := max(opts.Scan.Window, opts.Footprint)
	at := image.Pt((side-opts.Footprint)/2, (side-opts.Footprint)/2)
	region := image.Rectangle{Min: at, Max: at.Add(image.Pt(opts.Footprint, opts.Footprint))}

	res := &Result{Points: make([]Point, 0, len(opts.Opacities))}
	for _, opacity := range opts.Opacities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		palette := blend.PaletteForOpacity(opacity)
		if opts.Palette != nil {
			palette = *opts.Palette
		}
		overlay, err := pattern.ToPixels(grid, opts.Footprint, palette)
		if err != nil {
			return nil, err
		}
		frame := uniform(side, opts.Background)
		if err := blend.Blend(frame, at, overlay, opacity); err != nil {
			return nil, fmt.Errorf("opacity %.2f: %w", opacity, err)
		}

		p := Point{Opacity: opacity, MaxDelta: blend.MaxDelta(opacity, opts.Background, palette)}
		p.DarkQ25, p.LightQ75 = Quartiles(scan.Gray(frame, region))
		scanner.Scan(frame, func(_ image.Rectangle, _ *image.Gray, cands []scan.Candidate) bool {
			r, _, err := dec.DecodeFirst(cands)
			if err != nil || !bytes.Equal(r.Package, want) {
				return true
			}
			p.Detected, p.Strategy, p.Backend = true, r.Strategy, r.Backend
			return false
		})
		monitoring.Logf("calibrate: opacity %.2f max delta %.1f detected=%t %s/%s",
			p.Opacity, p.MaxDelta, p.Detected, p.Strategy, p.Backend)
		res.Points = append(res.Points, p)
	}

	res.summarise()
	return res, nil
}

func (r *Result) summarise() {
	var darks, lights []float64
	for _, p := range r.Points {
		if p.Detected && (!r.Found || p.Opacity < r.MinDetectable) {
			r.MinDetectable, r.Found = p.Opacity, true
		}
		if p.Detected {
			darks = append(darks, p.DarkQ25)
			lights = append(lights, p.LightQ75)
		}
	}
	if r.Found {
		r.Recommended = min(1, r.MinDetectable+RecommendationMargin)
	}
	// Without any detection every point still describes the carrier.
	if len(darks) == 0 {
		for _, p := range r.Points {
			darks = append(darks, p.DarkQ25)
			lights = append(lights, p.LightQ75)
		}
	}
	r.Thresholds = meanThresholds(darks, lights)
}

// Quartiles returns the 25th and 75th intensity percentiles of g.
func Quartiles(g *image.Gray) (q25, q75 float64) {
	vals := scan.Values(g)
	if len(vals) == 0 {
		return 0, 0
	}
	slices.Sort(vals)
	return stat.Quantile(0.25, stat.Empirical, vals, nil), stat.Quantile(0.75, stat.Empirical, vals, nil)
}

// meanThresholds averages per-region lower and upper quartiles into levels.
func meanThresholds(darks, lights []float64) Thresholds {
	if len(darks) == 0 {
		return Thresholds{}
	}
	return Thresholds{Dark: toLevel(stat.Mean(darks, nil)), Light: toLevel(stat.Mean(lights, nil))}
}

func toLevel(v float64) uint8 {
	return uint8(min(255, max(0, v+0.5)))
}

func uniform(side int, grey uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = grey, grey, grey, 255
	}
	return img
}
