package pipeline

import (
	"fmt"

	"github.com/banshee-data/ghostframe/internal/blend"
	"github.com/banshee-data/ghostframe/internal/config"
	"github.com/banshee-data/ghostframe/internal/embed"
	"github.com/banshee-data/ghostframe/internal/pattern"
	"github.com/banshee-data/ghostframe/internal/scan"
	"github.com/banshee-data/ghostframe/internal/timeutil"
)

// ExtractOptions configures an Extractor.
type ExtractOptions struct {
	Scan            scan.Config
	Backends        []string
	MaxMissingRatio float64
	MaxFrames       int
	Workers         int

	// StopWhenComplete ends scanning as soon as every index is held.
	StopWhenComplete bool

	Clock      timeutil.Clock
	Debug      scan.DebugSink // optional
	Checkpoint Checkpoint     // optional
}

// ExtractOptionsFromChannel builds extraction options from a ChannelConfig.
func ExtractOptionsFromChannel(c *config.ChannelConfig) ExtractOptions {
	return ExtractOptions{
		Scan:             scan.ConfigFromChannel(c, c.GetPatternFootprintPx()),
		Backends:         c.GetBackends(),
		MaxMissingRatio:  c.GetMaxMissingRatio(),
		MaxFrames:        c.GetMaxFrames(),
		Workers:          c.GetWorkers(),
		StopWhenComplete: true,
		Clock:            timeutil.RealClock{},
	}
}

// EncodeOptions configures an Encoder.
type EncodeOptions struct {
	MaxChunkBytes int
	Embed         embed.Config
	Placer        embed.Placer
}

// EncodeOptionsFromChannel builds encode options from a ChannelConfig.
// Visible mode overrides opacity and palette for decoder validation.
func EncodeOptionsFromChannel(c *config.ChannelConfig, visible bool) (EncodeOptions, error) {
	opacity := c.GetOpacity()
	palette := blend.PaletteForOpacity(opacity)
	if dark, light, ok := c.GetPaletteValues(); ok {
		palette = blend.Palette{Dark: dark, Light: light}
	}
	if visible {
		opacity = 1.0
		palette = blend.VisiblePalette
	}

	var placer embed.Placer
	switch c.GetPlacement() {
	case config.PlacementFixed:
		x, y := c.GetFixedPosition()
		placer = embed.FixedPlacer{X: x, Y: y}
	case config.PlacementRandom:
		placer = embed.NewRandomPlacer(c.GetPlacementMarginPx(), c.GetSeed())
	default:
		return EncodeOptions{}, fmt.Errorf("unknown placement %q", c.GetPlacement())
	}

	return EncodeOptions{
		MaxChunkBytes: c.GetMaxChunkBytes(),
		Embed: embed.Config{
			Footprint: c.GetPatternFootprintPx(),
			Opacity:   opacity,
			Palette:   palette,
			Pattern: pattern.Options{
				QuietZone:     c.GetQuietZoneModules(),
				TruncateBytes: c.GetTruncateBytes(),
			},
		},
		Placer: placer,
	}, nil
}
