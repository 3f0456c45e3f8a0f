package scan

import (
	"fmt"

	"github.com/banshee-data/ghostframe/internal/config"
)

// Config holds the window geometry and enhancement parameters.
type Config struct {
	Window        int // window edge in pixels
	StrideDivisor int // windows advance by Window/StrideDivisor

	DarkThreshold    uint8
	LightThreshold   uint8
	MinPatternPixels int

	AdaptiveRadius int
	AdaptiveC      float64

	// MinStdDev skips windows whose intensity spread is below it.
	MinStdDev float64

	ClaheClipLimit float64
	ClaheTiles     int

	Strategies []string
}

// DefaultConfig returns scanning defaults for patterns of the given footprint.
func DefaultConfig(footprint int) Config {
	return ConfigFromChannel(config.EmptyChannelConfig(), footprint)
}

// ConfigFromChannel builds a scan Config from a loaded ChannelConfig.
// When window_px is unset, the window is sized so that any pattern of the
// given footprint lies wholly inside at least one window.
func ConfigFromChannel(c *config.ChannelConfig, footprint int) Config {
	k := c.GetStrideDivisor()
	window := c.GetWindowPx()
	if window == 0 {
		window = MinWindowFor(footprint, k)
	}
	return Config{
		Window:           window,
		StrideDivisor:    k,
		DarkThreshold:    uint8(c.GetDarkThreshold()),
		LightThreshold:   uint8(c.GetLightThreshold()),
		MinPatternPixels: c.GetMinPatternPixels(),
		AdaptiveRadius:   c.GetAdaptiveRadius(),
		AdaptiveC:        c.GetAdaptiveC(),
		MinStdDev:        c.GetMinWindowStdDev(),
		ClaheClipLimit:   c.GetClaheClipLimit(),
		ClaheTiles:       c.GetClaheTiles(),
		Strategies:       c.GetStrategies(),
	}
}

// Validate checks the scan parameters.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("Window must be positive, got %d", c.Window)
	}
	if c.StrideDivisor < 1 {
		return fmt.Errorf("StrideDivisor must be positive, got %d", c.StrideDivisor)
	}
	if c.DarkThreshold >= c.LightThreshold {
		return fmt.Errorf("DarkThreshold %d must be below LightThreshold %d", c.DarkThreshold, c.LightThreshold)
	}
	if c.MinStdDev < 0 {
		return fmt.Errorf("MinStdDev must be non-negative, got %f", c.MinStdDev)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("no scan strategies configured")
	}
	return nil
}
