package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// DefaultConfigPath is the path to the canonical channel defaults file.
const DefaultConfigPath = "config/channel.defaults.json"

// Placement modes.
const (
	PlacementRandom = "random"
	PlacementFixed  = "fixed"
)

// Scan strategy and decode backend names accepted in configuration.
var (
	KnownStrategies = []string{"dual_threshold", "adaptive_mean", "otsu", "equalized_otsu"}
	KnownBackends   = []string{"zxing", "zxing_inverted", "goqr"}
)

// ChannelConfig holds every tunable of the embed and extract sides.
// Unset fields fall back to the defaults returned by the Get* accessors,
// so partial files are safe.
type ChannelConfig struct {
	// Fragmentation and rendering
	MaxChunkBytes      *int `json:"max_chunk_bytes,omitempty" toml:"max_chunk_bytes"`
	PatternFootprintPx *int `json:"pattern_footprint_px,omitempty" toml:"pattern_footprint_px"`
	QuietZoneModules   *int `json:"quiet_zone_modules,omitempty" toml:"quiet_zone_modules"`
	TruncateBytes      *int `json:"truncate_bytes,omitempty" toml:"truncate_bytes"`

	// Blending
	Opacity    *float64 `json:"opacity,omitempty" toml:"opacity"`
	DarkValue  *int     `json:"dark_value,omitempty" toml:"dark_value"`   // derived from opacity when unset
	LightValue *int     `json:"light_value,omitempty" toml:"light_value"` // derived from opacity when unset

	// Placement
	Placement         *string `json:"placement,omitempty" toml:"placement"` // "random" or "fixed"
	FixedX            *int    `json:"fixed_x,omitempty" toml:"fixed_x"`
	FixedY            *int    `json:"fixed_y,omitempty" toml:"fixed_y"`
	PlacementMarginPx *int    `json:"placement_margin_px,omitempty" toml:"placement_margin_px"`
	Seed              *int64  `json:"seed,omitempty" toml:"seed"`

	// Scanning
	WindowPx         *int     `json:"window_px,omitempty" toml:"window_px"` // derived from footprint when unset
	StrideDivisor    *int     `json:"stride_divisor,omitempty" toml:"stride_divisor"`
	DarkThreshold    *int     `json:"dark_threshold,omitempty" toml:"dark_threshold"`
	LightThreshold   *int     `json:"light_threshold,omitempty" toml:"light_threshold"`
	MinPatternPixels *int     `json:"min_pattern_pixels,omitempty" toml:"min_pattern_pixels"`
	AdaptiveRadius   *int     `json:"adaptive_radius,omitempty" toml:"adaptive_radius"`
	AdaptiveC        *float64 `json:"adaptive_c,omitempty" toml:"adaptive_c"`
	MinWindowStdDev  *float64 `json:"min_window_stddev,omitempty" toml:"min_window_stddev"` // 0 skips only flat windows
	ClaheClipLimit   *float64 `json:"clahe_clip_limit,omitempty" toml:"clahe_clip_limit"`
	ClaheTiles       *int     `json:"clahe_tiles,omitempty" toml:"clahe_tiles"`
	Strategies       []string `json:"strategies,omitempty" toml:"strategies"`
	Backends         []string `json:"backends,omitempty" toml:"backends"`

	// Session
	MaxMissingRatio *float64 `json:"max_missing_ratio,omitempty" toml:"max_missing_ratio"`
	MaxFrames       *int     `json:"max_frames,omitempty" toml:"max_frames"`
	Workers         *int     `json:"workers,omitempty" toml:"workers"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyChannelConfig returns a ChannelConfig with all fields unset.
func EmptyChannelConfig() *ChannelConfig {
	return &ChannelConfig{}
}

// LoadChannelConfig loads a ChannelConfig from a .json or .toml file.
// The file must be under 1MB.
func LoadChannelConfig(path string) (*ChannelConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".toml" {
		return nil, fmt.Errorf("config file must have .json or .toml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	cfg := EmptyChannelConfig()
	if ext == ".toml" {
		if _, err := toml.DecodeFile(cleanPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	} else {
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ChannelConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadChannelConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// LoadOrDefault loads path, or returns DefaultChannelConfig when path is empty.
func LoadOrDefault(path string) (*ChannelConfig, error) {
	if path == "" {
		return DefaultChannelConfig(), nil
	}
	return LoadChannelConfig(path)
}

// Validate checks that the configuration values are valid.
func (c *ChannelConfig) Validate() error {
	if c.MaxChunkBytes != nil && *c.MaxChunkBytes < 1 {
		return fmt.Errorf("max_chunk_bytes must be at least 1, got %d", *c.MaxChunkBytes)
	}
	if c.PatternFootprintPx != nil && *c.PatternFootprintPx < 21 {
		return fmt.Errorf("pattern_footprint_px must be at least 21, got %d", *c.PatternFootprintPx)
	}
	if c.QuietZoneModules != nil && *c.QuietZoneModules < 0 {
		return fmt.Errorf("quiet_zone_modules must be non-negative, got %d", *c.QuietZoneModules)
	}
	if c.Opacity != nil && (*c.Opacity <= 0 || *c.Opacity > 1) {
		return fmt.Errorf("opacity must be in (0, 1], got %f", *c.Opacity)
	}
	for name, v := range map[string]*int{
		"dark_value":      c.DarkValue,
		"light_value":     c.LightValue,
		"dark_threshold":  c.DarkThreshold,
		"light_threshold": c.LightThreshold,
	} {
		if v != nil && (*v < 0 || *v > 255) {
			return fmt.Errorf("%s must be between 0 and 255, got %d", name, *v)
		}
	}
	if (c.DarkValue == nil) != (c.LightValue == nil) {
		return fmt.Errorf("dark_value and light_value must be set together")
	}
	if c.DarkValue != nil && *c.DarkValue >= *c.LightValue {
		return fmt.Errorf("dark_value %d must be below light_value %d", *c.DarkValue, *c.LightValue)
	}
	if c.GetDarkThreshold() >= c.GetLightThreshold() {
		return fmt.Errorf("dark_threshold %d must be below light_threshold %d", c.GetDarkThreshold(), c.GetLightThreshold())
	}
	if p := c.GetPlacement(); p != PlacementRandom && p != PlacementFixed {
		return fmt.Errorf("placement must be %q or %q, got %q", PlacementRandom, PlacementFixed, p)
	}
	if c.StrideDivisor != nil && *c.StrideDivisor < 2 {
		return fmt.Errorf("stride_divisor must be at least 2, got %d", *c.StrideDivisor)
	}
	if c.WindowPx != nil && *c.WindowPx < c.GetPatternFootprintPx() {
		return fmt.Errorf("window_px %d smaller than pattern_footprint_px %d", *c.WindowPx, c.GetPatternFootprintPx())
	}
	if c.ClaheTiles != nil && *c.ClaheTiles < 1 {
		return fmt.Errorf("clahe_tiles must be positive, got %d", *c.ClaheTiles)
	}
	if c.ClaheClipLimit != nil && *c.ClaheClipLimit <= 0 {
		return fmt.Errorf("clahe_clip_limit must be positive, got %f", *c.ClaheClipLimit)
	}
	if c.MaxMissingRatio != nil && (*c.MaxMissingRatio < 0 || *c.MaxMissingRatio > 1) {
		return fmt.Errorf("max_missing_ratio must be between 0 and 1, got %f", *c.MaxMissingRatio)
	}
	if c.MinWindowStdDev != nil && *c.MinWindowStdDev < 0 {
		return fmt.Errorf("min_window_stddev must be non-negative, got %f", *c.MinWindowStdDev)
	}
	if c.MaxFrames != nil && *c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be non-negative, got %d", *c.MaxFrames)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", *c.Workers)
	}
	if err := checkNames("strategies", c.Strategies, KnownStrategies); err != nil {
		return err
	}
	return checkNames("backends", c.Backends, KnownBackends)
}

func checkNames(field string, got, known []string) error {
	for _, name := range got {
		ok := false
		for _, k := range known {
			if name == k {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unknown entry %q in %s (known: %v)", name, field, known)
		}
	}
	return nil
}

// GetMaxChunkBytes returns the max_chunk_bytes value or the default.
func (c *ChannelConfig) GetMaxChunkBytes() int {
	if c.MaxChunkBytes == nil {
		return 400
	}
	return *c.MaxChunkBytes
}

// GetPatternFootprintPx returns the pattern_footprint_px value or the default.
func (c *ChannelConfig) GetPatternFootprintPx() int {
	if c.PatternFootprintPx == nil {
		return 520
	}
	return *c.PatternFootprintPx
}

// GetQuietZoneModules returns the quiet_zone_modules value or the default.
func (c *ChannelConfig) GetQuietZoneModules() int {
	if c.QuietZoneModules == nil {
		return 2
	}
	return *c.QuietZoneModules
}

// GetTruncateBytes returns the truncate_bytes value or the default.
func (c *ChannelConfig) GetTruncateBytes() int {
	if c.TruncateBytes == nil {
		return 400
	}
	return *c.TruncateBytes
}

// GetOpacity returns the opacity value or the default.
func (c *ChannelConfig) GetOpacity() float64 {
	if c.Opacity == nil {
		return 0.12
	}
	return *c.Opacity
}

// GetPaletteValues returns the explicit dark/light grey levels.
// ok is false when the palette should be derived from opacity.
func (c *ChannelConfig) GetPaletteValues() (dark, light uint8, ok bool) {
	if c.DarkValue == nil || c.LightValue == nil {
		return 0, 0, false
	}
	return uint8(*c.DarkValue), uint8(*c.LightValue), true
}

// GetPlacement returns the placement mode or the default.
func (c *ChannelConfig) GetPlacement() string {
	if c.Placement == nil || *c.Placement == "" {
		return PlacementRandom
	}
	return *c.Placement
}

// GetFixedPosition returns the fixed placement origin.
func (c *ChannelConfig) GetFixedPosition() (x, y int) {
	if c.FixedX != nil {
		x = *c.FixedX
	}
	if c.FixedY != nil {
		y = *c.FixedY
	}
	return x, y
}

// GetPlacementMarginPx returns the placement_margin_px value or the default.
func (c *ChannelConfig) GetPlacementMarginPx() int {
	if c.PlacementMarginPx == nil {
		return 20
	}
	return *c.PlacementMarginPx
}

// GetSeed returns the placement RNG seed or the default.
func (c *ChannelConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetWindowPx returns the explicit window size, or 0 when it should be
// derived from the footprint.
func (c *ChannelConfig) GetWindowPx() int {
	if c.WindowPx == nil {
		return 0
	}
	return *c.WindowPx
}

// GetStrideDivisor returns the stride_divisor value or the default.
func (c *ChannelConfig) GetStrideDivisor() int {
	if c.StrideDivisor == nil {
		return 3
	}
	return *c.StrideDivisor
}

// GetDarkThreshold returns the dark_threshold value or the default.
func (c *ChannelConfig) GetDarkThreshold() int {
	if c.DarkThreshold == nil {
		return 93
	}
	return *c.DarkThreshold
}

// GetLightThreshold returns the light_threshold value or the default.
func (c *ChannelConfig) GetLightThreshold() int {
	if c.LightThreshold == nil {
		return 162
	}
	return *c.LightThreshold
}

// GetMinPatternPixels returns the min_pattern_pixels value or the default.
func (c *ChannelConfig) GetMinPatternPixels() int {
	if c.MinPatternPixels == nil {
		return 500
	}
	return *c.MinPatternPixels
}

// GetAdaptiveRadius returns the adaptive_radius value or the default.
func (c *ChannelConfig) GetAdaptiveRadius() int {
	if c.AdaptiveRadius == nil {
		return 15
	}
	return *c.AdaptiveRadius
}

// GetMinWindowStdDev returns the min_window_stddev value or the default.
func (c *ChannelConfig) GetMinWindowStdDev() float64 {
	if c.MinWindowStdDev == nil {
		return 0
	}
	return *c.MinWindowStdDev
}

// GetAdaptiveC returns the adaptive_c value or the default.
func (c *ChannelConfig) GetAdaptiveC() float64 {
	if c.AdaptiveC == nil {
		return 2
	}
	return *c.AdaptiveC
}

// GetClaheClipLimit returns the clahe_clip_limit value or the default.
func (c *ChannelConfig) GetClaheClipLimit() float64 {
	if c.ClaheClipLimit == nil {
		return 3.0
	}
	return *c.ClaheClipLimit
}

// GetClaheTiles returns the clahe_tiles value or the default.
func (c *ChannelConfig) GetClaheTiles() int {
	if c.ClaheTiles == nil {
		return 8
	}
	return *c.ClaheTiles
}

// GetStrategies returns the configured scan strategies or all of them.
func (c *ChannelConfig) GetStrategies() []string {
	if len(c.Strategies) == 0 {
		return append([]string(nil), KnownStrategies...)
	}
	return c.Strategies
}

// GetBackends returns the configured decode backends or all of them.
func (c *ChannelConfig) GetBackends() []string {
	if len(c.Backends) == 0 {
		return append([]string(nil), KnownBackends...)
	}
	return c.Backends
}

// GetMaxMissingRatio returns the max_missing_ratio value or the default.
func (c *ChannelConfig) GetMaxMissingRatio() float64 {
	if c.MaxMissingRatio == nil {
		return 0.3
	}
	return *c.MaxMissingRatio
}

// GetMaxFrames returns the size of the sampled first scan pass. 0, the
// default, scans every frame in order.
func (c *ChannelConfig) GetMaxFrames() int {
	if c.MaxFrames == nil {
		return 0
	}
	return *c.MaxFrames
}

// GetWorkers returns the workers value or GOMAXPROCS.
func (c *ChannelConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// DefaultChannelConfig returns a config with every field populated with
// its default, matching config/channel.defaults.json.
func DefaultChannelConfig() *ChannelConfig {
	empty := EmptyChannelConfig()
	return &ChannelConfig{
		MaxChunkBytes:      ptrInt(empty.GetMaxChunkBytes()),
		PatternFootprintPx: ptrInt(empty.GetPatternFootprintPx()),
		QuietZoneModules:   ptrInt(empty.GetQuietZoneModules()),
		TruncateBytes:      ptrInt(empty.GetTruncateBytes()),
		Opacity:            ptrFloat64(empty.GetOpacity()),
		Placement:          ptrString(empty.GetPlacement()),
		PlacementMarginPx:  ptrInt(empty.GetPlacementMarginPx()),
		Seed:               ptrInt64(empty.GetSeed()),
		StrideDivisor:      ptrInt(empty.GetStrideDivisor()),
		DarkThreshold:      ptrInt(empty.GetDarkThreshold()),
		LightThreshold:     ptrInt(empty.GetLightThreshold()),
		MinPatternPixels:   ptrInt(empty.GetMinPatternPixels()),
		AdaptiveRadius:     ptrInt(empty.GetAdaptiveRadius()),
		AdaptiveC:          ptrFloat64(empty.GetAdaptiveC()),
		MinWindowStdDev:    ptrFloat64(empty.GetMinWindowStdDev()),
		ClaheClipLimit:     ptrFloat64(empty.GetClaheClipLimit()),
		ClaheTiles:         ptrInt(empty.GetClaheTiles()),
		Strategies:         empty.GetStrategies(),
		Backends:           empty.GetBackends(),
		MaxMissingRatio:    ptrFloat64(empty.GetMaxMissingRatio()),
		MaxFrames:          ptrInt(empty.GetMaxFrames()),
	}
}
