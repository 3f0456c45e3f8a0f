package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyChannelConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyChannelConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 400, cfg.GetMaxChunkBytes())
	assert.Equal(t, 520, cfg.GetPatternFootprintPx())
	assert.Equal(t, 2, cfg.GetQuietZoneModules())
	assert.Equal(t, 0.12, cfg.GetOpacity())
	assert.Equal(t, PlacementRandom, cfg.GetPlacement())
	assert.Equal(t, 20, cfg.GetPlacementMarginPx())
	assert.Equal(t, 0, cfg.GetWindowPx())
	assert.Equal(t, 3, cfg.GetStrideDivisor())
	assert.Equal(t, 93, cfg.GetDarkThreshold())
	assert.Equal(t, 162, cfg.GetLightThreshold())
	assert.Equal(t, 500, cfg.GetMinPatternPixels())
	assert.Equal(t, 0.3, cfg.GetMaxMissingRatio())
	assert.Equal(t, 0, cfg.GetMaxFrames())
	assert.GreaterOrEqual(t, cfg.GetWorkers(), 1)
	assert.Equal(t, KnownStrategies, cfg.GetStrategies())
	assert.Equal(t, KnownBackends, cfg.GetBackends())

	_, _, ok := cfg.GetPaletteValues()
	assert.False(t, ok)
}

func TestDefaultsFileMatchesAccessors(t *testing.T) {
	t.Parallel()

	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultChannelConfig(), fromFile); diff != "" {
		t.Errorf("defaults file drifted from accessors (-code +file):\n%s", diff)
	}
}

func TestLoadChannelConfig_JSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "c.json", `{
  "max_chunk_bytes": 64,
  "opacity": 0.3,
  "placement": "fixed",
  "fixed_x": 12,
  "fixed_y": 34,
  "strategies": ["otsu"]
}`)
	cfg, err := LoadChannelConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.GetMaxChunkBytes())
	assert.Equal(t, 0.3, cfg.GetOpacity())
	assert.Equal(t, PlacementFixed, cfg.GetPlacement())
	x, y := cfg.GetFixedPosition()
	assert.Equal(t, 12, x)
	assert.Equal(t, 34, y)
	assert.Equal(t, []string{"otsu"}, cfg.GetStrategies())
	// Unset fields keep defaults.
	assert.Equal(t, 520, cfg.GetPatternFootprintPx())
}

func TestLoadChannelConfig_TOML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "c.toml", `
opacity = 1.0
dark_value = 0
light_value = 255
backends = ["goqr", "zxing"]
workers = 2
`)
	cfg, err := LoadChannelConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.GetOpacity())
	dark, light, ok := cfg.GetPaletteValues()
	assert.True(t, ok)
	assert.Equal(t, uint8(0), dark)
	assert.Equal(t, uint8(255), light)
	assert.Equal(t, []string{"goqr", "zxing"}, cfg.GetBackends())
	assert.Equal(t, 2, cfg.GetWorkers())
}

func TestLoadChannelConfig_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "c.yaml", "{}", "extension"},
		{"bad json", "c.json", "{", "parse config JSON"},
		{"bad toml", "c.toml", "opacity = ", "parse config TOML"},
		{"opacity range", "c.json", `{"opacity": 1.5}`, "opacity"},
		{"unknown strategy", "c.json", `{"strategies": ["sobel"]}`, "unknown entry"},
		{"unknown backend", "c.json", `{"backends": ["zbar"]}`, "unknown entry"},
		{"threshold order", "c.json", `{"dark_threshold": 200}`, "dark_threshold"},
		{"palette half set", "c.json", `{"dark_value": 3}`, "set together"},
		{"palette order", "c.json", `{"dark_value": 200, "light_value": 100}`, "below light_value"},
		{"placement", "c.json", `{"placement": "diagonal"}`, "placement"},
		{"stride", "c.json", `{"stride_divisor": 1}`, "stride_divisor"},
		{"window too small", "c.json", `{"window_px": 100}`, "window_px"},
		{"ratio", "c.json", `{"max_missing_ratio": -0.1}`, "max_missing_ratio"},
		{"workers", "c.json", `{"workers": 0}`, "workers"},
		{"max frames", "c.json", `{"max_frames": -1}`, "max_frames"},
		{"window stddev", "c.json", `{"min_window_stddev": -2}`, "min_window_stddev"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadChannelConfig(writeConfig(t, tc.file, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadChannelConfig_SizeAndMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadChannelConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	big := `{"seed": 1` + strings.Repeat(" ", 1024*1024) + `}`
	_, err = LoadChannelConfig(writeConfig(t, "big.json", big))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultChannelConfig(), cfg)

	cfg, err = LoadOrDefault(writeConfig(t, "c.json", `{"opacity": 0.2, "max_frames": 0}`))
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.GetOpacity())
	assert.Equal(t, 0, cfg.GetMaxFrames())
}
