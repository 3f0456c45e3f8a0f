package scan

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ghostframe/internal/fsutil"
	"github.com/banshee-data/ghostframe/internal/testutil"
)

func TestMinWindowFor(t *testing.T) {
	t.Parallel()

	cases := []struct{ footprint, k, want int }{
		{240, 3, 358},
		{520, 3, 778},
		{100, 2, 197},
		{100, 1, 197}, // treated as 2
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MinWindowFor(tc.footprint, tc.k), "footprint %d k %d", tc.footprint, tc.k)
	}
}

// Every pattern position must be wholly inside some window.
func TestWindows_CoverEveryPlacement(t *testing.T) {
	t.Parallel()

	frame := image.Rect(0, 0, 640, 480)
	const footprint, k = 120, 3
	window := MinWindowFor(footprint, k)
	wins := Windows(frame, window, k)
	require.NotEmpty(t, wins)

	for y := 0; y+footprint <= frame.Dy(); y += 7 {
		for x := 0; x+footprint <= frame.Dx(); x += 7 {
			p := image.Rect(x, y, x+footprint, y+footprint)
			covered := false
			for _, w := range wins {
				if p.In(w) {
					covered = true
					break
				}
			}
			if !covered {
				t.Fatalf("pattern at %v not inside any window", p)
			}
		}
	}
}

func TestWindows_EdgeAlignedAndClipped(t *testing.T) {
	t.Parallel()

	wins := Windows(image.Rect(0, 0, 400, 400), 360, 3)
	assert.Equal(t, []image.Rectangle{
		image.Rect(0, 0, 360, 360),
		image.Rect(40, 0, 400, 360),
		image.Rect(0, 40, 360, 400),
		image.Rect(40, 40, 400, 400),
	}, wins)

	small := Windows(image.Rect(0, 0, 100, 50), 360, 3)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 100, 50)}, small)

	assert.Nil(t, Windows(image.Rectangle{}, 10, 3))
}

func grayFrom(vals [][]uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, len(vals[0]), len(vals)))
	for y, row := range vals {
		for x, v := range row {
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return g
}

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// halves returns a window whose left half is lo and right half hi.
func halves(w, h int, lo, hi uint8) *image.Gray {
	g := uniformGray(w, h, lo)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			g.SetGray(x, y, color.Gray{Y: hi})
		}
	}
	return g
}

func TestDualThreshold(t *testing.T) {
	t.Parallel()

	d := DualThreshold{Dark: 93, Light: 162, MinPixels: 2}
	in := grayFrom([][]uint8{
		{90, 90, 90, 128},
		{170, 170, 170, 100},
	})
	out, ok := d.Enhance(in)
	require.True(t, ok)
	assert.Equal(t, []uint8{0, 0, 0, 128, 255, 255, 255, 100}, out.Pix)
	assert.Equal(t, uint8(90), in.Pix[0], "input untouched")

	// Only two dark pixels: not more than MinPixels.
	sparse := grayFrom([][]uint8{{90, 90, 128, 128}, {170, 170, 170, 170}})
	_, ok = d.Enhance(sparse)
	assert.False(t, ok)
}

func TestOtsu(t *testing.T) {
	t.Parallel()

	_, ok := Otsu{}.Enhance(uniformGray(16, 16, 128))
	assert.False(t, ok, "uniform window yields no candidate")

	out, ok := Otsu{}.Enhance(halves(16, 16, 120, 136))
	require.True(t, ok)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(15, 15).Y)

	level, ok := OtsuThreshold(halves(16, 16, 120, 136))
	require.True(t, ok)
	assert.GreaterOrEqual(t, level, uint8(120))
	assert.Less(t, level, uint8(136))
}

func TestAdaptiveMean(t *testing.T) {
	t.Parallel()

	a := AdaptiveMean{Radius: 3, C: 2}
	out, ok := a.Enhance(uniformGray(10, 10, 128))
	require.True(t, ok)
	for _, v := range out.Pix {
		require.Equal(t, uint8(255), v, "flat region maps to white")
	}

	// A faint dark dot in a flat field becomes black; its surroundings stay white.
	in := uniformGray(11, 11, 128)
	in.SetGray(5, 5, color.Gray{Y: 118})
	out, _ = a.Enhance(in)
	assert.Equal(t, uint8(0), out.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y)
}

func TestCLAHE(t *testing.T) {
	t.Parallel()

	in := halves(128, 128, 120, 130)

	// Without clipping a single tile is plain histogram equalisation.
	eq := CLAHE(in, 1, 0)
	require.Equal(t, in.Rect, eq.Rect)
	assert.Equal(t, uint8(128), eq.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), eq.GrayAt(127, 127).Y)

	// Clipping limits the stretch but keeps the ordering.
	clipped := CLAHE(in, 2, 3.0)
	assert.Equal(t, uint8(124), clipped.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(133), clipped.GrayAt(127, 127).Y)

	flat := CLAHE(uniformGray(32, 32, 77), 4, 3.0)
	lo, hi := minMax(flat)
	assert.Equal(t, lo, hi, "uniform input stays uniform")

	_, ok := EqualizedOtsu{ClipLimit: 3, Tiles: 2}.Enhance(in)
	assert.True(t, ok)
}

func TestNewEnhancer_Unknown(t *testing.T) {
	t.Parallel()

	_, err := NewEnhancer("sobel", DefaultConfig(100))
	assert.Error(t, err)

	_, err = New(Config{Window: 10, StrideDivisor: 3, DarkThreshold: 1, LightThreshold: 2, Strategies: []string{"sobel"}})
	assert.Error(t, err)
}

func TestScanner_UniformFrameHasNoCandidates(t *testing.T) {
	t.Parallel()

	s, err := New(DefaultConfig(100))
	require.NoError(t, err)

	calls := 0
	stats := s.Scan(testutil.UniformFrame(320, 240, 128), func(image.Rectangle, *image.Gray, []Candidate) bool {
		calls++
		return true
	})
	assert.Zero(t, calls)
	assert.Equal(t, stats.Windows, stats.FlatWindows)
	assert.Zero(t, stats.Candidates)
}

func TestScanner_StopsWhenVisitReturnsFalse(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig(40)
	cfg.Strategies = []string{"otsu"}
	s, err := New(cfg)
	require.NoError(t, err)

	calls := 0
	stats := s.Scan(testutil.NoiseFrame(200, 200, 100, 160, 3), func(win image.Rectangle, orig *image.Gray, cands []Candidate) bool {
		calls++
		require.Len(t, cands, 1)
		assert.Equal(t, "otsu", cands[0].Strategy)
		assert.Equal(t, win, cands[0].Window)
		assert.Equal(t, win.Dx(), orig.Rect.Dx())
		return false
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, stats.ByStrategy["otsu"])
	assert.Positive(t, stats.MaxStdDev)
}

func TestScanner_SkipsLowContrastWindows(t *testing.T) {
	t.Parallel()

	frame := testutil.NoiseFrame(200, 200, 100, 160, 5)

	cfg := DefaultConfig(40)
	cfg.MinStdDev = 100
	s, err := New(cfg)
	require.NoError(t, err)
	calls := 0
	stats := s.Scan(frame, func(image.Rectangle, *image.Gray, []Candidate) bool {
		calls++
		return true
	})
	assert.Zero(t, calls)
	assert.Positive(t, stats.Windows)
	assert.Equal(t, stats.Windows, stats.LowContrast)
	assert.Zero(t, stats.Candidates)
	// Values in [100, 160] cannot spread by more than 30.
	assert.Greater(t, stats.MaxStdDev, 0.0)
	assert.LessOrEqual(t, stats.MaxStdDev, 31.0)

	cfg.MinStdDev = 1
	s, err = New(cfg)
	require.NoError(t, err)
	stats = s.Scan(frame, func(image.Rectangle, *image.Gray, []Candidate) bool { return true })
	assert.Zero(t, stats.LowContrast)
	assert.Positive(t, stats.Candidates)

	cfg.MinStdDev = -1
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := Stats(halves(4, 2, 100, 200))
	assert.InDelta(t, 150, s.Mean, 1e-9)
	assert.Equal(t, uint8(100), s.Min)
	assert.Equal(t, uint8(200), s.Max)
	assert.False(t, s.Flat())
	assert.True(t, Stats(uniformGray(3, 3, 7)).Flat())
}

func TestFrameStats_Add(t *testing.T) {
	t.Parallel()

	var total FrameStats
	total.Add(FrameStats{Windows: 2, Candidates: 3, ByStrategy: map[string]int{"otsu": 3}})
	total.Add(FrameStats{Windows: 1, FlatWindows: 1})
	total.Add(FrameStats{Windows: 2, LowContrast: 2, MaxStdDev: 4.5})
	total.Add(FrameStats{Windows: 1, MaxStdDev: 2})
	assert.Equal(t, 6, total.Windows)
	assert.Equal(t, 1, total.FlatWindows)
	assert.Equal(t, 2, total.LowContrast)
	assert.Equal(t, 4.5, total.MaxStdDev)
	assert.Equal(t, 3, total.ByStrategy["otsu"])
}

func TestPNGDebugSink_Cap(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	sink, err := NewPNGDebugSink(mfs, "/debug", 1)
	require.NoError(t, err)

	win := image.Rect(10, 20, 14, 22)
	orig := halves(4, 2, 0, 255)
	cands := []Candidate{{Strategy: "otsu", Window: win, Image: orig}}
	require.NoError(t, sink.Dump(3, win, orig, cands))
	require.NoError(t, sink.Dump(4, win, orig, cands))
	require.NoError(t, sink.Dump(5, win, orig, cands))
	assert.Equal(t, 1, sink.Written())

	entries, err := mfs.ReadDir("/debug")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, "f000003_x10_y20_original.png,f000003_x10_y20_otsu.png", strings.Join(names, ","))
}
