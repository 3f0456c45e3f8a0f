package blend

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 0xff
	}
	return img
}

func checker(size int, p Palette) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := p.Light
			if (x+y)%2 == 0 {
				v = p.Dark
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 0xff})
		}
	}
	return img
}

func TestBlend_Extremes(t *testing.T) {
	t.Parallel()

	overlay := checker(4, VisiblePalette)

	t.Run("zero opacity leaves region unchanged", func(t *testing.T) {
		t.Parallel()
		frame := solid(10, 10, 128)
		require.NoError(t, Blend(frame, image.Pt(3, 3), overlay, 0))
		assert.Equal(t, solid(10, 10, 128).Pix, frame.Pix)
	})

	t.Run("full opacity copies overlay", func(t *testing.T) {
		t.Parallel()
		frame := solid(10, 10, 128)
		require.NoError(t, Blend(frame, image.Pt(3, 3), overlay, 1))
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				assert.Equal(t, overlay.RGBAAt(x, y), frame.RGBAAt(x+3, y+3))
			}
		}
		assert.Equal(t, uint8(128), frame.RGBAAt(0, 0).R)
	})
}

func TestBlend_MonotonicDelta(t *testing.T) {
	t.Parallel()

	p := PaletteForOpacity(0.12)
	overlay := checker(6, p)
	backgrounds := []uint8{60, 128, 200}
	opacities := []float64{0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 0.8}

	for _, bg := range backgrounds {
		prev := make([]int, 36)
		for i := range prev {
			prev[i] = -1
		}
		for _, op := range opacities {
			frame := solid(6, 6, bg)
			require.NoError(t, Blend(frame, image.Pt(0, 0), overlay, op))
			for y := 0; y < 6; y++ {
				for x := 0; x < 6; x++ {
					d := int(frame.RGBAAt(x, y).R) - int(bg)
					if d < 0 {
						d = -d
					}
					idx := y*6 + x
					assert.Greater(t, d, prev[idx], "bg=%d opacity=%.2f pixel=(%d,%d)", bg, op, x, y)
					prev[idx] = d
				}
			}
		}
	}
}

func TestBlend_Errors(t *testing.T) {
	t.Parallel()

	frame := solid(10, 10, 128)
	overlay := solid(4, 4, 0)

	assert.ErrorIs(t, Blend(frame, image.Pt(7, 0), overlay, 0.1), ErrOutOfBounds)
	assert.ErrorIs(t, Blend(frame, image.Pt(-1, 0), overlay, 0.1), ErrOutOfBounds)
	assert.ErrorIs(t, Blend(frame, image.Pt(0, 0), overlay, 1.5), ErrInvalidOpacity)
	assert.ErrorIs(t, Blend(frame, image.Pt(0, 0), overlay, -0.1), ErrInvalidOpacity)
	assert.NoError(t, Blend(frame, image.Pt(6, 6), overlay, 0.1))
}

func TestPaletteForOpacity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		opacity float64
		want    Palette
	}{
		{0.0, Palette{Dark: 5, Light: 250}},
		{0.12, Palette{Dark: 3, Light: 252}},
		{0.2, Palette{Dark: 1, Light: 254}},
		{0.5, Palette{Dark: 0, Light: 255}},
		{1.0, Palette{Dark: 0, Light: 255}},
	}
	for _, tc := range cases {
		got := PaletteForOpacity(tc.opacity)
		assert.Equal(t, tc.want, got, "opacity %.2f", tc.opacity)
		assert.NoError(t, got.Validate())
	}
	assert.Error(t, Palette{Dark: 10, Light: 10}.Validate())
}

func TestMaxDelta_Invisible(t *testing.T) {
	t.Parallel()

	p := PaletteForOpacity(0.03)
	// near-black background only moves toward light, bounded by a few levels
	assert.InDelta(t, 0.03*250, MaxDelta(0.03, 0, p), 1e-9)
	assert.Less(t, MaxDelta(0.03, 128, p), 4.0)
	assert.Less(t, MaxDelta(0.05, 128, p), MaxDelta(0.10, 128, p))
}
