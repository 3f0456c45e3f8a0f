// Package pattern renders fragment packages as bilevel QR module grids and
// maps grids to carrier-ready pixels.
package pattern

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	"golang.org/x/image/draw"

	"github.com/banshee-data/ghostframe/internal/blend"
	"github.com/banshee-data/ghostframe/internal/monitoring"
)

// MaxHighRedundancyChars is the byte-mode capacity of a version 40 QR code
// at error correction level H. Longer texts are encoded at level L.
const MaxHighRedundancyChars = 1273

// ErrEmptyInput is returned when asked to render zero bytes.
var ErrEmptyInput = errors.New("pattern: empty input")

// Grid is a square matrix of QR modules including the quiet zone.
// Modules[y*Size+x] is true for an "on" (dark) module.
type Grid struct {
	Size    int
	Modules []bool

	// Level is the error correction level the grid was encoded with.
	Level string
	// Truncated is set when the input had to be shortened to fit.
	Truncated bool
}

// At reports whether the module at (x, y) is on.
func (g *Grid) At(x, y int) bool {
	return g.Modules[y*g.Size+x]
}

// Options controls grid generation.
type Options struct {
	// QuietZone is the border width in modules (default 2).
	QuietZone int
	// TruncateBytes is the raw input length retained when the full input
	// cannot be encoded at any level (default 400).
	TruncateBytes int
}

// DefaultOptions returns the rendering defaults.
func DefaultOptions() Options {
	return Options{QuietZone: 2, TruncateBytes: 400}
}

// Render base64-encodes data and produces the module grid for it.
// Inputs that do not fit at any error correction level are truncated to
// opts.TruncateBytes and encoded once more.
func Render(data []byte, opts Options) (*Grid, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if opts.QuietZone < 0 {
		opts.QuietZone = 0
	}

	text := base64.StdEncoding.EncodeToString(data)
	grid, err := encodeText(text, opts.QuietZone)
	if err == nil {
		return grid, nil
	}

	if opts.TruncateBytes <= 0 || opts.TruncateBytes >= len(data) {
		return nil, fmt.Errorf("render %d bytes: %w", len(data), err)
	}
	monitoring.Logf("pattern: %d bytes do not fit (%v), truncating to %d", len(data), err, opts.TruncateBytes)
	text = base64.StdEncoding.EncodeToString(data[:opts.TruncateBytes])
	grid, err = encodeText(text, opts.QuietZone)
	if err != nil {
		return nil, fmt.Errorf("render truncated input: %w", err)
	}
	grid.Truncated = true
	return grid, nil
}

// LevelFor picks the error correction level for an encoded text length.
func LevelFor(textLen int) decoder.ErrorCorrectionLevel {
	if textLen > MaxHighRedundancyChars {
		return decoder.ErrorCorrectionLevel_L
	}
	return decoder.ErrorCorrectionLevel_H
}

func levelName(level decoder.ErrorCorrectionLevel) string {
	if level == decoder.ErrorCorrectionLevel_L {
		return "L"
	}
	return "H"
}

func encodeText(text string, quietZone int) (*Grid, error) {
	level := LevelFor(len(text))
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_ERROR_CORRECTION: level,
		gozxing.EncodeHintType_MARGIN:           quietZone,
	}
	// Width and height 0 yield one pixel per module.
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 0, 0, hints)
	if err != nil {
		return nil, err
	}

	size := matrix.GetWidth()
	if h := matrix.GetHeight(); h != size {
		return nil, fmt.Errorf("pattern: non-square matrix %dx%d", size, h)
	}
	grid := &Grid{Size: size, Modules: make([]bool, size*size), Level: levelName(level)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			grid.Modules[y*size+x] = matrix.Get(x, y)
		}
	}
	return grid, nil
}

// ToPixels maps on modules to the palette's dark grey and off modules to its
// light grey, upsampled with nearest-neighbour scaling to footprint pixels square.
func ToPixels(g *Grid, footprint int, p blend.Palette) (*image.RGBA, error) {
	if g == nil || g.Size == 0 {
		return nil, errors.New("pattern: empty grid")
	}
	if footprint < g.Size {
		return nil, fmt.Errorf("pattern: footprint %d smaller than grid %d", footprint, g.Size)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	dark := color.RGBA{R: p.Dark, G: p.Dark, B: p.Dark, A: 0xff}
	light := color.RGBA{R: p.Light, G: p.Light, B: p.Light, A: 0xff}

	modules := image.NewRGBA(image.Rect(0, 0, g.Size, g.Size))
	for y := 0; y < g.Size; y++ {
		for x := 0; x < g.Size; x++ {
			if g.At(x, y) {
				modules.SetRGBA(x, y, dark)
			} else {
				modules.SetRGBA(x, y, light)
			}
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, footprint, footprint))
	draw.NearestNeighbor.Scale(out, out.Bounds(), modules, modules.Bounds(), draw.Src, nil)
	return out, nil
}
