package scan

import (
	"image"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// Gray converts the r region of img to a zero-origin luminance image.
func Gray(img image.Image, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// crop copies r (in g's coordinates) into a new zero-origin image.
func crop(g *image.Gray, r image.Rectangle) *image.Gray {
	return clone(g.SubImage(r).(*image.Gray))
}

// clone returns a zero-origin deep copy of g.
func clone(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}

// WindowStats summarises the intensity distribution of a window.
type WindowStats struct {
	Mean   float64
	StdDev float64
	Min    uint8
	Max    uint8
}

// Flat reports whether every pixel has the same value.
func (s WindowStats) Flat() bool { return s.Min == s.Max }

// Stats computes intensity statistics over every pixel of g.
func Stats(g *image.Gray) WindowStats {
	b := g.Bounds()
	if b.Empty() {
		return WindowStats{}
	}
	lo, hi := minMax(g)
	mean, std := stat.MeanStdDev(Values(g), nil)
	return WindowStats{Mean: mean, StdDev: std, Min: lo, Max: hi}
}

func minMax(g *image.Gray) (lo, hi uint8) {
	b := g.Bounds()
	lo, hi = 255, 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := g.PixOffset(b.Min.X, y)
		for _, v := range g.Pix[off : off+b.Dx()] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

// Values returns the pixel intensities of g as float64s, row-major.
func Values(g *image.Gray) []float64 {
	b := g.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out = append(out, float64(g.GrayAt(x, y).Y))
		}
	}
	return out
}
