package scan

import (
	"fmt"
	"image"
)

// Enhancer turns a low-contrast window into a candidate bilevel image.
// Implementations must not modify the input.
type Enhancer interface {
	// Name returns the strategy name used in configuration and stats.
	Name() string

	// Enhance returns the enhanced window, or false when the strategy
	// finds nothing worth decoding.
	Enhance(win *image.Gray) (*image.Gray, bool)
}

// NewEnhancer builds the named strategy from cfg.
func NewEnhancer(name string, cfg Config) (Enhancer, error) {
	switch name {
	case "dual_threshold":
		return DualThreshold{Dark: cfg.DarkThreshold, Light: cfg.LightThreshold, MinPixels: cfg.MinPatternPixels}, nil
	case "adaptive_mean":
		return AdaptiveMean{Radius: cfg.AdaptiveRadius, C: cfg.AdaptiveC}, nil
	case "otsu":
		return Otsu{}, nil
	case "equalized_otsu":
		return EqualizedOtsu{ClipLimit: cfg.ClaheClipLimit, Tiles: cfg.ClaheTiles}, nil
	default:
		return nil, fmt.Errorf("unknown scan strategy %q", name)
	}
}

// DualThreshold pushes pixels at or below Dark to black and at or above
// Light to white, leaving the rest untouched. It only yields a candidate
// when both classes hold more than MinPixels pixels.
type DualThreshold struct {
	Dark      uint8
	Light     uint8
	MinPixels int
}

func (DualThreshold) Name() string { return "dual_threshold" }

func (d DualThreshold) Enhance(win *image.Gray) (*image.Gray, bool) {
	out := clone(win)
	var darkCount, lightCount int
	for i, v := range out.Pix {
		switch {
		case v <= d.Dark:
			out.Pix[i] = 0
			darkCount++
		case v >= d.Light:
			out.Pix[i] = 255
			lightCount++
		}
	}
	if darkCount <= d.MinPixels || lightCount <= d.MinPixels {
		return nil, false
	}
	return out, true
}

// AdaptiveMean binarises each pixel against the mean of its
// (2*Radius+1)² neighbourhood: white when above mean-C, black otherwise.
type AdaptiveMean struct {
	Radius int
	C      float64
}

func (AdaptiveMean) Name() string { return "adaptive_mean" }

func (a AdaptiveMean) Enhance(win *image.Gray) (*image.Gray, bool) {
	w, h := win.Rect.Dx(), win.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, false
	}
	r := a.Radius
	if r < 1 {
		r = 1
	}

	// integral has a zero row and column so box sums need no edge cases.
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(win.Pix[y*win.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := float64(sum) / float64((x1-x0)*(y1-y0))
			if float64(win.Pix[y*win.Stride+x]) > mean-a.C {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out, true
}

// Otsu binarises with the global threshold that maximises between-class
// variance. Windows with a single intensity produce no candidate.
type Otsu struct{}

func (Otsu) Name() string { return "otsu" }

func (Otsu) Enhance(win *image.Gray) (*image.Gray, bool) {
	t, ok := OtsuThreshold(win)
	if !ok {
		return nil, false
	}
	return threshold(win, t), true
}

// OtsuThreshold returns the Otsu split point of g's histogram. Pixels
// strictly above the returned level belong to the bright class.
func OtsuThreshold(g *image.Gray) (uint8, bool) {
	var hist [256]float64
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		for _, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			hist[v]++
		}
	}
	n := float64(w * h)
	var sum float64
	for i, c := range hist {
		sum += float64(i) * c
	}

	var sumB, wB, best float64
	level, found := 0, false
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := n - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * hist[t]
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best, level, found = between, t, true
		}
	}
	return uint8(level), found
}

func threshold(g *image.Gray, t uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x, v := range g.Pix[y*g.Stride : y*g.Stride+w] {
			if v > t {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// EqualizedOtsu applies contrast-limited tile equalisation before Otsu.
type EqualizedOtsu struct {
	ClipLimit float64
	Tiles     int
}

func (EqualizedOtsu) Name() string { return "equalized_otsu" }

func (e EqualizedOtsu) Enhance(win *image.Gray) (*image.Gray, bool) {
	return Otsu{}.Enhance(CLAHE(win, e.Tiles, e.ClipLimit))
}
