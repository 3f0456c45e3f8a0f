package scan

import (
	"image"
	"math"
)

// CLAHE performs contrast-limited adaptive histogram equalisation on g.
// The image is split into tiles×tiles regions, each region's histogram is
// clipped at clipLimit times the mean bin height with the excess spread
// evenly, and every pixel is mapped by bilinear interpolation between the
// four nearest tile mappings.
func CLAHE(g *image.Gray, tiles int, clipLimit float64) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return image.NewGray(image.Rect(0, 0, w, h))
	}
	tx := min(max(tiles, 1), w)
	ty := min(max(tiles, 1), h)
	xEdges := tileEdges(w, tx)
	yEdges := tileEdges(h, ty)

	luts := make([][256]uint8, tx*ty)
	for j := 0; j < ty; j++ {
		for i := 0; i < tx; i++ {
			r := image.Rect(xEdges[i], yEdges[j], xEdges[i+1], yEdges[j+1])
			luts[j*tx+i] = tileLUT(g, r, clipLimit)
		}
	}

	xs := interpolation(w, xEdges)
	ys := interpolation(h, yEdges)
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		yi := ys[y]
		for x := 0; x < w; x++ {
			xi := xs[x]
			v := g.Pix[y*g.Stride+x]
			top := (1-xi.f)*float64(luts[yi.lo*tx+xi.lo][v]) + xi.f*float64(luts[yi.lo*tx+xi.hi][v])
			bot := (1-xi.f)*float64(luts[yi.hi*tx+xi.lo][v]) + xi.f*float64(luts[yi.hi*tx+xi.hi][v])
			out.Pix[y*out.Stride+x] = uint8(math.Round((1-yi.f)*top + yi.f*bot))
		}
	}
	return out
}

func tileEdges(size, n int) []int {
	edges := make([]int, n+1)
	for i := range edges {
		edges[i] = i * size / n
	}
	return edges
}

type interp struct {
	lo, hi int
	f      float64
}

// interpolation precomputes, for every coordinate, the pair of tiles whose
// centres bracket it and the weight of the upper tile.
func interpolation(size int, edges []int) []interp {
	n := len(edges) - 1
	centres := make([]float64, n)
	for i := 0; i < n; i++ {
		centres[i] = float64(edges[i]+edges[i+1]-1) / 2
	}
	out := make([]interp, size)
	i := 0
	for p := 0; p < size; p++ {
		fp := float64(p)
		switch {
		case fp <= centres[0]:
			out[p] = interp{0, 0, 0}
		case fp >= centres[n-1]:
			out[p] = interp{n - 1, n - 1, 0}
		default:
			for centres[i+1] <= fp {
				i++
			}
			out[p] = interp{i, i + 1, (fp - centres[i]) / (centres[i+1] - centres[i])}
		}
	}
	return out
}

func tileLUT(g *image.Gray, r image.Rectangle, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for _, v := range g.Pix[y*g.Stride+r.Min.X : y*g.Stride+r.Max.X] {
			hist[v]++
		}
	}
	area := r.Dx() * r.Dy()

	if clipLimit > 0 {
		limit := max(1, int(clipLimit*float64(area)/256))
		excess := 0
		for i, c := range hist {
			if c > limit {
				excess += c - limit
				hist[i] = limit
			}
		}
		per, rem := excess/256, excess%256
		for i := range hist {
			hist[i] += per
			if i < rem {
				hist[i]++
			}
		}
	}

	var lut [256]uint8
	cdf := 0
	for i, c := range hist {
		cdf += c
		lut[i] = uint8(min(255, int(math.Round(float64(cdf)*255/float64(area)))))
	}
	return lut
}
