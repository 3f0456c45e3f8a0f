package scan

import "image"

// MinWindowFor returns the smallest window size such that, with stride
// window/k, every pattern of the given footprint lies wholly inside at least
// one window. A divisor below 2 is treated as 2.
func MinWindowFor(footprint, k int) int {
	if k < 2 {
		k = 2
	}
	w := footprint
	for w-w/k+1 < footprint {
		w++
	}
	return w
}

// Windows tiles bounds with square windows of the given size advancing by
// window/k. A final edge-aligned row and column are added so the right and
// bottom edges are always covered. Frames smaller than the window yield a
// single window clipped to the frame.
func Windows(bounds image.Rectangle, window, k int) []image.Rectangle {
	if bounds.Empty() || window <= 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	stride := window / k
	if stride < 1 {
		stride = 1
	}

	xs := starts(bounds.Min.X, bounds.Max.X, window, stride)
	ys := starts(bounds.Min.Y, bounds.Max.Y, window, stride)
	out := make([]image.Rectangle, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			out = append(out, image.Rect(x, y, x+window, y+window).Intersect(bounds))
		}
	}
	return out
}

func starts(lo, hi, window, stride int) []int {
	if hi-lo <= window {
		return []int{lo}
	}
	var s []int
	p := lo
	for ; p+window <= hi; p += stride {
		s = append(s, p)
	}
	if last := s[len(s)-1]; last+window < hi {
		s = append(s, hi-window)
	}
	return s
}
