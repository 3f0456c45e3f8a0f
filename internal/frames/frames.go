// Package frames reads and writes carrier frames as an ordered sequence of
// image files in a directory.
package frames

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/banshee-data/ghostframe/internal/fsutil"
)

var (
	// ErrInputNotFound is returned when the input directory does not exist.
	ErrInputNotFound = errors.New("frames: input not found")
	// ErrNoFrames is returned when the input directory holds no images.
	ErrNoFrames = errors.New("frames: no image files in input")
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// Source is a random-access frame sequence.
type Source interface {
	Len() int
	Frame(i int) (*image.RGBA, error)
}

// DirSource lists image files in a directory, ordered by name.
type DirSource struct {
	fs    fsutil.FileSystem
	dir   string
	names []string
}

// OpenDir scans dir for image files.
func OpenDir(fs fsutil.FileSystem, dir string) (*DirSource, error) {
	info, err := fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInputNotFound, dir)
	}
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	s := &DirSource{fs: fs, dir: dir}
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		s.names = append(s.names, e.Name())
	}
	if len(s.names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, dir)
	}
	return s, nil
}

// Len returns the number of frames.
func (s *DirSource) Len() int { return len(s.names) }

// Name returns the file name of frame i.
func (s *DirSource) Name(i int) string { return s.names[i] }

// Frame decodes frame i into an RGBA image with a zero origin.
func (s *DirSource) Frame(i int) (*image.RGBA, error) {
	if i < 0 || i >= len(s.names) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(s.names))
	}
	f, err := s.fs.Open(filepath.Join(s.dir, s.names[i]))
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", s.names[i], err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", s.names[i], err)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as a zero-origin *image.RGBA, copying when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// DirSink writes frames as frame_NNNNNN.png files.
type DirSink struct {
	fs  fsutil.FileSystem
	dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(fs fsutil.FileSystem, dir string) (*DirSink, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DirSink{fs: fs, dir: dir}, nil
}

// FrameName returns the file name used for frame i.
func FrameName(i int) string {
	return fmt.Sprintf("frame_%06d.png", i)
}

// Write encodes img as PNG under the name for index i.
func (s *DirSink) Write(i int, img image.Image) error {
	name := filepath.Join(s.dir, FrameName(i))
	w, err := s.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := png.Encode(w, img); err != nil {
		w.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return w.Close()
}

// Sample returns the frame indices to analyse out of n: every frame when
// limit is 0 or n <= limit, otherwise every stride-th frame with
// stride = ceil(n/limit), so the sample spans the whole sequence and holds
// at most limit indices.
func Sample(n, limit int) []int {
	if n <= 0 {
		return nil
	}
	stride := 1
	if limit > 0 && n > limit {
		stride = (n + limit - 1) / limit
	}
	out := make([]int, 0, (n+stride-1)/stride)
	for i := 0; i < n; i += stride {
		out = append(out, i)
	}
	return out
}

// Passes splits the n frame indices into the sampled first pass and the
// frames it left out, both ascending. Together they cover every frame once.
func Passes(n, limit int) (first, rest []int) {
	first = Sample(n, limit)
	if len(first) == n {
		return first, nil
	}
	next := 0
	for i := 0; i < n; i++ {
		if next < len(first) && first[next] == i {
			next++
			continue
		}
		rest = append(rest, i)
	}
	return first, rest
}
