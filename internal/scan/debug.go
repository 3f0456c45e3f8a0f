package scan

import (
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"sync/atomic"

	"github.com/banshee-data/ghostframe/internal/fsutil"
)

// DebugSink receives windows that produced candidates, for offline
// inspection of what each strategy made of them.
type DebugSink interface {
	Dump(frame int, win image.Rectangle, original *image.Gray, cands []Candidate) error
}

// PNGDebugSink writes the original window and each candidate as PNG files.
// At most Max windows are written; later calls are dropped.
type PNGDebugSink struct {
	fs      fsutil.FileSystem
	dir     string
	max     int64
	claimed atomic.Int64
	written atomic.Int64
}

// NewPNGDebugSink creates dir and returns a sink writing into it.
func NewPNGDebugSink(fs fsutil.FileSystem, dir string, limit int) (*PNGDebugSink, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	return &PNGDebugSink{fs: fs, dir: dir, max: int64(limit)}, nil
}

// Written returns how many windows have been dumped in full.
func (d *PNGDebugSink) Written() int { return int(d.written.Load()) }

func (d *PNGDebugSink) Dump(frame int, win image.Rectangle, original *image.Gray, cands []Candidate) error {
	if d.claimed.Add(1) > d.max {
		return nil
	}
	prefix := fmt.Sprintf("f%06d_x%d_y%d", frame, win.Min.X, win.Min.Y)
	if err := d.write(prefix+"_original.png", original); err != nil {
		return err
	}
	for _, c := range cands {
		if err := d.write(prefix+"_"+c.Strategy+".png", c.Image); err != nil {
			return err
		}
	}
	d.written.Add(1)
	return nil
}

func (d *PNGDebugSink) write(name string, img image.Image) error {
	w, err := d.fs.Create(filepath.Join(d.dir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := png.Encode(w, img); err != nil {
		w.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return w.Close()
}
