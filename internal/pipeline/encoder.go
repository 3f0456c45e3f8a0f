package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/ghostframe/internal/blend"
	"github.com/banshee-data/ghostframe/internal/embed"
	"github.com/banshee-data/ghostframe/internal/fragment"
	"github.com/banshee-data/ghostframe/internal/frames"
	"github.com/banshee-data/ghostframe/internal/monitoring"
)

// FrameSink receives carrier frames in order.
type FrameSink interface {
	Write(i int, img image.Image) error
}

// EncodeResult summarises an encode run.
type EncodeResult struct {
	Fragments int
	Plan      []embed.Assignment
	Placed    []embed.Placement
	Skipped   []int
	Unplaced  int
	// MaxDelta is the largest per-pixel change on a mid-grey background.
	MaxDelta float64
}

// Encoder embeds a payload into a frame sequence.
type Encoder struct {
	opts     EncodeOptions
	embedder *embed.Embedder
}

// NewEncoder validates opts.
func NewEncoder(opts EncodeOptions) (*Encoder, error) {
	if opts.MaxChunkBytes < 1 {
		return nil, fmt.Errorf("MaxChunkBytes must be at least 1, got %d", opts.MaxChunkBytes)
	}
	e, err := embed.New(opts.Embed, opts.Placer)
	if err != nil {
		return nil, err
	}
	return &Encoder{opts: opts, embedder: e}, nil
}

// Run splits payload into fragments, plans the cadence over src, and writes
// every frame of src to sink, carrier or not.
func (e *Encoder) Run(ctx context.Context, payload []byte, src frames.Source, sink FrameSink) (*EncodeResult, error) {
	packages, err := fragment.Split(payload, e.opts.MaxChunkBytes)
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		return nil, errors.New("encode: empty payload")
	}
	overlays, err := e.embedder.Prepare(packages)
	if err != nil {
		return nil, err
	}

	run := e.embedder.Schedule(src.Len(), overlays)
	monitoring.Logf("encode: %d fragments over %d frames (one every %d frames, %s placement)",
		len(packages), src.Len(), embed.FramesPerFragment(src.Len(), len(packages)), e.opts.Placer.Name())

	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("encode interrupted at frame %d: %w", i, err)
		}
		frame, err := src.Frame(i)
		if err != nil {
			return nil, err
		}
		if _, err := run.Apply(i, frame); err != nil {
			return nil, err
		}
		if err := sink.Write(i, frame); err != nil {
			return nil, err
		}
	}

	if len(run.Skipped) > 0 {
		monitoring.Logf("encode: %d frames skipped (pattern out of bounds)", len(run.Skipped))
	}
	return &EncodeResult{
		Fragments: len(packages),
		Plan:      run.Plan,
		Placed:    run.Placed,
		Skipped:   run.Skipped,
		Unplaced:  run.Unplaced,
		MaxDelta:  blend.MaxDelta(e.opts.Embed.Opacity, 128, e.opts.Embed.Palette),
	}, nil
}

// MemorySource serves in-memory frames. Frame returns the stored image
// itself, so embedding modifies it in place.
type MemorySource []*image.RGBA

func (m MemorySource) Len() int { return len(m) }

func (m MemorySource) Frame(i int) (*image.RGBA, error) {
	if i < 0 || i >= len(m) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(m))
	}
	return m[i], nil
}

// MemorySink collects written frames by index.
type MemorySink map[int]image.Image

func (m MemorySink) Write(i int, img image.Image) error {
	m[i] = img
	return nil
}
