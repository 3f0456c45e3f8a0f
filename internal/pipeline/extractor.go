// Package pipeline drives whole-sequence encode and decode runs on top of
// the fragment, pattern, embed, scan, decode and registry packages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/ghostframe/internal/decode"
	"github.com/banshee-data/ghostframe/internal/fragment"
	"github.com/banshee-data/ghostframe/internal/frames"
	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/registry"
	"github.com/banshee-data/ghostframe/internal/scan"
	"github.com/banshee-data/ghostframe/internal/timeutil"
)

// ErrNoFragmentsFound is returned when a session ends without observing
// a single valid fragment.
var ErrNoFragmentsFound = errors.New("pipeline: no fragments found")

// ExtractResult is the outcome of a decode session.
type ExtractResult struct {
	SessionID string
	State     State
	Payload   []byte
	Total     uint32
	Skipped   []uint32
	Stats     SessionStats
}

// Extractor runs decode sessions. An Extractor runs one session at a time.
type Extractor struct {
	opts    ExtractOptions
	scanner *scan.Scanner
	decoder *decode.Decoder
	state   stateMachine
}

// NewExtractor validates opts and builds the scanner and decoder.
func NewExtractor(opts ExtractOptions) (*Extractor, error) {
	scanner, err := scan.New(opts.Scan)
	if err != nil {
		return nil, err
	}
	decoder, err := decode.New(opts.Backends)
	if err != nil {
		return nil, err
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Extractor{opts: opts, scanner: scanner, decoder: decoder}, nil
}

// State returns the current session state.
func (e *Extractor) State() State { return e.state.get() }

// Run scans src, recovering and reassembling the embedded payload. input
// names the source for checkpointing. Frames are retrieved sequentially and
// scanned on a bounded worker pool; cancellation is honoured between frames.
// A cancelled session is left in SCANNING so it can be resumed.
func (e *Extractor) Run(ctx context.Context, src frames.Source, input string) (*ExtractResult, error) {
	if e.State() != StateInit {
		return nil, fmt.Errorf("extractor already used (state %s)", e.State())
	}
	start := e.opts.Clock.Now()
	res := &ExtractResult{}
	reg := registry.New()

	if cp := e.opts.Checkpoint; cp != nil {
		id, seed, err := cp.Begin(input)
		if err != nil {
			return nil, fmt.Errorf("begin checkpoint: %w", err)
		}
		res.SessionID = id
		for _, f := range seed {
			if reg.Observe(f) {
				res.Stats.Seeded++
			}
		}
	}

	e.state.advance(StateScanning)
	res.Stats.FramesTotal = src.Len()
	first, rest := frames.Passes(src.Len(), e.opts.MaxFrames)
	monitoring.Logf("extract: scanning %d of %d frames with %d workers", len(first), src.Len(), e.opts.Workers)

	var mu sync.Mutex
	if err := e.scanPass(ctx, src, first, reg, res, &mu); err != nil {
		return nil, err
	}
	if len(rest) > 0 && ctx.Err() == nil && !reg.Complete() {
		monitoring.Logf("extract: %d of %d fragments after sampled pass, scanning %d skipped frames",
			reg.Count(), reg.Total(), len(rest))
		if err := e.scanPass(ctx, src, rest, reg, res, &mu); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract interrupted after %d frames: %w", res.Stats.FramesScanned, err)
	}

	sort.Slice(res.Stats.PerFrame, func(a, b int) bool {
		return res.Stats.PerFrame[a].Frame < res.Stats.PerFrame[b].Frame
	})
	e.state.advance(StateReconstructing)
	res.Total = reg.Total()
	res.Stats.Duration = e.opts.Clock.Since(start)

	err := e.reconstruct(reg, res)
	if cp := e.opts.Checkpoint; cp != nil {
		if cerr := cp.Finish(res.State, res.Total); cerr != nil {
			monitoring.Logf("checkpoint: finish session: %v", cerr)
		}
	}
	return res, err
}

func (e *Extractor) reconstruct(reg *registry.Registry, res *ExtractResult) error {
	if reg.Count() == 0 {
		e.state.advance(StateFailed)
		res.State = StateFailed
		return ErrNoFragmentsFound
	}

	joined, err := reg.Reconstruct(e.opts.MaxMissingRatio)
	res.Skipped = joined.Skipped
	if err != nil {
		e.state.advance(StateFailed)
		res.State = StateFailed
		return err
	}
	if len(joined.Skipped) > 0 {
		monitoring.Logf("extract: payload reassembled with %d of %d fragments missing: %v",
			len(joined.Skipped), res.Total, joined.Skipped)
	}
	res.Payload = joined.Data
	e.state.advance(StateDone)
	res.State = StateDone
	return nil
}

// scanPass reads the given frames in order and scans them on the worker
// pool. It stops early once every fragment is held.
func (e *Extractor) scanPass(ctx context.Context, src frames.Source, indices []int, reg *registry.Registry, res *ExtractResult, mu *sync.Mutex) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for _, i := range indices {
		if err := gctx.Err(); err != nil {
			break
		}
		if e.opts.StopWhenComplete && reg.Complete() {
			monitoring.Logf("extract: all %d fragments recovered, stopping before frame %d", reg.Total(), i)
			break
		}
		frame, err := src.Frame(i)
		if err != nil {
			monitoring.Logf("extract: skipping frame %d: %v", i, err)
			mu.Lock()
			res.Stats.FrameErrors++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			fs := e.scanFrame(i, frame, reg)
			mu.Lock()
			res.Stats.add(fs, reg.Completeness())
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// scanFrame decodes every window of one frame and feeds the registry.
func (e *Extractor) scanFrame(idx int, frame image.Image, reg *registry.Registry) FrameStats {
	start := e.opts.Clock.Now()
	fs := FrameStats{Frame: idx}
	seen := make(map[string]bool)

	fs.Scan = e.scanner.Scan(frame, func(win image.Rectangle, original *image.Gray, cands []scan.Candidate) bool {
		if e.opts.Debug != nil {
			if err := e.opts.Debug.Dump(idx, win, original, cands); err != nil {
				monitoring.Debugf("extract: debug dump frame %d: %v", idx, err)
			}
		}

		out, ds, err := e.decoder.DecodeFirst(cands)
		fs.Decode.Add(ds)
		if err != nil {
			return true
		}
		if seen[string(out.Package)] {
			return true
		}
		seen[string(out.Package)] = true
		fs.Decoded++

		f, err := fragment.Parse(out.Package)
		if err != nil {
			fs.ParseErrors++
			monitoring.Debugf("extract: frame %d window %v: %v", idx, win, err)
			return true
		}
		if reg.Observe(f) {
			fs.New++
			monitoring.Debugf("extract: frame %d fragment %d/%d via %s+%s", idx, f.Index+1, f.Total, out.Strategy, out.Backend)
			if cp := e.opts.Checkpoint; cp != nil {
				if err := cp.Record(f, idx); err != nil {
					monitoring.Logf("checkpoint: record fragment %d: %v", f.Index, err)
				}
			}
		}
		return true
	})

	fs.Duration = e.opts.Clock.Since(start)
	return fs
}
