package scan

import (
	"fmt"
	"image"
)

// Candidate is one enhanced rendition of a window.
type Candidate struct {
	Strategy string
	Window   image.Rectangle // frame coordinates
	Image    *image.Gray
}

// FrameStats counts the work done while scanning one frame.
type FrameStats struct {
	Windows     int
	FlatWindows int
	LowContrast int     // windows below the configured spread
	MaxStdDev   float64 // largest window spread seen
	Candidates  int
	ByStrategy  map[string]int
}

// Add accumulates other into s.
func (s *FrameStats) Add(other FrameStats) {
	s.Windows += other.Windows
	s.FlatWindows += other.FlatWindows
	s.LowContrast += other.LowContrast
	s.MaxStdDev = max(s.MaxStdDev, other.MaxStdDev)
	s.Candidates += other.Candidates
	if len(other.ByStrategy) > 0 && s.ByStrategy == nil {
		s.ByStrategy = make(map[string]int, len(other.ByStrategy))
	}
	for k, v := range other.ByStrategy {
		s.ByStrategy[k] += v
	}
}

// VisitFunc receives the grey window and its candidates. Returning false
// stops the scan of the current frame.
type VisitFunc func(win image.Rectangle, original *image.Gray, cands []Candidate) bool

// Scanner applies the configured strategies to every window of a frame.
// A Scanner holds no mutable state and is safe for concurrent use.
type Scanner struct {
	cfg       Config
	enhancers []Enhancer
}

// New builds a Scanner, resolving strategy names in configured order.
func New(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}
	s := &Scanner{cfg: cfg}
	for _, name := range cfg.Strategies {
		e, err := NewEnhancer(name, cfg)
		if err != nil {
			return nil, err
		}
		s.enhancers = append(s.enhancers, e)
	}
	return s, nil
}

// Config returns the scanner's configuration.
func (s *Scanner) Config() Config { return s.cfg }

// Scan enumerates the windows of frame and calls visit once for each
// non-flat window that produced at least one candidate.
func (s *Scanner) Scan(frame image.Image, visit VisitFunc) FrameStats {
	bounds := frame.Bounds()
	gray := Gray(frame, bounds)
	stats := FrameStats{ByStrategy: make(map[string]int, len(s.enhancers))}

	for _, win := range Windows(bounds, s.cfg.Window, s.cfg.StrideDivisor) {
		stats.Windows++
		original := crop(gray, win.Sub(bounds.Min))
		ws := Stats(original)
		if ws.Flat() {
			stats.FlatWindows++
			continue
		}
		stats.MaxStdDev = max(stats.MaxStdDev, ws.StdDev)
		if ws.StdDev < s.cfg.MinStdDev {
			stats.LowContrast++
			continue
		}

		cands := s.Enhance(original)
		if len(cands) == 0 {
			continue
		}
		for i := range cands {
			cands[i].Window = win
			stats.ByStrategy[cands[i].Strategy]++
		}
		stats.Candidates += len(cands)
		if !visit(win, original, cands) {
			break
		}
	}
	return stats
}

// Enhance runs every strategy on a single window.
func (s *Scanner) Enhance(win *image.Gray) []Candidate {
	var cands []Candidate
	for _, e := range s.enhancers {
		if img, ok := e.Enhance(win); ok {
			cands = append(cands, Candidate{Strategy: e.Name(), Window: win.Rect, Image: img})
		}
	}
	return cands
}
