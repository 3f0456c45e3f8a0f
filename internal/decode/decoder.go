// Package decode turns enhanced candidate images back into fragment
// packages using one or more QR decoding engines.
package decode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/ghostframe/internal/monitoring"
	"github.com/banshee-data/ghostframe/internal/scan"
)

// ErrNoMatch is returned when no candidate decodes to a base64 package.
// It is the normal outcome for windows that carry no pattern.
var ErrNoMatch = errors.New("decode: no candidate decoded")

// Result describes a successful decode.
type Result struct {
	Package  []byte
	Strategy string
	Backend  string
	Window   image.Rectangle
}

// Stats counts decode attempts for one call.
type Stats struct {
	Attempts       int
	Base64Failures int
	ByBackend      map[string]int // successful decodes
	ByStrategy     map[string]int // successful decodes by enhancement
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Attempts += other.Attempts
	s.Base64Failures += other.Base64Failures
	if len(other.ByBackend) > 0 && s.ByBackend == nil {
		s.ByBackend = make(map[string]int, len(other.ByBackend))
	}
	for k, v := range other.ByBackend {
		s.ByBackend[k] += v
	}
	if len(other.ByStrategy) > 0 && s.ByStrategy == nil {
		s.ByStrategy = make(map[string]int, len(other.ByStrategy))
	}
	for k, v := range other.ByStrategy {
		s.ByStrategy[k] += v
	}
}

// Decoder tries each backend, in priority order, on each candidate.
// It is safe for concurrent use.
type Decoder struct {
	backends []Backend
}

// New builds a Decoder from backend names.
func New(names []string) (*Decoder, error) {
	if len(names) == 0 {
		return nil, errors.New("decode: no backends configured")
	}
	backends := make([]Backend, 0, len(names))
	for _, n := range names {
		b, err := NewBackend(n)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return NewWithBackends(backends...), nil
}

// NewWithBackends builds a Decoder from explicit backends.
func NewWithBackends(backends ...Backend) *Decoder {
	return &Decoder{backends: backends}
}

// Backends returns the backend names in priority order.
func (d *Decoder) Backends() []string {
	names := make([]string, len(d.backends))
	for i, b := range d.backends {
		names[i] = b.Name()
	}
	return names
}

// DecodeFirst returns the first candidate/backend pair whose text is valid
// standard base64. Text that is not base64 counts as a miss.
func (d *Decoder) DecodeFirst(cands []scan.Candidate) (Result, Stats, error) {
	var stats Stats
	for _, c := range cands {
		for _, b := range d.backends {
			stats.Attempts++
			text, err := b.Decode(c.Image)
			if err != nil || text == "" {
				continue
			}
			pkg, err := base64.StdEncoding.DecodeString(text)
			if err != nil {
				stats.Base64Failures++
				monitoring.Debugf("decode: %s/%s read non-base64 text in %v", c.Strategy, b.Name(), c.Window)
				continue
			}
			stats.ByBackend = map[string]int{b.Name(): 1}
			stats.ByStrategy = map[string]int{c.Strategy: 1}
			return Result{Package: pkg, Strategy: c.Strategy, Backend: b.Name(), Window: c.Window}, stats, nil
		}
	}
	return Result{}, stats, fmt.Errorf("%d attempts: %w", stats.Attempts, ErrNoMatch)
}
