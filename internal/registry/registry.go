// Package registry collects decoded fragments across frames and
// reassembles the payload once enough of them are present.
package registry

import (
	"errors"
	"sync"

	"github.com/banshee-data/ghostframe/internal/fragment"
	"github.com/banshee-data/ghostframe/internal/monitoring"
)

// ErrEmpty is returned by Reconstruct before any fragment was observed.
var ErrEmpty = errors.New("registry: no fragments observed")

// Registry is an insert-if-absent map of fragments keyed by index.
// The fragment count is learned from the first observation. All methods
// are safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	frags     map[uint32]fragment.Fragment
	total     uint32
	conflicts int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{frags: make(map[uint32]fragment.Fragment)}
}

// Observe records f and reports whether it was newly inserted. Repeated
// indices are ignored, as are fragments whose total disagrees with the
// total already learned.
func (r *Registry) Observe(f fragment.Fragment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.total == 0 {
		r.total = f.Total
	} else if f.Total != r.total {
		r.conflicts++
		monitoring.Logf("registry: fragment %d claims total %d, expected %d; ignoring", f.Index, f.Total, r.total)
		return false
	}
	if _, ok := r.frags[f.Index]; ok {
		return false
	}
	r.frags[f.Index] = f
	return true
}

// Total returns the learned fragment count, or 0 before any observation.
func (r *Registry) Total() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Count returns how many distinct fragments are held.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frags)
}

// Conflicts returns how many observations were rejected for a mismatched total.
func (r *Registry) Conflicts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts
}

// Completeness returns count/total, or 0 while total is unknown.
func (r *Registry) Completeness() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return 0
	}
	return float64(len(r.frags)) / float64(r.total)
}

// Complete reports whether every index has been observed.
func (r *Registry) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total > 0 && uint32(len(r.frags)) == r.total
}

// MissingIndices returns the absent indices in ascending order.
func (r *Registry) MissingIndices() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missing []uint32
	for i := uint32(0); i < r.total; i++ {
		if _, ok := r.frags[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Reconstruct joins the held fragments in index order, skipping gaps.
// It fails with fragment.ErrTooManyMissing when more than
// maxMissingRatio*total indices are absent.
func (r *Registry) Reconstruct(maxMissingRatio float64) (fragment.JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return fragment.JoinResult{}, ErrEmpty
	}
	return fragment.Join(r.frags, r.total, maxMissingRatio)
}
