package index

import (
	"sync/atomic"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// Index is the one shared mutable resource of the service: a pointer to the
// current snapshot. Reads are lock-free; rebuilds publish a new snapshot via
// Swap and in-flight searches against the old snapshot complete unaffected.
type Index struct {
	current atomic.Pointer[Snapshot]
}

// New creates an empty index. Search returns ErrIndexEmpty until the first Swap.
func New() *Index {
	return &Index{}
}

// Current returns the live snapshot, or nil if none has been installed.
func (ix *Index) Current() *Snapshot {
	return ix.current.Load()
}

// Swap atomically installs a new snapshot.
func (ix *Index) Swap(s *Snapshot) {
	ix.current.Store(s)
}

// Search runs nearest-neighbor search against the current snapshot.
func (ix *Index) Search(query []float32, k int) ([]Hit, *Snapshot, error) {
	s := ix.current.Load()
	if s == nil {
		return nil, nil, domain.ErrIndexEmpty
	}
	hits, err := s.Search(query, k)
	if err != nil {
		return nil, nil, err
	}
	// The snapshot is returned alongside the hits so callers resolve metadata
	// against the same generation the search ran on.
	return hits, s, nil
}
