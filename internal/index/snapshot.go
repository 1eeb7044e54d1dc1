package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// Snapshot is an immutable vector index generation: a dimension, a flat vector
// table, and a metadata table parallel to it. Built once, searched many times,
// never mutated. A rebuild produces a fresh Snapshot which the Index installs
// with a single atomic pointer swap.
type Snapshot struct {
	dim     int
	vectors [][]float32
	metas   []domain.DocumentMeta
}

// Hit is a single nearest-neighbor match.
type Hit struct {
	Index    int
	Distance float64
}

// Build constructs a snapshot from parallel vector and metadata tables.
// Every vector must have the declared dimension.
func Build(dim int, vectors [][]float32, metas []domain.DocumentMeta) (*Snapshot, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("vectors (%d) and metadata (%d) length mismatch", len(vectors), len(metas))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d: %w", i, len(v), domain.ErrVectorDimMismatch)
		}
	}
	return &Snapshot{dim: dim, vectors: vectors, metas: metas}, nil
}

// Dimensions returns the vector dimension of the snapshot.
func (s *Snapshot) Dimensions() int { return s.dim }

// Len returns the number of indexed documents.
func (s *Snapshot) Len() int { return len(s.vectors) }

// Meta returns the metadata row at position i.
func (s *Snapshot) Meta(i int) domain.DocumentMeta { return s.metas[i] }

// Search runs exact exhaustive nearest-neighbor search by L2 distance and
// returns up to k hits ordered ascending by distance. Exact search is the
// deliberate choice at this corpus scale: correctness over an approximate
// index for tens to low thousands of documents.
func (s *Snapshot) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d: %w",
			len(query), s.dim, domain.ErrVectorDimMismatch)
	}
	if k <= 0 || s.Len() == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = Hit{Index: i, Distance: l2Distance(query, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].Index < hits[j].Index // stable orderings across rebuilds
		}
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
