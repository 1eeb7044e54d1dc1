// Package indexer builds index snapshots from the knowledge base and installs
// them atomically. Rebuilds are single-flight: a second trigger while one is
// running is rejected instead of queued.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/index"
)

// ErrRebuildInProgress is returned when a rebuild is triggered while another
// one is still running.
var ErrRebuildInProgress = errors.New("index rebuild already in progress")

// documents is the consumer interface for the knowledge base store.
type documents interface {
	Refresh() error
	List() []domain.Document
}

// Stats describes one completed rebuild.
type Stats struct {
	Documents  int   `json:"documents"`
	Dimensions int   `json:"dimensions"`
	DurationMs int64 `json:"duration_ms"`
	Loaded     bool  `json:"loaded"` // snapshot came from disk, not a rebuild
}

// Service rebuilds and persists the vector index.
type Service struct {
	docs     documents
	embedder domain.Embedder
	idx      *index.Index
	dir      string // persisted artifact directory, empty disables persistence
	logger   *zap.Logger

	mu sync.Mutex
}

// New creates an indexer.
func New(docs documents, embedder domain.Embedder, idx *index.Index, dir string, logger *zap.Logger) *Service {
	return &Service{
		docs:     docs,
		embedder: embedder,
		idx:      idx,
		dir:      dir,
		logger:   logger,
	}
}

// Rebuild refreshes the document store, embeds every document, builds a fresh
// snapshot, swaps it in, and persists the artifacts. In-flight searches keep
// the old snapshot until the swap.
func (s *Service) Rebuild(ctx context.Context) (Stats, error) {
	if !s.mu.TryLock() {
		return Stats{}, ErrRebuildInProgress
	}
	defer s.mu.Unlock()

	start := time.Now()

	if err := s.docs.Refresh(); err != nil {
		return Stats{}, fmt.Errorf("refresh documents: %w", err)
	}
	docs := s.docs.List()
	if len(docs) == 0 {
		return Stats{}, fmt.Errorf("document store is empty, nothing to index")
	}

	dim := s.embedder.Dimensions()
	vectors := make([][]float32, 0, len(docs))
	metas := make([]domain.DocumentMeta, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		result, err := s.embedder.Embed(ctx, doc.Title+"\n"+doc.Content)
		if err != nil {
			return Stats{}, fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		vectors = append(vectors, result.Embedding)
		metas = append(metas, doc.Meta())
	}

	snapshot, err := index.Build(dim, vectors, metas)
	if err != nil {
		return Stats{}, fmt.Errorf("build snapshot: %w", err)
	}
	s.idx.Swap(snapshot)

	if s.dir != "" {
		if err := index.Save(s.dir, snapshot); err != nil {
			// The live index is already swapped; persistence failure only
			// costs a rebuild on the next restart.
			s.logger.Warn("Failed to persist index artifacts", zap.String("dir", s.dir), zap.Error(err))
		}
	}

	stats := Stats{
		Documents:  snapshot.Len(),
		Dimensions: snapshot.Dimensions(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	s.logger.Info("Index rebuilt",
		zap.Int("documents", stats.Documents),
		zap.Int("dimensions", stats.Dimensions),
		zap.Int64("duration_ms", stats.DurationMs),
	)
	return stats, nil
}

// Bootstrap loads persisted artifacts when present, otherwise rebuilds from
// the document store. Called once at startup.
func (s *Service) Bootstrap(ctx context.Context) (Stats, error) {
	if s.dir != "" {
		snapshot, err := index.Load(s.dir)
		if err != nil {
			// Corrupt artifacts fall back to a rebuild.
			s.logger.Warn("Failed to load index artifacts, rebuilding", zap.String("dir", s.dir), zap.Error(err))
		} else if snapshot != nil {
			s.idx.Swap(snapshot)
			s.logger.Info("Index loaded from disk",
				zap.Int("documents", snapshot.Len()),
				zap.Int("dimensions", snapshot.Dimensions()),
			)
			return Stats{
				Documents:  snapshot.Len(),
				Dimensions: snapshot.Dimensions(),
				Loaded:     true,
			}, nil
		}
	}
	return s.Rebuild(ctx)
}
