// Package retrieval turns a user query into grounded knowledge-base passages:
// embed, nearest-neighbor search, similarity floor, optional category filter,
// top-k truncation.
package retrieval

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// Config holds retriever tunables.
type Config struct {
	SimilarityFloor float64 // passages below this are discarded
	OverfetchFactor int     // over-fetch multiplier when a category filter applies
}

// Service is the relevance retriever.
type Service struct {
	embed  Embedder
	index  Searcher
	cfg    Config
	logger *zap.Logger
}

// New creates a retriever.
func New(embed Embedder, index Searcher, cfg Config, logger *zap.Logger) *Service {
	if cfg.OverfetchFactor <= 0 {
		cfg.OverfetchFactor = 3
	}
	return &Service{embed: embed, index: index, cfg: cfg, logger: logger}
}

// Retrieve returns up to topK passages ordered descending by similarity.
// An embedding failure or an empty index yields an empty list, not an error:
// "no grounding available" is an answerable state downstream, a hard failure
// is not. May return fewer than topK (even zero) when nothing in the corpus
// clears the similarity floor.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, category string) []domain.RetrievedPassage {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	vec, ok := s.embedQuery(ctx, query)
	if !ok {
		return nil
	}

	fetchK := topK
	if category != "" {
		fetchK = topK * s.cfg.OverfetchFactor
	}

	hits, snap, err := s.index.Search(vec, fetchK)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexEmpty) {
			s.logger.Warn("Index search failed", zap.Error(err))
		}
		return nil
	}

	passages := make([]domain.RetrievedPassage, 0, len(hits))
	for _, h := range hits {
		sim := 1.0 / (1.0 + h.Distance)
		if sim < s.cfg.SimilarityFloor {
			// Hits arrive ordered by distance, so everything after is below the floor too.
			break
		}
		meta := snap.Meta(h.Index)
		if category != "" && !strings.EqualFold(meta.Category, category) {
			continue
		}
		passages = append(passages, domain.RetrievedPassage{
			Document:   meta,
			Similarity: sim,
			Distance:   h.Distance,
		})
		if len(passages) == topK {
			break
		}
	}

	return passages
}

// embedQuery embeds the query with one bounded retry. Embedding is idempotent
// and cheap relative to generation, so a single retry is worth it; a second
// failure degrades to "no grounding".
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.embed.Embed(ctx, query)
		if err == nil {
			return res.Embedding, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		if attempt == 0 {
			s.logger.Warn("Query embedding failed, retrying once", zap.Error(err))
		} else {
			s.logger.Warn("Query embedding failed, returning no passages", zap.Error(err))
		}
	}
	return nil, false
}
