package retrieval

import (
	"context"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/index"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs nearest-neighbor search against the live index snapshot.
type Searcher interface {
	Search(query []float32, k int) ([]index.Hit, *index.Snapshot, error)
}
