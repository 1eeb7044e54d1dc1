package eligibility

import (
	"context"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
)

// Retriever fetches policy passages for the reasoning prompt.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, category string) []domain.RetrievedPassage
}

// Generator runs the reasoning call.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) domain.GenerationResult
}
