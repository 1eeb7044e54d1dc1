package scope

import (
	"context"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
)

// Generator runs the classification call.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) domain.GenerationResult
}
