package generation

import (
	"context"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// Provider is the raw generation provider contract consumed by the orchestrator.
type Provider interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationOutput, error)
}
