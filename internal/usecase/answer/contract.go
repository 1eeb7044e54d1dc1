package answer

import (
	"context"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
)

// Classifier decides whether a query is in the support domain.
type Classifier interface {
	Classify(ctx context.Context, query string) domain.ScopeDecision
}

// Retriever fetches relevant passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, category string) []domain.RetrievedPassage
}

// Assembler renders the generation prompt.
type Assembler interface {
	Assemble(query string, passages []domain.RetrievedPassage, history []domain.ConversationTurn, customer *domain.CustomerContext) string
}

// Generator runs the drafting call.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) domain.GenerationResult
}

// ArtifactStore caches generated artifacts per subject.
type ArtifactStore interface {
	Get(ctx context.Context, kind, subjectKey string) (domain.Artifact, error)
	Put(ctx context.Context, subjectKey string, art domain.Artifact) error
}
