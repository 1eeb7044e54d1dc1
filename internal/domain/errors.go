package domain

import "errors"

var (
	// ErrInvalidInput signals an empty or otherwise unusable user query.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexEmpty signals that no index snapshot has been built yet.
	ErrIndexEmpty = errors.New("index empty, reindex required")
	// ErrVectorDimMismatch signals a vector dimension mismatch during indexing.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrGenerationBusy signals that no generation worker slot became free in time.
	ErrGenerationBusy = errors.New("generation worker pool saturated")
	// ErrMalformedModelOutput signals that structured parsing of model text failed.
	// Recovered locally by the repairer, never surfaced to callers.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrArtifactNotFound signals a cache miss in the artifact cache.
	ErrArtifactNotFound = errors.New("artifact not found")
)
