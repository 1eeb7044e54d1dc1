package health

import (
	"context"

	"github.com/kailas-cloud/deskpilot/internal/index"
)

// DBPinger checks cache store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an AI provider's availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReader exposes the current index snapshot.
type IndexReader interface {
	Current() *index.Snapshot
}
