package artifact

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/metrics"
)

// Memory is an in-process artifact cache used when no redis store is
// configured. Same contract as Repo, same TTL semantics, no persistence
// across restarts.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates an in-process artifact repository.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{cache: gocache.New(ttl, 10*time.Minute)}
}

// Get returns a cached artifact by kind and subject key.
func (m *Memory) Get(_ context.Context, kind, subjectKey string) (domain.Artifact, error) {
	v, ok := m.cache.Get(kind + ":" + subjectKey)
	if !ok {
		metrics.ArtifactCacheTotal.WithLabelValues(kind, "miss").Inc()
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	metrics.ArtifactCacheTotal.WithLabelValues(kind, "hit").Inc()
	return v.(domain.Artifact), nil
}

// Put caches an artifact under its kind and subject key.
func (m *Memory) Put(_ context.Context, subjectKey string, art domain.Artifact) error {
	m.cache.SetDefault(art.Kind+":"+subjectKey, art)
	return nil
}

// Delete removes a cached artifact.
func (m *Memory) Delete(_ context.Context, kind, subjectKey string) error {
	m.cache.Delete(kind + ":" + subjectKey)
	return nil
}
