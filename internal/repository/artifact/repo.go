// Package artifact persists generated artifacts (ticket summaries, refund
// explanations) so each is computed at most once per subject unless a caller
// explicitly regenerates.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/db"
	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/metrics"
)

const keyPrefix = "deskpilot:artifact:"

// kvStore is the consumer interface for the redis-backed cache (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Repo is a redis-backed artifact cache.
type Repo struct {
	store  kvStore
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a redis-backed artifact repository.
func New(store kvStore, ttl time.Duration, logger *zap.Logger) *Repo {
	return &Repo{store: store, ttl: ttl, logger: logger}
}

// SubjectKey derives the cache key material for an artifact subject.
func SubjectKey(kind, subject string) string {
	h := sha256.Sum256([]byte(kind + "\x00" + subject))
	return hex.EncodeToString(h[:])
}

// Get returns a cached artifact by kind and subject key.
func (r *Repo) Get(ctx context.Context, kind, subjectKey string) (domain.Artifact, error) {
	data, err := r.store.Get(ctx, keyPrefix+kind+":"+subjectKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			metrics.ArtifactCacheTotal.WithLabelValues(kind, "miss").Inc()
			return domain.Artifact{}, domain.ErrArtifactNotFound
		}
		return domain.Artifact{}, fmt.Errorf("get artifact: %w", err)
	}

	var art domain.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		// A corrupt entry behaves like a miss so the artifact gets regenerated.
		r.logger.Warn("Failed to parse cached artifact", zap.String("kind", kind), zap.Error(err))
		metrics.ArtifactCacheTotal.WithLabelValues(kind, "miss").Inc()
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}

	metrics.ArtifactCacheTotal.WithLabelValues(kind, "hit").Inc()
	return art, nil
}

// Put caches an artifact under its kind and subject key.
func (r *Repo) Put(ctx context.Context, subjectKey string, art domain.Artifact) error {
	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, keyPrefix+art.Kind+":"+subjectKey, data, r.ttl); err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// Delete removes a cached artifact, forcing the next Get to regenerate.
func (r *Repo) Delete(ctx context.Context, kind, subjectKey string) error {
	if err := r.store.Del(ctx, keyPrefix+kind+":"+subjectKey); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}
