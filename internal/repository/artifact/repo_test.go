package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/db"
	"github.com/kailas-cloud/deskpilot/internal/domain"
)

type mockKV struct {
	data map[string][]byte
}

func newMockKV() *mockKV { return &mockKV{data: make(map[string][]byte)} }

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockKV) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func testArtifact() domain.Artifact {
	return domain.Artifact{
		ID:      "11111111-2222-3333-4444-555555555555",
		Kind:    "ticket_summary",
		Subject: "TICKET-42",
		Decision: domain.StructuredDecision{
			Kind:       "ticket_summary",
			Fields:     map[string]any{"summary": "customer asked about refunds"},
			Source:     domain.SourceModel,
			Confidence: 0.9,
		},
		CreatedAt: time.Now().UnixMilli(),
	}
}

func TestRepo_PutGet(t *testing.T) {
	kv := newMockKV()
	repo := New(kv, time.Hour, zap.NewNop())
	ctx := context.Background()

	art := testArtifact()
	key := SubjectKey(art.Kind, art.Subject)

	if _, err := repo.Get(ctx, art.Kind, key); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound before put, got %v", err)
	}

	if err := repo.Put(ctx, key, art); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(ctx, art.Kind, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != art.ID || got.Decision.Fields["summary"] != "customer asked about refunds" {
		t.Errorf("got artifact %+v", got)
	}
}

func TestRepo_CorruptEntryIsMiss(t *testing.T) {
	kv := newMockKV()
	repo := New(kv, time.Hour, zap.NewNop())
	ctx := context.Background()

	key := SubjectKey("ticket_summary", "TICKET-42")
	kv.data[keyPrefix+"ticket_summary:"+key] = []byte("{not json")

	if _, err := repo.Get(ctx, "ticket_summary", key); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected corrupt entry to behave as miss, got %v", err)
	}
}

func TestRepo_Delete(t *testing.T) {
	kv := newMockKV()
	repo := New(kv, time.Hour, zap.NewNop())
	ctx := context.Background()

	art := testArtifact()
	key := SubjectKey(art.Kind, art.Subject)
	if err := repo.Put(ctx, key, art); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Delete(ctx, art.Kind, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, art.Kind, key); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestSubjectKey_Deterministic(t *testing.T) {
	a := SubjectKey("ticket_summary", "TICKET-42")
	b := SubjectKey("ticket_summary", "TICKET-42")
	c := SubjectKey("refund_explanation", "TICKET-42")

	if a != b {
		t.Error("same inputs must produce the same key")
	}
	if a == c {
		t.Error("different kinds must produce different keys")
	}
}

func TestMemory_PutGetDelete(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	art := testArtifact()
	key := SubjectKey(art.Kind, art.Subject)

	if _, err := m.Get(ctx, art.Kind, key); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := m.Put(ctx, key, art); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(ctx, art.Kind, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "TICKET-42" {
		t.Errorf("got %+v", got)
	}
	if err := m.Delete(ctx, art.Kind, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, art.Kind, key); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestArtifact_JSONRoundTrip(t *testing.T) {
	art := testArtifact()
	data, err := json.Marshal(art)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back domain.Artifact
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind != art.Kind || back.Decision.Source != domain.SourceModel {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
