package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/index"
	answeruc "github.com/kailas-cloud/deskpilot/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/deskpilot/internal/usecase/health"
	"github.com/kailas-cloud/deskpilot/internal/usecase/indexer"
)

// --- Mocks ---

type mockAnswers struct {
	answer       domain.Answer
	summary      domain.StructuredDecision
	summarizeErr error
	lastRequest  answeruc.Request
}

func (m *mockAnswers) AnswerQuery(_ context.Context, req answeruc.Request) domain.Answer {
	m.lastRequest = req
	return m.answer
}

func (m *mockAnswers) Summarize(_ context.Context, _ string, _ []domain.ConversationTurn, _ bool) (domain.StructuredDecision, error) {
	if m.summarizeErr != nil {
		return domain.StructuredDecision{}, m.summarizeErr
	}
	return m.summary, nil
}

type mockEligibility struct {
	decision domain.EligibilityDecision
	err      error
}

func (m *mockEligibility) Check(_ context.Context, _ domain.EligibilityRequest) (domain.EligibilityDecision, error) {
	if m.err != nil {
		return domain.EligibilityDecision{}, m.err
	}
	return m.decision, nil
}

type mockIndexer struct {
	stats indexer.Stats
	err   error
}

func (m *mockIndexer) Rebuild(_ context.Context) (indexer.Stats, error) {
	if m.err != nil {
		return indexer.Stats{}, m.err
	}
	return m.stats, nil
}

func newTestRouter(t *testing.T, answers *mockAnswers, elig *mockEligibility, ix *mockIndexer, ready bool) http.Handler {
	t.Helper()

	idx := index.New()
	if ready {
		snapshot, err := index.Build(2, [][]float32{{1, 0}}, []domain.DocumentMeta{{ID: "a"}})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		idx.Swap(snapshot)
	}
	health := healthuc.New(nil, nil, nil, idx)

	server := NewServer(answers, elig, ix, health, zap.NewNop())
	r := chi.NewRouter()
	server.Routes(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestAnswerQueryEndpoint(t *testing.T) {
	answers := &mockAnswers{answer: domain.Answer{
		Response:       "Refunds take 5-7 days.",
		Sources:        []domain.SourceRef{{DocumentID: "doc-1", Title: "Refund policy", Category: "Refund", Similarity: 0.9}},
		RetrievedCount: 1,
		Scope:          domain.ScopeDecision{InScope: true, Confidence: 0.95},
	}}
	h := newTestRouter(t, answers, &mockEligibility{}, &mockIndexer{}, true)

	rec := postJSON(t, h, "/v1/answers", map[string]any{
		"query":    "where is my refund?",
		"category": "Refund",
		"history":  []map[string]string{{"role": "customer", "content": "hi"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Response != "Refunds take 5-7 days." || got.RetrievedCount != 1 {
		t.Errorf("answer = %+v", got)
	}
	if answers.lastRequest.Category != "Refund" || len(answers.lastRequest.History) != 1 {
		t.Errorf("request not passed through: %+v", answers.lastRequest)
	}
}

func TestAnswerQueryBadBody(t *testing.T) {
	h := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, &mockIndexer{}, true)

	req := httptest.NewRequest(http.MethodPost, "/v1/answers", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != codeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	elig := &mockEligibility{decision: domain.EligibilityDecision{
		Eligible:   true,
		Status:     domain.EligibilityEligible,
		Confidence: domain.ConfidenceHigh,
	}}
	h := newTestRouter(t, &mockAnswers{}, elig, &mockIndexer{}, true)

	rec := postJSON(t, h, "/v1/eligibility", domain.EligibilityRequest{
		Category:     "Electronics",
		PurchaseDate: "2026-08-21",
		Reason:       "defective",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got domain.EligibilityDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Eligible {
		t.Errorf("decision = %+v", got)
	}
}

func TestEligibilityValidation(t *testing.T) {
	h := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, &mockIndexer{}, true)

	cases := []struct {
		name string
		body domain.EligibilityRequest
	}{
		{"missing category", domain.EligibilityRequest{PurchaseDate: "2026-08-21"}},
		{"missing purchase date", domain.EligibilityRequest{Category: "Electronics"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, "/v1/eligibility", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestEligibilityInvalidInputMapsTo400(t *testing.T) {
	elig := &mockEligibility{err: domain.ErrInvalidInput}
	h := newTestRouter(t, &mockAnswers{}, elig, &mockIndexer{}, true)

	rec := postJSON(t, h, "/v1/eligibility", domain.EligibilityRequest{
		Category:     "Electronics",
		PurchaseDate: "bogus",
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSummariesEndpoint(t *testing.T) {
	answers := &mockAnswers{summary: domain.StructuredDecision{
		Kind:       "ticket_summary",
		Fields:     map[string]any{"summary": "customer asked about refunds"},
		Source:     domain.SourceModel,
		Confidence: 0.9,
	}}
	h := newTestRouter(t, answers, &mockEligibility{}, &mockIndexer{}, true)

	rec := postJSON(t, h, "/v1/summaries", map[string]any{
		"subject": "TICKET-1",
		"turns":   []map[string]string{{"role": "customer", "content": "refund please"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got domain.StructuredDecision
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Source != domain.SourceModel {
		t.Errorf("summary = %+v", got)
	}
}

func TestReindexEndpoint(t *testing.T) {
	ix := &mockIndexer{stats: indexer.Stats{Documents: 12, Dimensions: 1536, DurationMs: 40}}
	h := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, ix, true)

	rec := postJSON(t, h, "/v1/reindex", map[string]any{})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got indexer.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Documents != 12 {
		t.Errorf("stats = %+v", got)
	}
}

func TestReindexConflictWhileRunning(t *testing.T) {
	ix := &mockIndexer{err: indexer.ErrRebuildInProgress}
	h := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, ix, true)

	rec := postJSON(t, h, "/v1/reindex", map[string]any{})

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != codeRebuildInProgress {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestReadiness(t *testing.T) {
	ready := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, &mockIndexer{}, true)
	rec := httptest.NewRecorder()
	ready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	empty := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, &mockIndexer{}, false)
	rec = httptest.NewRecorder()
	empty.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready status = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t, &mockAnswers{}, &mockEligibility{}, &mockIndexer{}, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status string                          `json:"status"`
		Checks map[string]healthuc.CheckResult `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != string(healthuc.Healthy) {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["index"] != healthuc.CheckOK {
		t.Errorf("index check = %q", resp.Checks["index"])
	}
}
