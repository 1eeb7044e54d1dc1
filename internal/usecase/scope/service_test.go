package scope

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
)

type mockGenerator struct {
	result  domain.GenerationResult
	lastReq generation.Request
}

func (m *mockGenerator) Generate(_ context.Context, req generation.Request) domain.GenerationResult {
	m.lastReq = req
	return m.result
}

func TestClassifyInScope(t *testing.T) {
	gen := &mockGenerator{result: domain.GenerationResult{
		Text:    `{"in_scope": true, "confidence": 0.93, "reason": "asks about a refund"}`,
		Success: true,
	}}
	svc := New(gen, Config{}, zap.NewNop())

	got := svc.Classify(context.Background(), "where is my refund?")

	if !got.InScope {
		t.Error("expected in-scope verdict")
	}
	if got.Confidence != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", got.Confidence)
	}
	if got.Reason != "asks about a refund" {
		t.Errorf("Reason = %q", got.Reason)
	}
	if gen.lastReq.Temperature != generation.TempExtraction {
		t.Errorf("classifier should run cold, got temperature %v", gen.lastReq.Temperature)
	}
}

func TestClassifyOutOfScope(t *testing.T) {
	gen := &mockGenerator{result: domain.GenerationResult{
		Text:    `{"in_scope": false, "confidence": 0.88, "reason": "homework question"}`,
		Success: true,
	}}
	svc := New(gen, Config{}, zap.NewNop())

	got := svc.Classify(context.Background(), "solve this integral for me")

	if got.InScope {
		t.Error("expected out-of-scope verdict")
	}
	if got.Confidence != 0.88 {
		t.Errorf("Confidence = %v, want 0.88", got.Confidence)
	}
}

func TestClassifyWrappedJSON(t *testing.T) {
	gen := &mockGenerator{result: domain.GenerationResult{
		Text:    "Here is my verdict:\n```json\n{\"in_scope\": false, \"confidence\": 0.8, \"reason\": \"off topic\"}\n```",
		Success: true,
	}}
	svc := New(gen, Config{}, zap.NewNop())

	got := svc.Classify(context.Background(), "q")
	if got.InScope || got.Confidence != 0.8 {
		t.Errorf("wrapped verdict not recovered: %+v", got)
	}
}

func TestClassifyFailsOpen(t *testing.T) {
	cases := []struct {
		name   string
		result domain.GenerationResult
	}{
		{"provider failure", domain.GenerationResult{Success: false, Err: errors.New("upstream 500")}},
		{"no json in reply", domain.GenerationResult{Text: "I think this is about refunds.", Success: true}},
		{"missing in_scope field", domain.GenerationResult{Text: `{"confidence": 0.9}`, Success: true}},
		{"malformed json", domain.GenerationResult{Text: `{"in_scope": true,`, Success: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockGenerator{result: tc.result}, Config{}, zap.NewNop())
			got := svc.Classify(context.Background(), "q")
			if !got.InScope {
				t.Error("classifier failure must fail open to in-scope")
			}
			if got.Confidence != 0 {
				t.Errorf("fail-open confidence = %v, want 0", got.Confidence)
			}
			if got.Reason != "classifier unavailable" {
				t.Errorf("Reason = %q", got.Reason)
			}
		})
	}
}

func TestClassifyConfiguredTemperature(t *testing.T) {
	gen := &mockGenerator{result: domain.GenerationResult{
		Text:    `{"in_scope": true, "confidence": 0.9, "reason": "r"}`,
		Success: true,
	}}
	svc := New(gen, Config{Temperature: 0.3}, zap.NewNop())

	svc.Classify(context.Background(), "q")
	if gen.lastReq.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want configured 0.3", gen.lastReq.Temperature)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	gen := &mockGenerator{result: domain.GenerationResult{
		Text:    `{"in_scope": true, "confidence": 7.5, "reason": "r"}`,
		Success: true,
	}}
	svc := New(gen, Config{}, zap.NewNop())

	got := svc.Classify(context.Background(), "q")
	if got.Confidence != 0 {
		t.Errorf("out-of-range confidence should be dropped, got %v", got.Confidence)
	}
}
