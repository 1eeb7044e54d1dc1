// Package scope decides whether a customer query belongs to the support
// domain at all. The classifier fails open: when it cannot produce a usable
// verdict the query is treated as in scope and handled downstream.
package scope

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
	"github.com/kailas-cloud/deskpilot/internal/usecase/repair"
)

const classifierSystem = "You are a strict topic classifier for a retail customer support desk. " +
	"In-scope topics: orders, shipping, returns, refunds, warranties, product questions, " +
	"account and payment issues. Everything else is out of scope. " +
	"Respond with a single JSON object: " +
	`{"in_scope": true|false, "confidence": 0.0-1.0, "reason": "short explanation"}`

const classifierMaxTokens = 150

// Config holds classifier settings.
type Config struct {
	Temperature float32
}

// Service classifies queries.
type Service struct {
	gen    Generator
	cfg    Config
	logger *zap.Logger
}

// New creates a scope classifier.
func New(gen Generator, cfg Config, logger *zap.Logger) *Service {
	if cfg.Temperature <= 0 {
		cfg.Temperature = generation.TempExtraction
	}
	return &Service{gen: gen, cfg: cfg, logger: logger}
}

type classifierVerdict struct {
	InScope    *bool    `json:"in_scope"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Classify returns the scope verdict for a query. Any classifier failure,
// from the provider call to an unparseable reply, yields an in-scope verdict
// with zero confidence so the pipeline never refuses on its own malfunction.
func (s *Service) Classify(ctx context.Context, query string) domain.ScopeDecision {
	res := s.gen.Generate(ctx, generation.Request{
		System:      classifierSystem,
		Prompt:      fmt.Sprintf("Classify this customer message: %q", query),
		Temperature: s.cfg.Temperature,
		MaxTokens:   classifierMaxTokens,
	})
	if !res.Success {
		s.logger.Warn("Scope classifier unavailable", zap.Error(res.Err))
		return failOpen()
	}

	payload, ok := repair.ExtractJSON(res.Text)
	if !ok {
		s.logger.Warn("Scope classifier returned no JSON", zap.String("text", res.Text))
		return failOpen()
	}

	var v classifierVerdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil || v.InScope == nil {
		s.logger.Warn("Scope classifier verdict unparseable", zap.Error(err))
		return failOpen()
	}

	confidence := 0.0
	if v.Confidence != nil && *v.Confidence >= 0 && *v.Confidence <= 1 {
		confidence = *v.Confidence
	}

	return domain.ScopeDecision{
		InScope:    *v.InScope,
		Confidence: confidence,
		Reason:     v.Reason,
	}
}

func failOpen() domain.ScopeDecision {
	return domain.ScopeDecision{
		InScope:    true,
		Confidence: 0,
		Reason:     "classifier unavailable",
	}
}
