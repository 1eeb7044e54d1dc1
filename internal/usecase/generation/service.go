// Package generation wraps the raw generation provider behind the one
// fallback contract every call-site shares: a typed result with a success
// flag, never an error. Each feature's degraded behavior is then a pure
// function of that flag instead of scattered per-call-site recovery logic.
package generation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/metrics"
)

// Temperature presets. Extraction tasks run cold so downstream parsing stays
// deterministic; drafting runs warmer for natural replies.
const (
	TempExtraction float32 = 0.1
	TempDrafting   float32 = 0.6
)

// Request is one orchestrated generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	Fallback    string // returned as Text when the call fails
}

// Service is the generation orchestrator.
type Service struct {
	provider       Provider
	timeout        time.Duration
	acquireTimeout time.Duration
	slots          chan struct{}
	logger         *zap.Logger
}

// New creates a generation orchestrator. maxConcurrent bounds in-flight
// provider calls; callers that cannot acquire a slot within acquireTimeout
// take the unavailable path instead of queuing unboundedly.
func New(provider Provider, timeout, acquireTimeout time.Duration, maxConcurrent int, logger *zap.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		provider:       provider,
		timeout:        timeout,
		acquireTimeout: acquireTimeout,
		slots:          make(chan struct{}, maxConcurrent),
		logger:         logger,
	}
}

// Generate invokes the provider under a deadline and returns a typed result.
// Never returns an error and never retries: generation is non-idempotent and
// costly, so a failed call degrades straight to the fallback text.
func (s *Service) Generate(ctx context.Context, req Request) domain.GenerationResult {
	release, err := s.acquire(ctx)
	if err != nil {
		metrics.GenerationFallbacksTotal.WithLabelValues("pool_saturated").Inc()
		s.logger.Warn("Generation slot unavailable", zap.Error(err))
		return fallbackResult(req, err)
	}
	defer release()

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	messages := make([]domain.ChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: req.System})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: req.Prompt})

	out, err := s.provider.Generate(callCtx, domain.GenerationRequest{
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		reason := "provider_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.GenerationFallbacksTotal.WithLabelValues(reason).Inc()
		s.logger.Warn("Generation failed, using fallback",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return fallbackResult(req, err)
	}

	return domain.GenerationResult{
		Text:      out.Text,
		Model:     out.Model,
		Success:   true,
		LatencyMs: out.LatencyMs,
	}
}

// acquire takes a worker slot, waiting at most acquireTimeout.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	var timer <-chan time.Time
	if s.acquireTimeout > 0 {
		t := time.NewTimer(s.acquireTimeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, domain.ErrGenerationBusy
	}
}

func fallbackResult(req Request, err error) domain.GenerationResult {
	return domain.GenerationResult{
		Text:    req.Fallback,
		Success: false,
		Err:     err,
	}
}
