// Package answer orchestrates the customer-facing pipeline: validate, gate by
// scope, retrieve, assemble, generate. Every path downstream of input
// validation returns a usable Answer; provider trouble degrades to fallback
// text instead of errors.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/metrics"
	"github.com/kailas-cloud/deskpilot/internal/repository/artifact"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
	"github.com/kailas-cloud/deskpilot/internal/usecase/prompt"
	"github.com/kailas-cloud/deskpilot/internal/usecase/repair"
)

// Canned responses for the deterministic short-circuit paths.
const (
	promptForDetailResponse = "Could you share a bit more detail about your question? " +
		"For example the order number or the topic (returns, refunds, shipping) you need help with."
	refusalResponse = "I can only help with questions about orders, shipping, returns, refunds, " +
		"and our products. For anything else, please contact our general support line."
	noContentResponse = "I don't have information about that in our support knowledge base. " +
		"Would you like me to connect you with a human agent?"
	generationFallbackResponse = "I found relevant policy information but I'm having trouble " +
		"composing a full answer right now. Please try again in a moment, or ask to be " +
		"connected with a human agent."
)

const kindSummary = "ticket_summary"

const summarySystem = "You summarize customer support conversations for internal handoff. " +
	"Respond with a single JSON object: " +
	`{"summary": "...", "sentiment": "positive|neutral|negative", ` +
	`"key_issues": ["..."], "suggested_response": "...", "confidence": 0.0-1.0}`

// Config holds answer pipeline settings.
type Config struct {
	TopK               int
	RefusalConfidence  float64 // refuse only above this classifier confidence
	QueryRuneLimit     int
	MaxAnswerTokens    int
	MaxExtractTokens   int
	DraftTemperature   float32 // customer-facing replies
	ExtractTemperature float32 // structured summaries
}

// Request is one answerable customer query.
type Request struct {
	Query    string
	History  []domain.ConversationTurn
	Category string // optional category filter
	Customer *domain.CustomerContext
}

// Service is the answer pipeline.
type Service struct {
	classifier Classifier
	retriever  Retriever
	assembler  Assembler
	gen        Generator
	artifacts  ArtifactStore
	cfg        Config
	logger     *zap.Logger
}

// New creates the answer pipeline.
func New(
	classifier Classifier,
	retriever Retriever,
	assembler Assembler,
	gen Generator,
	artifacts ArtifactStore,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.RefusalConfidence <= 0 {
		cfg.RefusalConfidence = 0.7
	}
	if cfg.QueryRuneLimit <= 0 {
		cfg.QueryRuneLimit = 2000
	}
	if cfg.MaxAnswerTokens <= 0 {
		cfg.MaxAnswerTokens = 700
	}
	if cfg.MaxExtractTokens <= 0 {
		cfg.MaxExtractTokens = 400
	}
	if cfg.DraftTemperature <= 0 {
		cfg.DraftTemperature = generation.TempDrafting
	}
	if cfg.ExtractTemperature <= 0 {
		cfg.ExtractTemperature = generation.TempExtraction
	}
	return &Service{
		classifier: classifier,
		retriever:  retriever,
		assembler:  assembler,
		gen:        gen,
		artifacts:  artifacts,
		cfg:        cfg,
		logger:     logger,
	}
}

// AnswerQuery runs the full pipeline for one query.
func (s *Service) AnswerQuery(ctx context.Context, req Request) domain.Answer {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		metrics.AnswersTotal.WithLabelValues("invalid_input").Inc()
		return domain.Answer{
			Response: promptForDetailResponse,
			Sources:  []domain.SourceRef{},
			Scope:    domain.ScopeDecision{InScope: true},
		}
	}

	truncated := false
	if runes := []rune(query); len(runes) > s.cfg.QueryRuneLimit {
		query = string(runes[:s.cfg.QueryRuneLimit])
		truncated = true
		s.logger.Warn("Query truncated", zap.Int("limit", s.cfg.QueryRuneLimit))
	}

	scope := s.classifier.Classify(ctx, query)
	if !scope.InScope && scope.Confidence > s.cfg.RefusalConfidence {
		metrics.AnswersTotal.WithLabelValues("out_of_scope").Inc()
		return domain.Answer{
			Response:  refusalResponse,
			Sources:   []domain.SourceRef{},
			Scope:     scope,
			Truncated: truncated,
		}
	}

	passages := s.retriever.Retrieve(ctx, query, s.cfg.TopK, req.Category)
	if len(passages) == 0 {
		metrics.AnswersTotal.WithLabelValues("no_content").Inc()
		return domain.Answer{
			Response:  noContentResponse,
			Sources:   []domain.SourceRef{},
			Scope:     scope,
			Truncated: truncated,
		}
	}

	res := s.gen.Generate(ctx, generation.Request{
		System:      prompt.SystemInstruction,
		Prompt:      s.assembler.Assemble(query, passages, req.History, req.Customer),
		Temperature: s.cfg.DraftTemperature,
		MaxTokens:   s.cfg.MaxAnswerTokens,
		Fallback:    generationFallbackResponse,
	})

	outcome := "answered"
	if !res.Success {
		outcome = "fallback"
	}
	metrics.AnswersTotal.WithLabelValues(outcome).Inc()

	ans := domain.Answer{
		Response:       res.Text,
		Sources:        sourceRefs(passages),
		RetrievedCount: len(passages),
		Scope:          scope,
		Truncated:      truncated,
	}
	ans.Generation.Model = res.Model
	ans.Generation.Fallback = !res.Success
	ans.Generation.LatencyMs = res.LatencyMs
	return ans
}

// Summarize produces a structured summary of a conversation, cached per
// subject unless regenerate is set.
func (s *Service) Summarize(ctx context.Context, subject string, turns []domain.ConversationTurn, regenerate bool) (domain.StructuredDecision, error) {
	if strings.TrimSpace(subject) == "" {
		return domain.StructuredDecision{}, fmt.Errorf("%w: subject is required", domain.ErrInvalidInput)
	}

	subjectKey := artifact.SubjectKey(kindSummary, subject+"\x00"+transcript(turns))

	if !regenerate {
		art, err := s.artifacts.Get(ctx, kindSummary, subjectKey)
		if err == nil {
			return art.Decision, nil
		}
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			// Cache trouble behaves like a miss.
			s.logger.Warn("Artifact cache lookup failed", zap.Error(err))
		}
	}

	res := s.gen.Generate(ctx, generation.Request{
		System:      summarySystem,
		Prompt:      fmt.Sprintf("Subject: %s\n\nConversation:\n%s", subject, transcript(turns)),
		Temperature: s.cfg.ExtractTemperature,
		MaxTokens:   s.cfg.MaxExtractTokens,
	})

	decision, _ := repair.Repair(res.Text, repair.Fallback{
		Kind: kindSummary,
		Fields: map[string]any{
			"summary":    fmt.Sprintf("Conversation about %q with %d turns; automatic summary unavailable.", subject, len(turns)),
			"sentiment":  "neutral",
			"key_issues": []string{},
		},
		Confidence: 0.2,
	})

	// Never cache a synthetic fallback: it would pin a transient provider
	// outage to the subject for the whole TTL.
	if decision.Source == domain.SourceFallback {
		return decision, nil
	}

	art := domain.Artifact{
		ID:        uuid.NewString(),
		Kind:      kindSummary,
		Subject:   subject,
		Decision:  decision,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.artifacts.Put(ctx, subjectKey, art); err != nil {
		// The summary is still good; only caching failed.
		s.logger.Warn("Failed to cache summary artifact", zap.Error(err))
	}

	return decision, nil
}

func transcript(turns []domain.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	return b.String()
}

func sourceRefs(passages []domain.RetrievedPassage) []domain.SourceRef {
	refs := make([]domain.SourceRef, 0, len(passages))
	for _, p := range passages {
		refs = append(refs, domain.SourceRef{
			DocumentID: p.Document.ID,
			Title:      p.Document.Title,
			Category:   p.Document.Category,
			Similarity: p.Similarity,
		})
	}
	return refs
}
