// Package eligibility produces refund/return eligibility verdicts. The
// reasoning text comes from the model; a deterministic hard-rule pass runs
// afterwards and can only make the verdict more conservative.
package eligibility

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskpilot/internal/domain"
	"github.com/kailas-cloud/deskpilot/internal/usecase/generation"
)

// SubcategoryCustomerFacing marks policy passages written for customers
// rather than internal agents. Customer-facing passages are preferred when
// building the reasoning prompt.
const SubcategoryCustomerFacing = "customer_facing"

const reasoningSystem = "You are a refund and return eligibility analyst for an online retailer. " +
	"Decide strictly from the provided policy excerpts and purchase facts. " +
	"Respond using exactly this template, one section per line:\n" +
	"ELIGIBILITY: ELIGIBLE | PARTIALLY_ELIGIBLE | NOT_ELIGIBLE\n" +
	"CONFIDENCE: HIGH | MEDIUM | LOW\n" +
	"REASONING: <why, citing the policy excerpts>\n" +
	"REFUND_AMOUNT: <amount or percentage, e.g. 100% or 0>\n" +
	"NEXT_STEPS:\n- <step>\n" +
	"POLICY_REFERENCES:\n- <policy title>"

// Config holds eligibility engine settings.
type Config struct {
	WarnAfterDays int // past this, warn the window may have expired
	DenyAfterDays int // past this, force ineligible
	TopK          int // policy passages retrieved
	MaxTokens     int
	Temperature   float32
}

// Service is the eligibility reasoning engine.
type Service struct {
	retriever Retriever
	gen       Generator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an eligibility engine.
func New(retriever Retriever, gen Generator, cfg Config, logger *zap.Logger) *Service {
	if cfg.WarnAfterDays <= 0 {
		cfg.WarnAfterDays = 30
	}
	if cfg.DenyAfterDays <= 0 {
		cfg.DenyAfterDays = 45
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = generation.TempExtraction
	}
	return &Service{
		retriever: retriever,
		gen:       gen,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Check runs the full reasoning sequence for one request. A failed generation
// call degrades to the conservative default instead of an error; only an
// unusable request (bad purchase date) is rejected.
func (s *Service) Check(ctx context.Context, req domain.EligibilityRequest) (domain.EligibilityDecision, error) {
	purchased, err := time.Parse("2006-01-02", req.PurchaseDate)
	if err != nil {
		return domain.EligibilityDecision{}, fmt.Errorf("%w: purchase_date %q is not YYYY-MM-DD", domain.ErrInvalidInput, req.PurchaseDate)
	}
	days := int(s.now().Sub(purchased).Hours() / 24)
	if days < 0 {
		return domain.EligibilityDecision{}, fmt.Errorf("%w: purchase_date %q is in the future", domain.ErrInvalidInput, req.PurchaseDate)
	}

	passages := s.retrievePolicy(ctx, req)

	res := s.gen.Generate(ctx, generation.Request{
		System:      reasoningSystem,
		Prompt:      buildReasoningPrompt(req, days, passages),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})

	var decision domain.EligibilityDecision
	if res.Success {
		decision = parseSections(res.Text)
		decision.Source = domain.SourceModel
	} else {
		s.logger.Warn("Eligibility generation failed, using conservative default",
			zap.String("category", req.Category),
			zap.Error(res.Err),
		)
		decision = conservativeDefault()
		decision.Confidence = domain.ConfidenceLow
	}
	decision.DaysSincePurchase = days

	s.applyHardRules(&decision)
	return decision, nil
}

// retrievePolicy fetches policy passages for a synthesized eligibility query,
// preferring customer-facing ones when any were retrieved.
func (s *Service) retrievePolicy(ctx context.Context, req domain.EligibilityRequest) []domain.RetrievedPassage {
	query := fmt.Sprintf("refund return eligibility policy for %s, reason: %s", req.Category, req.Reason)
	passages := s.retriever.Retrieve(ctx, query, s.cfg.TopK, "")

	var facing []domain.RetrievedPassage
	for _, p := range passages {
		if strings.EqualFold(p.Document.Subcategory, SubcategoryCustomerFacing) {
			facing = append(facing, p)
		}
	}
	if len(facing) > 0 {
		return facing
	}
	return passages
}

func buildReasoningPrompt(req domain.EligibilityRequest, days int, passages []domain.RetrievedPassage) string {
	var b strings.Builder

	if len(passages) > 0 {
		b.WriteString("Policy excerpts:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, p.Document.Title, p.Document.Content)
		}
	} else {
		b.WriteString("No policy excerpts were found; reason from general retail practice and stay conservative.\n\n")
	}

	b.WriteString("Purchase facts:\n")
	fmt.Fprintf(&b, "- Category: %s\n", req.Category)
	fmt.Fprintf(&b, "- Days since purchase: %d\n", days)
	fmt.Fprintf(&b, "- Return reason: %s\n", req.Reason)
	fmt.Fprintf(&b, "- Item condition: %s\n", req.Condition)
	fmt.Fprintf(&b, "- Original packaging: %s\n", yesNo(req.HasPackaging))
	fmt.Fprintf(&b, "- Receipt available: %s\n", yesNo(req.HasReceipt))

	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// applyHardRules enforces the deterministic return-window limits. It runs on
// every decision and only moves the verdict toward NOT_ELIGIBLE.
func (s *Service) applyHardRules(d *domain.EligibilityDecision) {
	if d.DaysSincePurchase > s.cfg.WarnAfterDays {
		d.Warnings = append(d.Warnings,
			fmt.Sprintf("Purchase was %d days ago; the standard %d-day return window may have expired.",
				d.DaysSincePurchase, s.cfg.WarnAfterDays))
	}
	if d.DaysSincePurchase > s.cfg.DenyAfterDays {
		d.Eligible = false
		d.Status = domain.EligibilityNotEligible
		d.RefundAmount = "0"
		d.RefundPercentage = 0
		d.Warnings = append(d.Warnings,
			fmt.Sprintf("Purchase exceeds the %d-day hard limit; the request is not eligible regardless of other factors.",
				s.cfg.DenyAfterDays))
	}
}

// Section labels of the reasoning template.
const (
	labelEligibility = "ELIGIBILITY:"
	labelConfidence  = "CONFIDENCE:"
	labelReasoning   = "REASONING:"
	labelRefund      = "REFUND_AMOUNT:"
	labelNextSteps   = "NEXT_STEPS:"
	labelPolicyRefs  = "POLICY_REFERENCES:"
)

// parseSections recovers a decision from the labeled template. Unknown or
// missing sections take conservative defaults.
func parseSections(text string) domain.EligibilityDecision {
	d := conservativeDefault()

	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, labelEligibility):
			section = labelEligibility
			d.Status, d.Eligible = parseStatus(rest(line, labelEligibility))
		case strings.HasPrefix(upper, labelConfidence):
			section = labelConfidence
			d.Confidence = parseConfidence(rest(line, labelConfidence))
		case strings.HasPrefix(upper, labelReasoning):
			section = labelReasoning
			d.Reasoning = rest(line, labelReasoning)
		case strings.HasPrefix(upper, labelRefund):
			section = labelRefund
			d.RefundAmount = rest(line, labelRefund)
			d.RefundPercentage = parsePercentage(d.RefundAmount)
		case strings.HasPrefix(upper, labelNextSteps):
			section = labelNextSteps
			d.NextSteps = appendItems(d.NextSteps, rest(line, labelNextSteps))
		case strings.HasPrefix(upper, labelPolicyRefs):
			section = labelPolicyRefs
			d.PolicyReferences = appendItems(d.PolicyReferences, rest(line, labelPolicyRefs))
		default:
			// Continuation line of the current section.
			switch section {
			case labelReasoning:
				if d.Reasoning == "" {
					d.Reasoning = line
				} else {
					d.Reasoning += " " + line
				}
			case labelNextSteps:
				d.NextSteps = appendItems(d.NextSteps, line)
			case labelPolicyRefs:
				d.PolicyReferences = appendItems(d.PolicyReferences, line)
			}
		}
	}

	if d.Reasoning == "" {
		d.Reasoning = "The model response did not include reasoning; defaulting to a conservative verdict."
	}
	return d
}

func conservativeDefault() domain.EligibilityDecision {
	return domain.EligibilityDecision{
		Eligible:         false,
		Status:           domain.EligibilityNotEligible,
		Confidence:       domain.ConfidenceMedium,
		Reasoning:        "Eligibility could not be established from the available policy text.",
		RefundAmount:     "0",
		RefundPercentage: 0,
		NextSteps:        []string{},
		PolicyReferences: []string{},
		Warnings:         []string{},
		Source:           domain.SourceFallback,
	}
}

func rest(line, label string) string {
	return strings.TrimSpace(line[len(label):])
}

func parseStatus(v string) (status string, eligible bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ELIGIBLE", "YES":
		return domain.EligibilityEligible, true
	case "PARTIALLY_ELIGIBLE", "PARTIAL", "PARTIALLY ELIGIBLE":
		return domain.EligibilityPartiallyEligible, true
	default:
		return domain.EligibilityNotEligible, false
	}
}

func parseConfidence(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case domain.ConfidenceHigh:
		return domain.ConfidenceHigh
	case domain.ConfidenceLow:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}

// parsePercentage extracts the integer before a percent sign, clamped to
// [0,100]. "full refund" maps to 100.
func parsePercentage(v string) int {
	lower := strings.ToLower(v)
	if strings.Contains(lower, "full") {
		return 100
	}
	idx := strings.IndexByte(v, '%')
	if idx < 0 {
		return 0
	}
	start := idx
	for start > 0 && v[start-1] >= '0' && v[start-1] <= '9' {
		start--
	}
	if start == idx {
		return 0
	}
	n, err := strconv.Atoi(v[start:idx])
	if err != nil {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// appendItems splits a list line ("- step", "1. step", or a bare item) and
// appends the non-empty results.
func appendItems(items []string, line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "-")
	line = strings.TrimPrefix(line, "*")
	if len(line) > 1 && line[0] >= '0' && line[0] <= '9' && (line[1] == '.' || line[1] == ')') {
		line = line[2:]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return items
	}
	return append(items, line)
}
