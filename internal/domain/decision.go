package domain

// Provenance of a structured decision.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// ScopeDecision is the scope classifier verdict for one query.
type ScopeDecision struct {
	InScope    bool    `json:"in_scope"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// StructuredDecision is a typed key/value structure recovered from model text.
// Source records whether the fields came from the model or from the
// deterministic synthetic fallback.
type StructuredDecision struct {
	Kind       string         `json:"kind"`
	Fields     map[string]any `json:"fields"`
	Source     string         `json:"source"` // model | fallback
	Confidence float64        `json:"confidence"`
}

// Answer is the caller-facing result of the answer pipeline. Always populated:
// every failure path downstream of input validation degrades to fallback text.
type Answer struct {
	Response       string        `json:"response"`
	Sources        []SourceRef   `json:"sources"`
	RetrievedCount int           `json:"retrieved_count"`
	Scope          ScopeDecision `json:"scope"`
	Generation     struct {
		Model     string `json:"model,omitempty"`
		Fallback  bool   `json:"fallback"`
		LatencyMs int64  `json:"latency_ms"`
	} `json:"generation"`
	Truncated bool `json:"truncated,omitempty"` // oversized query was cut
}

// Eligibility statuses. The hard-rule pass can only move a status toward
// NotEligible, never away from it.
const (
	EligibilityEligible          = "ELIGIBLE"
	EligibilityPartiallyEligible = "PARTIALLY_ELIGIBLE"
	EligibilityNotEligible       = "NOT_ELIGIBLE"
)

// Confidence buckets used by the eligibility engine.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// EligibilityRequest is the input to the eligibility reasoning engine.
type EligibilityRequest struct {
	Category     string `json:"category"`
	PurchaseDate string `json:"purchase_date"` // YYYY-MM-DD
	Reason       string `json:"reason"`
	Condition    string `json:"condition"`
	HasPackaging bool   `json:"has_packaging"`
	HasReceipt   bool   `json:"has_receipt"`
}

// EligibilityDecision is the final verdict of the eligibility engine.
type EligibilityDecision struct {
	Eligible          bool     `json:"eligible"`
	Status            string   `json:"eligibility_status"`
	Confidence        string   `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	RefundAmount      string   `json:"refund_amount"`
	RefundPercentage  int      `json:"refund_percentage"`
	NextSteps         []string `json:"next_steps"`
	PolicyReferences  []string `json:"policy_references"`
	Warnings          []string `json:"warnings"`
	DaysSincePurchase int      `json:"days_since_purchase"`
	Source            string   `json:"source"` // model | fallback
}

// Artifact is a cached generated artifact (ticket summary, refund explanation).
type Artifact struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Subject   string             `json:"subject"`
	Decision  StructuredDecision `json:"decision"`
	CreatedAt int64              `json:"created_at"` // unix millis
}
