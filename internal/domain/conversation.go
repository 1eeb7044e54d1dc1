package domain

// Conversation turn roles.
const (
	TurnCustomer = "customer"
	TurnAI       = "ai"
	TurnSystem   = "system"
)

// ConversationTurn is one prior message in a support conversation.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OrderSummary is a one-line view of a customer order supplied by the external
// order store. Read-only to this service.
type OrderSummary struct {
	OrderID string  `json:"order_id"`
	Product string  `json:"product"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
}

// RefundSummary is a pending refund attached to a customer account.
type RefundSummary struct {
	RefundID string  `json:"refund_id"`
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Status   string  `json:"status"`
}

// ReturnSummary is a pending return attached to a customer account.
type ReturnSummary struct {
	ReturnID string `json:"return_id"`
	OrderID  string `json:"order_id"`
	Reason   string `json:"reason"`
	Status   string `json:"status"`
}

// CustomerContext is the account state rendered into prompts. Supplied by the
// external order/refund store.
type CustomerContext struct {
	HasOrders      bool            `json:"has_orders"`
	RecentOrders   []OrderSummary  `json:"recent_orders,omitempty"`
	PendingRefunds []RefundSummary `json:"pending_refunds,omitempty"`
	PendingReturns []ReturnSummary `json:"pending_returns,omitempty"`
}
