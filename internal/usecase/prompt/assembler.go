// Package prompt renders the generation prompt from conversation history,
// customer account context, and retrieved passages, deterministically and
// under a size budget.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// SystemInstruction is the fixed tone-and-boundary instruction sent with
// every customer-facing generation call.
const SystemInstruction = "You are a customer support assistant for an online retailer. " +
	"Answer only from the provided policy sources and account context. " +
	"Be concise, polite, and concrete. If the sources do not cover the question, " +
	"say so and offer to escalate to a human agent. Never invent order details, " +
	"amounts, or policy terms."

// Config holds assembler budgets.
type Config struct {
	MaxHistoryTurns  int // prior turns kept, most recent last
	MaxAccountItems  int // orders/refunds/returns each capped to this
	PassageCharLimit int // per-passage content cap
	CharBudget       int // total prompt budget
}

// Assembler renders prompts.
type Assembler struct {
	cfg Config
}

// New creates an assembler.
func New(cfg Config) *Assembler {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 5
	}
	if cfg.MaxAccountItems <= 0 {
		cfg.MaxAccountItems = 3
	}
	if cfg.PassageCharLimit <= 0 {
		cfg.PassageCharLimit = 1200
	}
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = 12000
	}
	return &Assembler{cfg: cfg}
}

// Assemble renders the user prompt. When the rendered size exceeds the
// budget, oldest history turns are dropped first, then lowest-similarity
// passages; the query itself is never dropped.
func (a *Assembler) Assemble(
	query string,
	passages []domain.RetrievedPassage,
	history []domain.ConversationTurn,
	customer *domain.CustomerContext,
) string {
	history = tailTurns(history, a.cfg.MaxHistoryTurns)

	for {
		rendered := a.render(query, passages, history, customer)
		if len(rendered) <= a.cfg.CharBudget {
			return rendered
		}
		// Drop the oldest history turn first.
		if len(history) > 0 {
			history = history[1:]
			continue
		}
		// Then the least similar passage. Passages arrive ordered descending.
		if len(passages) > 0 {
			passages = passages[:len(passages)-1]
			continue
		}
		// Nothing left to drop: an oversized query was already truncated upstream.
		return rendered
	}
}

func (a *Assembler) render(
	query string,
	passages []domain.RetrievedPassage,
	history []domain.ConversationTurn,
	customer *domain.CustomerContext,
) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turnLabel(turn.Role), turn.Content)
		}
		b.WriteString("\n")
	}

	if customer != nil && customer.HasOrders {
		b.WriteString("Customer account:\n")
		for i, o := range customer.RecentOrders {
			if i == a.cfg.MaxAccountItems {
				break
			}
			fmt.Fprintf(&b, "- Order %s: %s, $%.2f, %s\n", o.OrderID, o.Product, o.Amount, o.Status)
		}
		for i, r := range customer.PendingRefunds {
			if i == a.cfg.MaxAccountItems {
				break
			}
			fmt.Fprintf(&b, "- Refund %s (order %s): $%.2f, %s\n", r.RefundID, r.OrderID, r.Amount, r.Status)
		}
		for i, r := range customer.PendingReturns {
			if i == a.cfg.MaxAccountItems {
				break
			}
			fmt.Fprintf(&b, "- Return %s (order %s): %s, %s\n", r.ReturnID, r.OrderID, r.Reason, r.Status)
		}
		b.WriteString("\n")
	}

	if len(passages) > 0 {
		b.WriteString("Policy sources:\n")
		for i, p := range passages {
			content := p.Document.Content
			if runes := []rune(content); len(runes) > a.cfg.PassageCharLimit {
				content = string(runes[:a.cfg.PassageCharLimit]) + "..."
			}
			fmt.Fprintf(&b, "[Source %d] %s (%s)\n%s\n\n", i+1, p.Document.Title, p.Document.Category, content)
		}
	}

	fmt.Fprintf(&b, "Customer question: %s", query)
	return b.String()
}

// tailTurns keeps the last n turns, most recent last.
func tailTurns(history []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func turnLabel(role string) string {
	switch role {
	case domain.TurnAI:
		return "Assistant"
	case domain.TurnSystem:
		return "System"
	default:
		return "Customer"
	}
}
