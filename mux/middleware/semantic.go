package middleware

import (
	"context"
	"strings"

	"github.com/agent-mux/agent-mux/mux"
)

// categoryKeywords scores uncategorized messages into a coarse category.
var categoryKeywords = map[string][]string{
	"Billing":   {"invoice", "payment", "charge", "billing", "refund", "subscription"},
	"Technical": {"error", "bug", "crash", "broken", "install", "technical", "server"},
	"Sales":     {"buy", "purchase", "pricing", "quote", "demo", "upgrade"},
}

// semanticOrder fixes the tie-break order when categories score equally.
var semanticOrder = []string{"Billing", "Technical", "Sales"}

// SemanticRouting infers a category for messages that arrive without one,
// scoring keyword hits over subject and content. The highest-scoring
// category wins; zero hits falls back to "General". Messages that
// already carry a category pass through untouched.
func SemanticRouting() mux.Middleware {
	return func(ctx context.Context, msg *mux.Message, next mux.Handler) (*mux.Result, error) {
		if msg.Category == "" {
			msg.Category = inferCategory(msg.Subject, msg.Content)
		}
		return next(ctx, msg)
	}
}

func inferCategory(subject, content string) string {
	text := strings.ToLower(subject + " " + content)
	best, bestScore := "General", 0
	for _, cat := range semanticOrder {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	return best
}
