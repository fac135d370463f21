package mux

import "strings"

// RoutingContext is a lightweight read-only view of a message for rule
// predicates. Constructed once per Route call; never mutated. Predicates
// that need derived checks use the helper methods rather than reaching
// back into the message.
type RoutingContext struct {
	MessageID string
	SenderID  string
	Subject   string
	Content   string
	Category  string
	Priority  Priority
}

// NewRoutingContext projects a message into a routing context.
func NewRoutingContext(msg *Message) RoutingContext {
	return RoutingContext{
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Subject:   msg.Subject,
		Content:   msg.Content,
		Category:  msg.Category,
		Priority:  msg.Priority,
	}
}

// IsHighPriority reports whether the message is High or Urgent.
func (c RoutingContext) IsHighPriority() bool {
	return c.Priority >= PriorityHigh
}

// IsUrgent reports whether the message is Urgent.
func (c RoutingContext) IsUrgent() bool {
	return c.Priority == PriorityUrgent
}

// CategoryIs reports whether the category matches, ignoring case.
func (c RoutingContext) CategoryIs(category string) bool {
	return strings.EqualFold(c.Category, category)
}

// SubjectContains reports whether the subject contains s, ignoring case.
func (c RoutingContext) SubjectContains(s string) bool {
	return strings.Contains(strings.ToLower(c.Subject), strings.ToLower(s))
}

// ContentContains reports whether the content contains s, ignoring case.
func (c RoutingContext) ContentContains(s string) bool {
	return strings.Contains(strings.ToLower(c.Content), strings.ToLower(s))
}
