package mux

import (
	"fmt"

	"github.com/google/uuid"
)

// Priority orders messages from least to most urgent.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityNormal:
		return "Normal"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name into a Priority.
// Matching is exact; unknown names return an error.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "Low":
		return PriorityLow, nil
	case "Normal":
		return PriorityNormal, nil
	case "High":
		return PriorityHigh, nil
	case "Urgent":
		return PriorityUrgent, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

// Message is the unit of work routed through the engine. The shell fields
// (ID, SenderID) are set at creation; middleware mutates the bag fields
// (Metadata, Priority, ReceiverID) as the message moves down the pipeline.
// A single message is processed by at most one pipeline invocation at a
// time, so the bag is not internally locked.
type Message struct {
	ID             string
	SenderID       string
	ReceiverID     string
	Subject        string
	Content        string
	Category       string
	Priority       Priority
	ConversationID string

	// Metadata carries middleware-written keys. Keys are case-sensitive.
	Metadata map[string]any

	// ctxValues is the typed scratch area, separate from Metadata so that
	// feature-flag results do not leak into wire-visible metadata.
	ctxValues map[string]any
}

// NewMessage creates a message with a generated unique id and Normal
// priority.
func NewMessage(senderID, subject, content string) *Message {
	return &Message{
		ID:       uuid.NewString(),
		SenderID: senderID,
		Subject:  subject,
		Content:  content,
		Priority: PriorityNormal,
	}
}

// SetMetadata writes a metadata key, allocating the bag on first use.
func (m *Message) SetMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// MetadataValue reads a metadata key.
func (m *Message) MetadataValue(key string) (any, bool) {
	v, ok := m.Metadata[key]
	return v, ok
}

// MetadataString reads a metadata key as a string, returning "" when the
// key is absent or not a string.
func (m *Message) MetadataString(key string) string {
	if v, ok := m.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetContextValue stores a typed scratch value on the message.
func (m *Message) SetContextValue(key string, value any) {
	if m.ctxValues == nil {
		m.ctxValues = make(map[string]any)
	}
	m.ctxValues[key] = value
}

// ContextValue reads a typed scratch value.
func (m *Message) ContextValue(key string) (any, bool) {
	v, ok := m.ctxValues[key]
	return v, ok
}

// BoolContextValue reads a scratch value as a bool, returning false when
// absent or not a bool.
func (m *Message) BoolContextValue(key string) bool {
	if v, ok := m.ctxValues[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Clone returns a deep copy of the message with its own metadata and
// scratch maps. Broadcast and workflow forwarding use clones so that
// per-recipient mutation does not leak across deliveries.
func (m *Message) Clone() *Message {
	c := *m
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	if m.ctxValues != nil {
		c.ctxValues = make(map[string]any, len(m.ctxValues))
		for k, v := range m.ctxValues {
			c.ctxValues[k] = v
		}
	}
	return &c
}
