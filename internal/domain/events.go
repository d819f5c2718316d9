package domain

import "time"

// Event types
const (
	EventTypeEntryAppended  = "entry.appended"
	EventTypeContextCreated = "context.created"
	EventTypeMembersAdded   = "context.members_added"
)

// Aggregate types
const (
	AggregateTypeContext = "context"
	AggregateTypeEntry   = "entry"
)

// Event is a notification emitted after a successful state change.
type Event struct {
	CreatedAt     time.Time
	Payload       map[string]any
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
}

// EntryAppendedEvent payload
type EntryAppendedEvent struct {
	EntryID     string `json:"entry_id"`
	ContextID   string `json:"context_id"`
	ContextType string `json:"context_type"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	Seq         int64  `json:"seq"`
}

// ContextCreatedEvent payload
type ContextCreatedEvent struct {
	ContextID   string   `json:"context_id"`
	ContextType string   `json:"context_type"`
	Name        string   `json:"name"`
	MemberIDs   []string `json:"member_ids"`
}

// NewEntryAppendedEvent builds the event for an appended entry.
func NewEntryAppendedEvent(id string, e *Entry, c *LedgerContext) *Event {
	return &Event{
		ID:            id,
		AggregateID:   c.ID,
		AggregateType: AggregateTypeContext,
		EventType:     EventTypeEntryAppended,
		CreatedAt:     e.CreatedAt,
		Payload: map[string]any{
			"entry_id":     e.ID,
			"context_id":   c.ID,
			"context_type": string(c.Type),
			"kind":         string(e.Kind),
			"date":         e.Date.String(),
			"currency":     c.Currency,
			"amount_minor": int64(e.Amount),
			"seq":          e.Seq,
		},
	}
}

// NewContextEvent builds a context lifecycle event.
func NewContextEvent(id, eventType string, c *LedgerContext, at time.Time) *Event {
	return &Event{
		ID:            id,
		AggregateID:   c.ID,
		AggregateType: AggregateTypeContext,
		EventType:     eventType,
		CreatedAt:     at,
		Payload: map[string]any{
			"context_id":   c.ID,
			"context_type": string(c.Type),
			"name":         c.Name,
			"member_ids":   c.MemberIDs(),
		},
	}
}
