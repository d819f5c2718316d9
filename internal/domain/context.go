package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContextType selects the aggregation semantics of a ledger partition.
type ContextType string

const (
	// ContextTypeFriend is a bilateral ledger between exactly two users.
	ContextTypeFriend ContextType = "friend"
	// ContextTypeGroup is a pooled ledger over a roster of members.
	ContextTypeGroup ContextType = "group"
)

// IsValid reports whether t is a known context type.
func (t ContextType) IsValid() bool {
	return t == ContextTypeFriend || t == ContextTypeGroup
}

// Member is a roster entry of a context.
type Member struct {
	JoinedAt time.Time
	UserID   string
	Name     string
}

// LedgerContext is a friend pair or a group that owns an append-only entry log.
type LedgerContext struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Type      ContextType
	Name      string
	Currency  string
	Members   []Member
	Version   int64 // number of entries appended so far
}

// FriendKey is the order-independent key of a friend pair.
func FriendKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// HasMember reports whether userID is on the roster.
func (c *LedgerContext) HasMember(userID string) bool {
	_, ok := c.Member(userID)
	return ok
}

// Member looks up a roster member.
func (c *LedgerContext) Member(userID string) (Member, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// MemberIDs returns roster user IDs in roster order.
func (c *LedgerContext) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.UserID
	}
	return ids
}

// Counterpart returns the other member of a friend context.
func (c *LedgerContext) Counterpart(meID string) (Member, bool) {
	if c.Type != ContextTypeFriend || !c.HasMember(meID) {
		return Member{}, false
	}
	for _, m := range c.Members {
		if m.UserID != meID {
			return m, true
		}
	}
	return Member{}, false
}

// Validate checks the roster shape for the context type.
func (c *LedgerContext) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: unknown context type %q", ErrValidation, c.Type)
	}

	if err := ValidateCurrency(c.Currency); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if strings.TrimSpace(m.UserID) == "" {
			return fmt.Errorf("%w: member without user id", ErrInvalidRoster)
		}
		if seen[m.UserID] {
			return fmt.Errorf("%w: %s", ErrMemberAlreadyInRoster, m.UserID)
		}
		seen[m.UserID] = true
	}

	switch c.Type {
	case ContextTypeFriend:
		if len(c.Members) != 2 {
			return fmt.Errorf("%w: friend context needs exactly two members, got %d", ErrInvalidRoster, len(c.Members))
		}
	case ContextTypeGroup:
		if err := ValidateContextName(c.Name); err != nil {
			return err
		}
		if len(c.Members) == 0 {
			return fmt.Errorf("%w: group needs at least one member", ErrInvalidRoster)
		}
	}

	return nil
}

// CheckRoster verifies that every user referenced by the entry is a member.
func (c *LedgerContext) CheckRoster(e *Entry) error {
	for _, p := range e.Participants {
		if !c.HasMember(p.UserID) {
			return fmt.Errorf("%w: %s is not a member of %s", ErrUnknownParticipant, p.UserID, c.ID)
		}
	}

	for _, id := range []string{e.PayerID, e.AuthorID} {
		if id != "" && !c.HasMember(id) {
			return fmt.Errorf("%w: %s is not a member of %s", ErrUnknownParticipant, id, c.ID)
		}
	}

	return nil
}
