package dto

import (
	"time"

	"github.com/iho/splitledger/internal/balance"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// Money is an amount in minor units plus its rounded display form.
type Money struct {
	Minor   int64  `json:"minor"`
	Display string `json:"display"`
}

// MoneyOf renders a in currency.
func MoneyOf(a domain.Amount, currency string) Money {
	return Money{Minor: int64(a), Display: a.Format(currency)}
}

// MemberResponse is a roster row.
type MemberResponse struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// ContextResponse represents a friend pair or group.
type ContextResponse struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Name      string           `json:"name,omitempty"`
	Currency  string           `json:"currency"`
	Version   int64            `json:"version"`
	Members   []MemberResponse `json:"members"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Created   *bool            `json:"created,omitempty"`
}

// ContextFromDomain converts a domain context to response.
func ContextFromDomain(c *domain.LedgerContext) *ContextResponse {
	return &ContextResponse{
		ID:        c.ID,
		Type:      string(c.Type),
		Name:      c.Name,
		Currency:  c.Currency,
		Version:   c.Version,
		Members:   MembersFromDomain(c.Members),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// MembersFromDomain converts a roster.
func MembersFromDomain(members []domain.Member) []MemberResponse {
	out := make([]MemberResponse, len(members))
	for i, m := range members {
		out[i] = MemberResponse{UserID: m.UserID, Name: m.Name, JoinedAt: m.JoinedAt}
	}
	return out
}

// ListContextsResponse wraps a context list.
type ListContextsResponse struct {
	Contexts []*ContextResponse `json:"contexts"`
	Total    int64              `json:"total"`
}

// ContextsFromDomain converts a context list.
func ContextsFromDomain(contexts []*domain.LedgerContext) []*ContextResponse {
	out := make([]*ContextResponse, len(contexts))
	for i, c := range contexts {
		out[i] = ContextFromDomain(c)
	}
	return out
}

// ParticipantResponse is one participant row of an entry.
type ParticipantResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Paid   Money  `json:"paid"`
	Share  Money  `json:"share"`
}

// AdjustmentLineResponse is one adjustment row.
type AdjustmentLineResponse struct {
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name,omitempty"`
	Direction       string `json:"direction"`
	Value           Money  `json:"value"`
}

// EntryResponse represents an entry in API responses. The My* fields are
// filled when the entry is rendered for a specific user.
type EntryResponse struct {
	ID           string                   `json:"id"`
	ContextID    string                   `json:"context_id"`
	ContextType  string                   `json:"context_type"`
	Seq          int64                    `json:"seq"`
	Kind         string                   `json:"kind"`
	Date         domain.Date              `json:"date"`
	Title        string                   `json:"title,omitempty"`
	Note         string                   `json:"note,omitempty"`
	Category     string                   `json:"category,omitempty"`
	PayerID      string                   `json:"payer_id,omitempty"`
	AuthorID     string                   `json:"author_id,omitempty"`
	Amount       Money                    `json:"amount"`
	Participants []ParticipantResponse    `json:"participants"`
	Adjustments  []AdjustmentLineResponse `json:"adjustments,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`

	MyPaid  *Money `json:"my_paid,omitempty"`
	MyShare *Money `json:"my_share,omitempty"`
	MyDelta *Money `json:"my_delta,omitempty"`
}

// EntryFromDomain converts a domain entry to response.
func EntryFromDomain(e *domain.Entry, currency string) *EntryResponse {
	resp := &EntryResponse{
		ID:           e.ID,
		ContextID:    e.ContextID,
		ContextType:  string(e.ContextType),
		Seq:          e.Seq,
		Kind:         string(e.Kind),
		Date:         e.Date,
		Title:        e.Title,
		Note:         e.Note,
		Category:     e.Category,
		PayerID:      e.PayerID,
		AuthorID:     e.AuthorID,
		Amount:       MoneyOf(e.Amount, currency),
		Participants: make([]ParticipantResponse, len(e.Participants)),
		CreatedAt:    e.CreatedAt,
	}

	for i, p := range e.Participants {
		resp.Participants[i] = ParticipantResponse{
			UserID: p.UserID,
			Name:   p.Name,
			Paid:   MoneyOf(p.Paid, currency),
			Share:  MoneyOf(p.Share, currency),
		}
	}

	for _, l := range e.Adjustments {
		resp.Adjustments = append(resp.Adjustments, AdjustmentLineResponse{
			CounterpartID:   l.CounterpartID,
			CounterpartName: l.CounterpartName,
			Direction:       string(l.Direction),
			Value:           MoneyOf(l.Value, currency),
		})
	}

	return resp
}

// EntryViewFromDomain renders an entry for meID.
func EntryViewFromDomain(e *domain.Entry, meID, currency string) *EntryResponse {
	resp := EntryFromDomain(e, currency)
	if v, err := balance.ViewFor(e, meID); err == nil && v.Involved {
		paid, share, delta := MoneyOf(v.Paid, currency), MoneyOf(v.Share, currency), MoneyOf(v.Delta, currency)
		resp.MyPaid, resp.MyShare, resp.MyDelta = &paid, &share, &delta
	}
	return resp
}

// EntriesFromDomain converts a list of entries for meID.
func EntriesFromDomain(entries []*domain.Entry, meID, currency string) []*EntryResponse {
	out := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = EntryViewFromDomain(e, meID, currency)
	}
	return out
}

// ListEntriesResponse wraps an entry list.
type ListEntriesResponse struct {
	Entries []*EntryResponse `json:"entries"`
	Total   int64            `json:"total"`
}

// SectionResponse is the entries of one date.
type SectionResponse struct {
	Date    domain.Date      `json:"date"`
	Entries []*EntryResponse `json:"entries"`
}

// SectionsFromDomain converts date sections for meID.
func SectionsFromDomain(sections []balance.Section, meID, currency string) []SectionResponse {
	out := make([]SectionResponse, len(sections))
	for i, s := range sections {
		out[i] = SectionResponse{Date: s.Date, Entries: EntriesFromDomain(s.Entries, meID, currency)}
	}
	return out
}

// BalanceResponse is the caller's net in one context.
type BalanceResponse struct {
	ContextID   string          `json:"context_id"`
	ContextType string          `json:"context_type"`
	Name        string          `json:"name,omitempty"`
	Currency    string          `json:"currency"`
	Version     int64           `json:"version"`
	Net         Money           `json:"net"`
	Counterpart *MemberResponse `json:"counterpart,omitempty"`
}

// BalanceFromDomain converts a context balance.
func BalanceFromDomain(cb *usecase.ContextBalance) *BalanceResponse {
	lc := cb.Context
	resp := &BalanceResponse{
		ContextID:   lc.ID,
		ContextType: string(lc.Type),
		Name:        lc.Name,
		Currency:    lc.Currency,
		Version:     lc.Version,
		Net:         MoneyOf(cb.Net, lc.Currency),
	}
	if cb.Counterpart != nil {
		resp.Counterpart = &MemberResponse{
			UserID:   cb.Counterpart.UserID,
			Name:     cb.Counterpart.Name,
			JoinedAt: cb.Counterpart.JoinedAt,
		}
	}
	return resp
}

// BalancesFromDomain converts a list of context balances.
func BalancesFromDomain(list []usecase.ContextBalance) []*BalanceResponse {
	out := make([]*BalanceResponse, len(list))
	for i := range list {
		out[i] = BalanceFromDomain(&list[i])
	}
	return out
}

// MemberBalanceResponse is one breakdown row.
type MemberBalanceResponse struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name,omitempty"`
	TotalPaid  Money  `json:"total_paid"`
	TotalShare Money  `json:"total_share"`
	Net        Money  `json:"net"`
}

// BreakdownResponse lists per-member totals.
type BreakdownResponse struct {
	ContextID string                  `json:"context_id"`
	Members   []MemberBalanceResponse `json:"members"`
}

// BreakdownFromDomain converts breakdown rows.
func BreakdownFromDomain(contextID, currency string, rows []balance.MemberBalance) *BreakdownResponse {
	resp := &BreakdownResponse{ContextID: contextID, Members: make([]MemberBalanceResponse, len(rows))}
	for i, r := range rows {
		resp.Members[i] = MemberBalanceResponse{
			UserID:     r.UserID,
			Name:       r.Name,
			TotalPaid:  MoneyOf(r.TotalPaid, currency),
			TotalShare: MoneyOf(r.TotalShare, currency),
			Net:        MoneyOf(r.Net, currency),
		}
	}
	return resp
}

// CategoryTotalResponse is the spend in one category.
type CategoryTotalResponse struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
	Count    int    `json:"count"`
}

// SummaryResponse is the group info view.
type SummaryResponse struct {
	ContextID    string                  `json:"context_id"`
	Name         string                  `json:"name,omitempty"`
	MemberCount  int                     `json:"member_count"`
	EntryCount   int                     `json:"entry_count"`
	ExpenseCount int                     `json:"expense_count"`
	TotalSpent   Money                   `json:"total_spent"`
	Categories   []CategoryTotalResponse `json:"categories"`
}

// SummaryFromDomain converts a group summary.
func SummaryFromDomain(s *usecase.GroupSummary) *SummaryResponse {
	currency := s.Context.Currency
	resp := &SummaryResponse{
		ContextID:    s.Context.ID,
		Name:         s.Context.Name,
		MemberCount:  s.MemberCount,
		EntryCount:   s.EntryCount,
		ExpenseCount: s.ExpenseCount,
		TotalSpent:   MoneyOf(s.TotalSpent, currency),
		Categories:   make([]CategoryTotalResponse, len(s.Categories)),
	}
	for i, c := range s.Categories {
		resp.Categories[i] = CategoryTotalResponse{Category: c.Category, Total: MoneyOf(c.Total, currency), Count: c.Count}
	}
	return resp
}

// TotalsResponse holds the dashboard figures of one currency.
type TotalsResponse struct {
	Currency  string `json:"currency"`
	Owes      Money  `json:"owes"`
	OwedToYou Money  `json:"owed_to_you"`
	NetGlobal Money  `json:"net_global"`
}

// DashboardResponse is the caller's home screen.
type DashboardResponse struct {
	Totals  []TotalsResponse   `json:"totals"`
	Friends []*BalanceResponse `json:"friends"`
	Groups  []*BalanceResponse `json:"groups"`
}

// For returns the totals row of currency, if any context uses it.
func (d *DashboardResponse) For(currency string) (TotalsResponse, bool) {
	for _, t := range d.Totals {
		if t.Currency == currency {
			return t, true
		}
	}
	return TotalsResponse{}, false
}

// DashboardFromDomain converts a dashboard.
func DashboardFromDomain(d *usecase.Dashboard) *DashboardResponse {
	resp := &DashboardResponse{
		Totals:  make([]TotalsResponse, len(d.Totals)),
		Friends: BalancesFromDomain(d.Friends),
		Groups:  BalancesFromDomain(d.Groups),
	}
	for i, t := range d.Totals {
		resp.Totals[i] = TotalsResponse{
			Currency:  t.Currency,
			Owes:      MoneyOf(t.Owes, t.Currency),
			OwedToYou: MoneyOf(t.OwedToYou, t.Currency),
			NetGlobal: MoneyOf(t.NetGlobal, t.Currency),
		}
	}
	return resp
}

// ConsistencyResponse is the outcome of a context audit.
type ConsistencyResponse struct {
	ContextID  string   `json:"context_id"`
	Consistent bool     `json:"consistent"`
	EntryCount int      `json:"entry_count"`
	Version    int64    `json:"version"`
	NetSum     int64    `json:"net_sum_minor"`
	Problems   []string `json:"problems,omitempty"`
}

// ConsistencyFromDomain converts a consistency report.
func ConsistencyFromDomain(r *usecase.ConsistencyReport) *ConsistencyResponse {
	return &ConsistencyResponse{
		ContextID:  r.ContextID,
		Consistent: r.Consistent,
		EntryCount: r.EntryCount,
		Version:    r.Version,
		NetSum:     int64(r.NetSum),
		Problems:   r.Problems,
	}
}

// SessionResponse describes the authenticated caller.
type SessionResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
