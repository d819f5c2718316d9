package balance

import (
	"sort"
	"strings"

	"github.com/iho/splitledger/internal/domain"
)

// Uncategorized labels expenses without a category.
const Uncategorized = "other"

// CategoryTotal is the spend in one category.
type CategoryTotal struct {
	Category string
	Total    domain.Amount
	Count    int
}

// GroupSummary describes spending in a context. Payments and adjustments move
// balances but are not spending, so only expenses are counted.
type GroupSummary struct {
	Categories   []CategoryTotal
	TotalSpent   domain.Amount
	ExpenseCount int
	EntryCount   int
}

// SummarizeGroup totals expenses by category, largest first.
func SummarizeGroup(entries []*domain.Entry) GroupSummary {
	var s GroupSummary
	byCategory := make(map[string]*CategoryTotal)

	for _, e := range entries {
		s.EntryCount++
		if e.Kind != domain.EntryKindExpense {
			continue
		}

		s.ExpenseCount++
		s.TotalSpent += e.Amount

		name := strings.ToLower(strings.TrimSpace(e.Category))
		if name == "" {
			name = Uncategorized
		}
		c, ok := byCategory[name]
		if !ok {
			c = &CategoryTotal{Category: name}
			byCategory[name] = c
		}
		c.Total += e.Amount
		c.Count++
	}

	s.Categories = make([]CategoryTotal, 0, len(byCategory))
	for _, c := range byCategory {
		s.Categories = append(s.Categories, *c)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].Total != s.Categories[j].Total {
			return s.Categories[i].Total > s.Categories[j].Total
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})

	return s
}
