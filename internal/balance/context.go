package balance

import (
	"fmt"
	"sort"

	"github.com/iho/splitledger/internal/domain"
)

// ComputeNet sums meID's delta over all entries. Entries meID is not part of
// contribute zero. For a friend context this is the bilateral balance with the
// other member; for a group it is the balance against the pooled group.
func ComputeNet(entries []*domain.Entry, meID string) (domain.Amount, error) {
	var net domain.Amount
	for _, e := range entries {
		d, err := Delta(e)
		if err != nil {
			return 0, err
		}
		net += d[meID]
	}
	return net, nil
}

// MemberBalance is one row of a group breakdown.
type MemberBalance struct {
	UserID     string
	Name       string
	TotalPaid  domain.Amount
	TotalShare domain.Amount
	Net        domain.Amount
}

// ComputeMemberBreakdown aggregates paid and share per roster member across
// all entries. Rows are ordered by Net descending, then by UserID.
func ComputeMemberBreakdown(entries []*domain.Entry, roster []domain.Member) ([]MemberBalance, error) {
	rows := make(map[string]*MemberBalance, len(roster))
	for _, m := range roster {
		rows[m.UserID] = &MemberBalance{UserID: m.UserID, Name: m.Name}
	}

	for _, e := range entries {
		if _, err := Delta(e); err != nil {
			return nil, err
		}
		for _, p := range e.Participants {
			row, ok := rows[p.UserID]
			if !ok {
				return nil, fmt.Errorf("%w: %s in entry %s", domain.ErrUnknownParticipant, p.UserID, e.ID)
			}
			row.TotalPaid += p.Paid
			row.TotalShare += p.Share
		}
	}

	out := make([]MemberBalance, 0, len(rows))
	for _, row := range rows {
		row.Net = row.TotalPaid - row.TotalShare
		out = append(out, *row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Net != out[j].Net {
			return out[i].Net > out[j].Net
		}
		return out[i].UserID < out[j].UserID
	})

	return out, nil
}

// Section is a run of entries sharing a calendar date.
type Section struct {
	Date    domain.Date
	Entries []*domain.Entry
}

// GroupByDate buckets entries by date, most recent section first. Entries keep
// their input order inside a section.
func GroupByDate(entries []*domain.Entry) []Section {
	index := make(map[string]int)
	var sections []Section

	for _, e := range entries {
		key := e.Date.String()
		i, ok := index[key]
		if !ok {
			i = len(sections)
			index[key] = i
			sections = append(sections, Section{Date: e.Date})
		}
		sections[i].Entries = append(sections[i].Entries, e)
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Date.After(sections[j].Date.Time)
	})

	return sections
}

// EntryView is an entry seen from one user's side.
type EntryView struct {
	Entry    *domain.Entry
	Paid     domain.Amount
	Share    domain.Amount
	Delta    domain.Amount
	Involved bool
}

// ViewFor returns meID's paid, share and delta for one entry.
func ViewFor(e *domain.Entry, meID string) (EntryView, error) {
	d, err := Delta(e)
	if err != nil {
		return EntryView{}, err
	}

	v := EntryView{Entry: e, Delta: d[meID]}
	if p, ok := e.Participant(meID); ok {
		v.Paid = p.Paid
		v.Share = p.Share
		v.Involved = true
	}
	return v, nil
}
