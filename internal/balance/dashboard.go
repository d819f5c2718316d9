package balance

import "github.com/iho/splitledger/internal/domain"

// DashboardTotals are the headline figures across all of a user's contexts.
type DashboardTotals struct {
	Owes      domain.Amount // magnitude of negative nets
	OwedToYou domain.Amount // sum of positive nets
	NetGlobal domain.Amount
}

// ComputeDashboardTotals folds friend and group nets into dashboard totals.
// NetGlobal always equals the plain sum of every net.
func ComputeDashboardTotals(friendNets, groupNets []domain.Amount) DashboardTotals {
	var t DashboardTotals
	for _, nets := range [][]domain.Amount{friendNets, groupNets} {
		for _, n := range nets {
			if n > 0 {
				t.OwedToYou += n
			} else {
				t.Owes -= n
			}
		}
	}
	t.NetGlobal = t.OwedToYou - t.Owes
	return t
}
