package domain

import (
	"sort"

	"github.com/google/uuid"
)

// Summary is one user's position on a plan's expenses in one currency.
type Summary struct {
	Currency string `json:"currency"`
	// Paid is what the user laid out as payer.
	Paid int64 `json:"paid"`
	// Share is the user's own portion across all expenses.
	Share int64 `json:"share"`
	// Outstanding is what the user still owes other payers.
	Outstanding int64 `json:"outstanding"`
	// OwedToYou is what others still owe the user.
	OwedToYou int64 `json:"owedToYou"`
	// Balance is Paid minus Share.
	Balance int64 `json:"balance"`
}

// Summarize computes the user's position, one entry per currency.
func Summarize(expenses []*Expense, userID uuid.UUID) []Summary {
	by := map[string]*Summary{}
	for _, e := range expenses {
		s, ok := by[e.Currency()]
		if !ok {
			s = &Summary{Currency: e.Currency()}
			by[e.Currency()] = s
		}
		isPayer := e.PayerID() == userID
		if isPayer {
			s.Paid += e.TotalMinor()
		}
		for _, a := range e.Allocations() {
			switch {
			case a.UserID == userID:
				s.Share += a.AmountMinor
				if !a.Paid && !isPayer {
					s.Outstanding += a.AmountMinor
				}
			case isPayer && !a.Paid:
				s.OwedToYou += a.AmountMinor
			}
		}
	}

	out := make([]Summary, 0, len(by))
	for _, s := range by {
		s.Balance = s.Paid - s.Share
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
