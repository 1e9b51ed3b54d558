package services

import (
	"sort"

	"settleup-backend/models"

	"github.com/shopspring/decimal"
)

type party struct {
	userID    string
	remaining decimal.Decimal
}

// OptimizeSettlements reduces net balances to payment instructions from
// debtors to creditors. Balances within epsilon of zero are ignored.
// The result has at most creditors+debtors-1 entries and is ordered by
// amount descending.
func OptimizeSettlements(balances []models.Balance, epsilon decimal.Decimal) []models.Transfer {
	var creditors, debtors []party
	for _, b := range balances {
		switch {
		case b.Balance.GreaterThan(epsilon):
			creditors = append(creditors, party{userID: b.UserID, remaining: b.Balance})
		case b.Balance.LessThan(epsilon.Neg()):
			debtors = append(debtors, party{userID: b.UserID, remaining: b.Balance.Neg()})
		}
	}

	sortByMagnitude(creditors)
	sortByMagnitude(debtors)

	transfers := make([]models.Transfer, 0, len(creditors)+len(debtors))
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := decimal.Min(creditors[i].remaining, debtors[j].remaining)
		rounded := Round2(amount)
		if rounded.GreaterThan(decimal.Zero) {
			transfers = append(transfers, models.Transfer{
				FromUserID: debtors[j].userID,
				ToUserID:   creditors[i].userID,
				Amount:     rounded,
			})
		}

		creditors[i].remaining = creditors[i].remaining.Sub(amount)
		debtors[j].remaining = debtors[j].remaining.Sub(amount)

		if creditors[i].remaining.LessThanOrEqual(epsilon) {
			i++
		}
		if debtors[j].remaining.LessThanOrEqual(epsilon) {
			j++
		}
	}

	sort.SliceStable(transfers, func(a, b int) bool {
		return transfers[a].Amount.GreaterThan(transfers[b].Amount)
	})
	return transfers
}

// sortByMagnitude orders largest first, breaking ties by user id so equal
// balance sets always produce the same output.
func sortByMagnitude(parties []party) {
	sort.Slice(parties, func(a, b int) bool {
		if c := parties[a].remaining.Cmp(parties[b].remaining); c != 0 {
			return c > 0
		}
		return parties[a].userID < parties[b].userID
	})
}
