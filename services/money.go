package services

import (
	"github.com/shopspring/decimal"
)

var (
	centsFactor = decimal.NewFromInt(100)
	half        = decimal.New(5, -1)
)

// Round2 rounds half up to cents: floor(x*100 + 0.5) / 100.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Mul(centsFactor).Add(half).Floor().Div(centsFactor)
}

// HasAtMostCents reports whether d carries no more than two decimals.
func HasAtMostCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountDecimalPlaces))
}

// SplitEqually divides total into n shares that differ by at most one cent
// and sum exactly to total. Leftover cents go to the last shares.
func SplitEqually(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	cents := total.Mul(centsFactor).Round(0).IntPart()
	base := cents / int64(n)
	remainder := cents % int64(n)

	shares := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		share := base
		if int64(n-i) <= remainder {
			share++
		}
		shares[i] = decimal.New(share, -2)
	}
	return shares
}

// SplitByPercentages converts percentages into cent amounts. The last share
// absorbs the rounding residue so the shares sum exactly to total.
func SplitByPercentages(total decimal.Decimal, percents []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(percents))
	allocated := decimal.Zero
	for i, p := range percents {
		if i == len(percents)-1 {
			shares[i] = Round2(total.Sub(allocated))
			break
		}
		shares[i] = Round2(total.Mul(p).Div(HundredPercent))
		allocated = allocated.Add(shares[i])
	}
	return shares
}

func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// WithinTolerance reports whether a and b differ by at most AmountTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}
