package services

import "github.com/shopspring/decimal"

var (
	BalanceThreshold = decimal.New(1, -2)
	AmountTolerance  = decimal.New(1, -2)
	HundredPercent   = decimal.NewFromInt(100)
)

const (
	AmountDecimalPlaces = 2
)

const (
	MaxDescriptionLength = 100
)

const (
	GeneralRateLimit = 500
)
