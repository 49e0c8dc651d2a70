package domain

import "github.com/shopspring/decimal"

// PointsDivisor is the amount of currency that earns one reward point on pay.
var PointsDivisor = decimal.NewFromInt(10000)

// MaxAmount is the largest value a NUMERIC(18, 2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return ErrInvalidPrecision
	}
	return nil
}

// PointsFor returns floor(amount / PointsDivisor).
func PointsFor(amount decimal.Decimal) int64 {
	if !amount.IsPositive() {
		return 0
	}
	return amount.Div(PointsDivisor).Floor().IntPart()
}
