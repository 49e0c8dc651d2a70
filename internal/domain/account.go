package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits stored for balances and amounts.
const MoneyScale int32 = 2

type Account struct {
	ID           string
	Balance      decimal.Decimal
	RewardPoints int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
