package sizing

import (
	"github.com/shopspring/decimal"

	apperrors "signal-scanner/pkg/errors"
)

// DefaultMinBalance is the quote balance at or below which no order is sized.
const DefaultMinBalance = 10.0

// QuantityPrecision is the number of decimal places a quantity is truncated to.
const QuantityPrecision = 8

// Sizer converts a quote balance and risk percentage into an order quantity.
type Sizer struct {
	minBalance decimal.Decimal
}

func NewSizer(minBalance float64) *Sizer {
	if minBalance < 0 {
		minBalance = DefaultMinBalance
	}
	return &Sizer{minBalance: decimal.NewFromFloat(minBalance)}
}

// Result is a sized order. Notional is the quote amount committed.
type Result struct {
	Quantity decimal.Decimal
	Notional decimal.Decimal
}

func (r Result) QuantityFloat() float64 {
	f, _ := r.Quantity.Float64()
	return f
}

// Size returns quantity = balance * riskPct / 100 / price truncated to
// QuantityPrecision places. A balance at or below the floor, or a quantity
// that truncates to zero, yields an ErrCodeSizingGuard error.
func (s *Sizer) Size(balance, riskPct, price float64) (Result, error) {
	if riskPct <= 0 || riskPct > 100 {
		return Result{}, apperrors.Newf(apperrors.ErrCodeInvalidRisk,
			"risk percentage %.4f outside (0, 100]", riskPct)
	}
	if price <= 0 {
		return Result{}, apperrors.Newf(apperrors.ErrCodeInvalidPrice,
			"price must be positive, got %v", price)
	}

	bal := decimal.NewFromFloat(balance)
	if bal.LessThanOrEqual(s.minBalance) {
		return Result{}, apperrors.Newf(apperrors.ErrCodeSizingGuard,
			"balance %s at or below minimum %s", bal.String(), s.minBalance.String())
	}

	notional := bal.Mul(decimal.NewFromFloat(riskPct)).Div(decimal.NewFromInt(100))
	qty := notional.Div(decimal.NewFromFloat(price)).Truncate(QuantityPrecision)
	if !qty.IsPositive() {
		return Result{}, apperrors.Newf(apperrors.ErrCodeSizingGuard,
			"quantity rounds to zero at price %v", price)
	}
	return Result{Quantity: qty, Notional: notional}, nil
}
