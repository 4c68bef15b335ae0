package service

import (
	"github.com/pazarlabs/pazar/internal/commission/domain"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// CalculateLineFee computes the commission for one order line. The percentage
// portion is rounded before the fixed fee is added and the sum is rounded
// again; downstream ledgers reconcile against exactly this two-step rounding.
func CalculateLineFee(unitPrice decimal.Decimal, quantity int64, ratePercentage, fixedFee decimal.Decimal, precision int32, mode domain.RoundingMode) (decimal.Decimal, error) {
	base := unitPrice.Mul(decimal.NewFromInt(quantity))
	percentageFee, err := round(base.Mul(ratePercentage).Div(oneHundred), precision, mode)
	if err != nil {
		return decimal.Zero, err
	}
	return round(percentageFee.Add(fixedFee), precision, mode)
}

func round(value decimal.Decimal, precision int32, mode domain.RoundingMode) (decimal.Decimal, error) {
	switch mode {
	case domain.RoundHalfUp, "":
		return value.Round(precision), nil
	case domain.RoundUp:
		return value.RoundUp(precision), nil
	case domain.RoundDown:
		return value.RoundDown(precision), nil
	default:
		return decimal.Zero, domain.ErrInvalidRounding
	}
}
