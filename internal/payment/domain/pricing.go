package domain

import (
	"github.com/shopspring/decimal"
	oracledomain "github.com/smallbiznis/subscriber/internal/oracle/domain"
)

// ComputePrice converts a nominal amount, scaled to the rate's precision,
// into settlement units: nominal * 10^settlementDecimals / rate, truncated.
func ComputePrice(nominal decimal.Decimal, settlementDecimals int32, rate oracledomain.Rate) (decimal.Decimal, error) {
	if !rate.Answer.IsPositive() {
		return decimal.Zero, oracledomain.ErrOracleUnavailable
	}
	quotient, _ := nominal.Shift(settlementDecimals).QuoRem(rate.Answer, 0)
	return quotient, nil
}
