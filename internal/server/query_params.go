package server

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/pkg/account"
)

func parseSubscriptionID(value string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, newValidationError("id", "invalid_id", "invalid subscription id")
	}
	return id, nil
}

func parseAddress(field, value string) (account.Address, error) {
	addr, err := account.Parse(value)
	if err != nil {
		return account.ZeroAddress, newValidationError(field, "invalid_"+field, "invalid address")
	}
	return addr, nil
}

// parseAmount accepts a non-negative integer count of the smallest unit.
func parseAmount(field, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, newValidationError(field, "invalid_"+field, "amount must be a non-negative integer")
	}
	return amount, nil
}

func parseHexData(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if trimmed == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, newValidationError("data", "invalid_data", "data must be hex encoded")
	}
	return data, nil
}
