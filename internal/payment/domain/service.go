package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
)

// Service is the payment handler. It receives settlement transfers through
// the ledger callback and turns them into subscription records.
type Service interface {
	ledgerdomain.Receiver

	Address() account.Address
	Price(ctx context.Context) (decimal.Decimal, error)
	Withdraw(ctx context.Context, caller account.Address, amount decimal.Decimal, recipient account.Address) error
}

var (
	ErrInsufficientPayment     = errors.New("insufficient_payment")
	ErrInactiveOrUnknownRecord = errors.New("inactive_or_unknown_record")
	ErrInvalidMetadata         = errors.New("invalid_metadata")
	ErrReentrantPayment        = errors.New("reentrant_payment")
)

const (
	OutcomeCreated             = "created"
	OutcomeRenewed             = "renewed"
	OutcomeInsufficientPayment = "insufficient_payment"
	OutcomeInactiveRecord      = "inactive_record"
	OutcomeOracleUnavailable   = "oracle_unavailable"
	OutcomeError               = "error"
)
