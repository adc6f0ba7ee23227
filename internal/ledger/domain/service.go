package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/pkg/account"
	"gorm.io/gorm"
)

// Receiver is notified when it receives funds through TransferAndCall.
// The callback runs on the transfer's transaction; returning an error
// rolls back the transfer together with everything the receiver wrote.
type Receiver interface {
	OnTokenTransfer(ctx context.Context, tx *gorm.DB, from account.Address, amount decimal.Decimal, data []byte) error
}

type Service interface {
	Issue(ctx context.Context, to account.Address, amount decimal.Decimal) error
	Transfer(ctx context.Context, from, to account.Address, amount decimal.Decimal) error
	TransferAndCall(ctx context.Context, from, to account.Address, amount decimal.Decimal, data []byte) error
	BalanceOf(ctx context.Context, acct account.Address) (decimal.Decimal, error)
	RegisterReceiver(addr account.Address, receiver Receiver)
	WithTx(tx *gorm.DB) Service
}

type Repository interface {
	FindBalance(ctx context.Context, db *gorm.DB, acct account.Address) (decimal.Decimal, error)
	FindBalanceForUpdate(ctx context.Context, db *gorm.DB, acct account.Address) (decimal.Decimal, error)
	UpsertBalance(ctx context.Context, db *gorm.DB, balance *Balance) error
	InsertTransfer(ctx context.Context, db *gorm.DB, transfer *Transfer) error
	CountTransfers(ctx context.Context, db *gorm.DB) (int64, error)
}

var (
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)
