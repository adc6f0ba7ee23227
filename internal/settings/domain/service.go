package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/pkg/account"
	"gorm.io/gorm"
)

// Service is the owner-gated handler configuration store.
type Service interface {
	Get(ctx context.Context) (*Settings, error)
	Owner(ctx context.Context) (account.Address, error)
	Feed(ctx context.Context) (string, error)
	PaymentAmount(ctx context.Context) (decimal.Decimal, error)
	SubscriptionDuration(ctx context.Context) (int64, error)

	SetFeed(ctx context.Context, caller account.Address, ref string) error
	SetPaymentAmount(ctx context.Context, caller account.Address, amount decimal.Decimal) error
	SetSubscriptionDuration(ctx context.Context, caller account.Address, seconds int64) error
	TransferOwnership(ctx context.Context, caller, newOwner account.Address) error

	// RequireOwner fails with ErrUnauthorized unless caller is the current owner.
	RequireOwner(ctx context.Context, caller account.Address) error

	WithTx(tx *gorm.DB) Service
}

type Repository interface {
	Get(ctx context.Context, db *gorm.DB) (*Settings, error)
	GetForUpdate(ctx context.Context, db *gorm.DB) (*Settings, error)
	Update(ctx context.Context, db *gorm.DB, settings *Settings) error
}

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidConfiguration = errors.New("invalid_configuration")
	ErrNotConfigured        = errors.New("settings_not_configured")
)
