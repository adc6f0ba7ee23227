package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/subscriber/pkg/account"
	"gorm.io/gorm"
)

// Service is the subscription registry. Mint and Retire are reserved for the
// authority principal; everything else is open.
type Service interface {
	Authority() account.Address
	Mint(ctx context.Context, caller, holder account.Address, expiresAt time.Time) (uint64, error)
	Retire(ctx context.Context, caller account.Address, id uint64) error
	Transfer(ctx context.Context, caller, to account.Address, id uint64) error

	Get(ctx context.Context, id uint64) (*Subscription, error)
	ExpirationOf(ctx context.Context, id uint64) (time.Time, error)
	HolderOf(ctx context.Context, id uint64) (account.Address, error)
	IsActive(ctx context.Context, id uint64) (bool, error)
	BalanceOf(ctx context.Context, holder account.Address) (int64, error)
	ListByHolder(ctx context.Context, holder account.Address) ([]Subscription, error)

	WithTx(tx *gorm.DB) Service
}

type Repository interface {
	NextID(ctx context.Context, db *gorm.DB) (uint64, error)
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id uint64) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id uint64) (*Subscription, error)
	UpdateHolder(ctx context.Context, db *gorm.DB, id uint64, holder account.Address) error
	Delete(ctx context.Context, db *gorm.DB, id uint64) error
	CountByHolder(ctx context.Context, db *gorm.DB, holder account.Address) (int64, error)
	ListByHolder(ctx context.Context, db *gorm.DB, holder account.Address) ([]Subscription, error)
}

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("subscription_not_found")
	ErrInvalidExpiration = errors.New("invalid_expiration")
)
