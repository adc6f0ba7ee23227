package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/config"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errInvalidSeedAmount   = errors.New("invalid initial payment amount")
	errInvalidSeedDuration = errors.New("invalid initial subscription duration")
	errInvalidGenesis      = errors.New("invalid genesis supply")
)

// SeedSettings inserts the handler configuration row unless it already exists.
func SeedSettings(ctx context.Context, conn *gorm.DB, cfg config.Config, now time.Time) error {
	owner, err := account.Parse(cfg.Handler.OwnerAddress)
	if err != nil {
		return fmt.Errorf("owner address: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(cfg.Handler.InitialPaymentAmount))
	if err != nil || amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return errInvalidSeedAmount
	}
	if cfg.Handler.InitialSubscriptionDuration <= 0 {
		return errInvalidSeedDuration
	}

	row := settingsdomain.Settings{
		ID:                   settingsdomain.SingletonID,
		Owner:                owner,
		Feed:                 strings.ToLower(strings.TrimSpace(cfg.Handler.InitialFeed)),
		PaymentAmount:        amount,
		SubscriptionDuration: cfg.Handler.InitialSubscriptionDuration,
		UpdatedAt:            now.UTC(),
	}
	return conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// SeedGenesis issues the configured supply to the treasury on an empty ledger.
func SeedGenesis(ctx context.Context, conn *gorm.DB, cfg config.Config, repo ledgerdomain.Repository, ledger ledgerdomain.Service) error {
	supply, err := decimal.NewFromString(strings.TrimSpace(cfg.Settlement.GenesisSupply))
	if err != nil || supply.IsNegative() {
		return errInvalidGenesis
	}
	if supply.IsZero() {
		return nil
	}
	treasury, err := account.Parse(cfg.Settlement.TreasuryAddress)
	if err != nil {
		return fmt.Errorf("treasury address: %w", err)
	}

	count, err := repo.CountTransfers(ctx, conn)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return ledger.Issue(ctx, treasury, supply)
}
