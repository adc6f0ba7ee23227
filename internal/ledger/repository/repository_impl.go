package repository

import (
	"context"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
	"github.com/smallbiznis/subscriber/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) FindBalance(ctx context.Context, conn *gorm.DB, acct account.Address) (decimal.Decimal, error) {
	return r.findBalance(conn.WithContext(ctx), acct)
}

func (r *repo) FindBalanceForUpdate(ctx context.Context, conn *gorm.DB, acct account.Address) (decimal.Decimal, error) {
	return r.findBalance(db.ForUpdate(conn.WithContext(ctx)), acct)
}

func (r *repo) findBalance(conn *gorm.DB, acct account.Address) (decimal.Decimal, error) {
	var rows []ledgerdomain.Balance
	if err := conn.Where("account = ?", acct).Limit(1).Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Amount, nil
}

func (r *repo) UpsertBalance(ctx context.Context, conn *gorm.DB, balance *ledgerdomain.Balance) error {
	return conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(balance).Error
}

func (r *repo) InsertTransfer(ctx context.Context, conn *gorm.DB, transfer *ledgerdomain.Transfer) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO ledger_transfers (id, from_account, to_account, amount, data, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		transfer.ID,
		transfer.From,
		transfer.To,
		transfer.Amount,
		transfer.Data,
		transfer.OccurredAt,
	).Error
}

func (r *repo) CountTransfers(ctx context.Context, conn *gorm.DB) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&ledgerdomain.Transfer{}).Count(&count).Error
	return count, err
}
