package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/pkg/account"
)

// Balance is the settlement currency held by one account, in smallest units.
type Balance struct {
	Account   account.Address `gorm:"primaryKey;type:varchar(128)"`
	Amount    decimal.Decimal `gorm:"column:balance;type:varchar(80);not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "ledger_balances" }

// Transfer is an immutable journal line. Issuance comes from the zero address.
type Transfer struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	From       account.Address `gorm:"column:from_account;type:varchar(128);not null;index"`
	To         account.Address `gorm:"column:to_account;type:varchar(128);not null;index"`
	Amount     decimal.Decimal `gorm:"type:varchar(80);not null"`
	Data       []byte
	OccurredAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Transfer) TableName() string { return "ledger_transfers" }
