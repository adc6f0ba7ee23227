package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/pkg/account"
)

// SingletonID is the primary key of the only settings row.
const SingletonID = 1

// Settings is the handler configuration. An empty Feed means the payment
// amount is already denominated in settlement units.
type Settings struct {
	ID                   int             `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Owner                account.Address `gorm:"type:varchar(128);not null" json:"owner"`
	Feed                 string          `gorm:"type:varchar(128);not null;default:''" json:"feed"`
	PaymentAmount        decimal.Decimal `gorm:"type:varchar(80);not null" json:"payment_amount"`
	SubscriptionDuration int64           `gorm:"not null" json:"subscription_duration"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Settings) TableName() string { return "handler_settings" }

// HasFeed reports whether payments are priced through an oracle.
func (s Settings) HasFeed() bool {
	return s.Feed != ""
}
