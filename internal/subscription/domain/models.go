package domain

import (
	"time"

	"github.com/smallbiznis/subscriber/pkg/account"
)

// Subscription is a time-bounded right held by one account.
// Renewal never mutates a row: the old record is deleted and a new one inserted.
type Subscription struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Holder    account.Address `gorm:"type:varchar(128);not null;index" json:"holder"`
	ExpiresAt time.Time       `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the record is still valid at now.
func (s Subscription) IsActive(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Sequence hands out record ids. last_id only moves forward, so retired ids are never reissued.
type Sequence struct {
	Name   string `gorm:"primaryKey;type:varchar(64)"`
	LastID uint64 `gorm:"not null"`
}

// TableName sets the database table name.
func (Sequence) TableName() string { return "subscription_sequences" }

const SequenceSubscriptions = "subscriptions"
