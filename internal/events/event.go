package events

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subscriber/pkg/db/pagination"
	"gorm.io/datatypes"
)

const (
	EventLedgerTransferred       = "ledger.transferred"
	EventSubscriptionCreated     = "subscription.created"
	EventSubscriptionTransferred = "subscription.transferred"
	EventFeedSet                 = "settings.feed_set"
	EventPaymentAmountSet        = "settings.payment_amount_set"
	EventSubscriptionDurationSet = "settings.subscription_duration_set"
	EventOwnershipTransferred    = "settings.ownership_transferred"
	EventPaymentWithdrawn        = "payment.withdrawn"
)

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)

// Event is a notification about to be published.
type Event struct {
	Type    string
	Payload map[string]any
}

// Record is a stored notification.
type Record struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Type      string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (Record) TableName() string { return "events" }

type ListRequest struct {
	Type string
	pagination.Pagination
}

type ListResponse struct {
	pagination.PageInfo
	Events []Record `json:"events"`
}
