package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MaxDecimals bounds the precision a feed may report.
const MaxDecimals = 36

// Rate is a reference-to-settlement exchange rate scaled by 10^Decimals.
type Rate struct {
	Answer    decimal.Decimal
	Decimals  int32
	UpdatedAt time.Time
}

// Feed reads the latest rate from one price source.
type Feed interface {
	Kind() string
	LatestRate(ctx context.Context) (Rate, error)
}

// FeedConfig carries a catalog entry to the adapter that builds the feed.
type FeedConfig struct {
	Ref       string
	Kind      string
	Symbol    string
	Answer    string
	Decimals  int32
	UpdatedAt time.Time
}

// RateSource reads a usable rate for a catalog reference.
type RateSource interface {
	LatestRate(ctx context.Context, ref string) (Rate, error)
}

type AdapterFactory interface {
	Kind() string
	NewFeed(cfg FeedConfig) (Feed, error)
}

var (
	ErrFeedNotFound      = errors.New("feed_not_found")
	ErrKindNotFound      = errors.New("feed_kind_not_found")
	ErrInvalidFeedConfig = errors.New("invalid_feed_config")
	ErrOracleUnavailable = errors.New("oracle_unavailable")
)
