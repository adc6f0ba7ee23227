// Package static serves a fixed rate from the feed catalog. It stands in for
// a live aggregator in local environments and tests.
package static

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/oracle/domain"
)

const Kind = "static"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Kind() string {
	return Kind
}

func (f *Factory) NewFeed(cfg domain.FeedConfig) (domain.Feed, error) {
	answer, err := decimal.NewFromString(strings.TrimSpace(cfg.Answer))
	if err != nil {
		return nil, domain.ErrInvalidFeedConfig
	}
	return &Feed{answer: answer, decimals: cfg.Decimals, updatedAt: cfg.UpdatedAt}, nil
}

// Feed reports the catalog's updated_at as the rate time. An undated entry
// reports the zero time and is rejected whenever a maximum rate age is set.
type Feed struct {
	answer    decimal.Decimal
	decimals  int32
	updatedAt time.Time
}

func (f *Feed) Kind() string {
	return Kind
}

func (f *Feed) LatestRate(ctx context.Context) (domain.Rate, error) {
	return domain.Rate{
		Answer:    f.answer,
		Decimals:  f.decimals,
		UpdatedAt: f.updatedAt,
	}, nil
}
