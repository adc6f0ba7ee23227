package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/oracle/domain"
)

const Kind = "binance"

// Factory builds spot ticker feeds. Only public endpoints are used, so no
// API credentials are configured.
type Factory struct {
	baseURL string
}

func NewFactory(baseURL string) *Factory {
	return &Factory{baseURL: strings.TrimSpace(baseURL)}
}

func (f *Factory) Kind() string {
	return Kind
}

func (f *Factory) NewFeed(cfg domain.FeedConfig) (domain.Feed, error) {
	symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if symbol == "" {
		return nil, domain.ErrInvalidFeedConfig
	}

	client := gobinance.NewClient("", "")
	if f.baseURL != "" {
		client.BaseURL = f.baseURL
	}
	return &Feed{client: client, symbol: symbol, decimals: cfg.Decimals}, nil
}

type Feed struct {
	client   *gobinance.Client
	symbol   string
	decimals int32
}

func (f *Feed) Kind() string {
	return Kind
}

// LatestRate reads the rolling 24h ticker: the last traded price, scaled to the
// feed's decimals with extra precision truncated, dated by the ticker's close time.
func (f *Feed) LatestRate(ctx context.Context) (domain.Rate, error) {
	stats, err := f.client.NewListPriceChangeStatsService().Symbol(f.symbol).Do(ctx)
	if err != nil {
		return domain.Rate{}, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	for _, s := range stats {
		if s == nil || !strings.EqualFold(s.Symbol, f.symbol) {
			continue
		}
		price, err := decimal.NewFromString(s.LastPrice)
		if err != nil {
			return domain.Rate{}, fmt.Errorf("%w: parse price: %v", domain.ErrOracleUnavailable, err)
		}
		var updatedAt time.Time
		if s.CloseTime > 0 {
			updatedAt = time.UnixMilli(s.CloseTime).UTC()
		}
		return domain.Rate{
			Answer:    price.Shift(f.decimals).Truncate(0),
			Decimals:  f.decimals,
			UpdatedAt: updatedAt,
		}, nil
	}
	return domain.Rate{}, fmt.Errorf("%w: no price for %s", domain.ErrOracleUnavailable, f.symbol)
}
