package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/subscriber/internal/oracle/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestRateScalesTickerPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "LINKUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"LINKUSDT","lastPrice":"7.77777777777","closeTime":1767225600000}`))
	}))
	defer server.Close()

	feed, err := NewFactory(server.URL).NewFeed(domain.FeedConfig{Kind: Kind, Symbol: "linkusdt", Decimals: 8})
	require.NoError(t, err)

	rate, err := feed.LatestRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "777777777", rate.Answer.String())
	assert.Equal(t, int32(8), rate.Decimals)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), rate.UpdatedAt)
}

func TestLatestRateWithoutCloseTimeIsUndated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"LINKUSDT","lastPrice":"7.5"}`))
	}))
	defer server.Close()

	feed, err := NewFactory(server.URL).NewFeed(domain.FeedConfig{Kind: Kind, Symbol: "LINKUSDT", Decimals: 8})
	require.NoError(t, err)

	rate, err := feed.LatestRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "750000000", rate.Answer.String())
	assert.True(t, rate.UpdatedAt.IsZero())
}

func TestLatestRateWrapsTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":-1000,"msg":"down"}`))
	}))
	defer server.Close()

	feed, err := NewFactory(server.URL).NewFeed(domain.FeedConfig{Kind: Kind, Symbol: "LINKUSDT", Decimals: 8})
	require.NoError(t, err)

	_, err = feed.LatestRate(context.Background())
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
}

func TestNewFeedRequiresSymbol(t *testing.T) {
	_, err := NewFactory("").NewFeed(domain.FeedConfig{Kind: Kind})
	assert.ErrorIs(t, err, domain.ErrInvalidFeedConfig)
}
