package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newOutbox(t *testing.T) (*events.Outbox, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&events.Record{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	return events.NewOutbox(events.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk}), db
}

func publish(t *testing.T, outbox *events.Outbox, db *gorm.DB, eventType string, payload map[string]any) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return outbox.PublishTx(context.Background(), tx, events.Event{Type: eventType, Payload: payload})
	})
	require.NoError(t, err)
}

func TestPublishTxRejectsEmptyType(t *testing.T) {
	outbox, db := newOutbox(t)

	err := outbox.PublishTx(context.Background(), db, events.Event{Type: "  "})
	assert.ErrorIs(t, err, events.ErrInvalidEventType)
}

func TestPublishTxRollsBackWithTransaction(t *testing.T) {
	outbox, db := newOutbox(t)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := outbox.PublishTx(context.Background(), tx, events.Event{Type: events.EventFeedSet}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	resp, err := outbox.List(context.Background(), events.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Events)
	assert.False(t, resp.HasMore)
}

func TestListPagesInOrder(t *testing.T) {
	ctx := context.Background()
	outbox, db := newOutbox(t)

	for i := 0; i < 5; i++ {
		publish(t, outbox, db, events.EventSubscriptionCreated, map[string]any{"subscription_id": i + 1})
	}
	publish(t, outbox, db, events.EventPaymentWithdrawn, nil)

	req := events.ListRequest{Type: events.EventSubscriptionCreated}
	req.PageSize = 2

	var seen []float64
	for page := 0; page < 5; page++ {
		resp, err := outbox.List(ctx, req)
		require.NoError(t, err)
		for _, record := range resp.Events {
			assert.Equal(t, events.EventSubscriptionCreated, record.Type)
			var payload map[string]any
			require.NoError(t, json.Unmarshal(record.Payload, &payload))
			seen = append(seen, payload["subscription_id"].(float64))
		}
		if !resp.HasMore {
			assert.Empty(t, resp.NextPageToken)
			break
		}
		req.PageToken = resp.NextPageToken
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, seen)

	all, err := outbox.List(ctx, events.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Events, 6)
}

func TestListRejectsBadToken(t *testing.T) {
	outbox, _ := newOutbox(t)

	req := events.ListRequest{}
	req.PageToken = "not-a-cursor"
	_, err := outbox.List(context.Background(), req)
	assert.ErrorIs(t, err, events.ErrInvalidPageToken)
}

func TestListRejectsTokenFromOtherType(t *testing.T) {
	ctx := context.Background()
	outbox, db := newOutbox(t)
	for i := 0; i < 3; i++ {
		publish(t, outbox, db, events.EventSubscriptionCreated, map[string]any{"subscription_id": i + 1})
	}

	req := events.ListRequest{Type: events.EventSubscriptionCreated}
	req.PageSize = 1
	resp, err := outbox.List(ctx, req)
	require.NoError(t, err)
	require.True(t, resp.HasMore)

	other := events.ListRequest{Type: events.EventLedgerTransferred}
	other.PageToken = resp.NextPageToken
	_, err = outbox.List(ctx, other)
	assert.ErrorIs(t, err, events.ErrInvalidPageToken)
}
