package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/events"
	"github.com/smallbiznis/subscriber/internal/migration"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"github.com/smallbiznis/subscriber/internal/subscription/repository"
	"github.com/smallbiznis/subscriber/internal/subscription/service"
	"github.com/smallbiznis/subscriber/pkg/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const handler account.Address = "handler"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newRegistry(t *testing.T, db *gorm.DB, clk clock.Clock) subscriptiondomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.NewService(service.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Config: config.Config{Handler: config.HandlerConfig{Address: handler.String()}},
		Clock:  clk,
		Repo:   repository.Provide(),
		Outbox: events.NewOutbox(events.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk}),
	})
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := newRegistry(t, setupTestDB(t), clk)
	expires := clk.Now().Add(time.Hour)

	first, err := registry.Mint(ctx, handler, "alice", expires)
	require.NoError(t, err)
	require.NoError(t, registry.Retire(ctx, handler, first))
	second, err := registry.Mint(ctx, handler, "bob", expires)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
}

func TestMintAndRetireRequireAuthority(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := newRegistry(t, setupTestDB(t), clk)

	_, err := registry.Mint(ctx, "alice", "alice", clk.Now().Add(time.Hour))
	assert.ErrorIs(t, err, subscriptiondomain.ErrUnauthorized)

	id, err := registry.Mint(ctx, handler, "alice", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.ErrorIs(t, registry.Retire(ctx, "alice", id), subscriptiondomain.ErrUnauthorized)
	active, err := registry.IsActive(ctx, id)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestQueriesAfterRetire(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := newRegistry(t, setupTestDB(t), clk)

	id, err := registry.Mint(ctx, handler, "alice", clk.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, registry.Retire(ctx, handler, id))

	_, err = registry.ExpirationOf(ctx, id)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotFound)
	_, err = registry.HolderOf(ctx, id)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotFound)
	assert.ErrorIs(t, registry.Retire(ctx, handler, id), subscriptiondomain.ErrNotFound)
}

func TestExpiredRecordIsQueryableButNotRetirable(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := newRegistry(t, setupTestDB(t), clk)
	expires := clk.Now().Add(300 * time.Second)

	id, err := registry.Mint(ctx, handler, "alice", expires)
	require.NoError(t, err)

	clk.Advance(300 * time.Second)

	got, err := registry.ExpirationOf(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Equal(expires))
	active, err := registry.IsActive(ctx, id)
	require.NoError(t, err)
	assert.False(t, active)
	assert.ErrorIs(t, registry.Retire(ctx, handler, id), subscriptiondomain.ErrNotFound)
}

func TestRetireUnknownRecord(t *testing.T) {
	registry := newRegistry(t, setupTestDB(t), clock.SystemClock{})
	assert.ErrorIs(t, registry.Retire(context.Background(), handler, 42), subscriptiondomain.ErrNotFound)
}

func TestHolderTransfer(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := newRegistry(t, db, clk)

	id, err := registry.Mint(ctx, handler, "alice", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.ErrorIs(t, registry.Transfer(ctx, "mallory", "mallory", id), subscriptiondomain.ErrUnauthorized)
	assert.ErrorIs(t, registry.Transfer(ctx, "alice", "", id), account.ErrInvalidAddress)
	require.NoError(t, registry.Transfer(ctx, "alice", "bob", id))

	holder, err := registry.HolderOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, account.Address("bob"), holder)

	bobCount, err := registry.BalanceOf(ctx, "bob")
	require.NoError(t, err)
	aliceCount, err := registry.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bobCount)
	assert.Equal(t, int64(0), aliceCount)

	var transfers int64
	require.NoError(t, db.Model(&events.Record{}).Where("type = ?", events.EventSubscriptionTransferred).Count(&transfers).Error)
	assert.Equal(t, int64(2), transfers)
}

func TestListByHolder(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	registry := newRegistry(t, setupTestDB(t), clk)

	for i := 0; i < 3; i++ {
		_, err := registry.Mint(ctx, handler, "alice", clk.Now().Add(time.Hour))
		require.NoError(t, err)
	}
	_, err := registry.Mint(ctx, handler, "bob", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	subs, err := registry.ListByHolder(ctx, "Alice")
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, uint64(1), subs[0].ID)
	assert.Equal(t, uint64(3), subs[2].ID)
}
