package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/events"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/subscriber/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/subscriber/internal/ledger/service"
	"github.com/smallbiznis/subscriber/internal/migration"
	oracledomain "github.com/smallbiznis/subscriber/internal/oracle/domain"
	"github.com/smallbiznis/subscriber/internal/payment"
	paymentdomain "github.com/smallbiznis/subscriber/internal/payment/domain"
	"github.com/smallbiznis/subscriber/internal/payment/service"
	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	settingsrepository "github.com/smallbiznis/subscriber/internal/settings/repository"
	settingsservice "github.com/smallbiznis/subscriber/internal/settings/service"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/subscriber/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/subscriber/internal/subscription/service"
	"github.com/smallbiznis/subscriber/pkg/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	handlerAddr account.Address = "handler"
	ownerAddr   account.Address = "maintainer"
	payerAddr   account.Address = "alice"
)

var (
	start   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nominal = decimal.NewFromInt(100000000)
	funding = decimal.RequireFromString("1000000000000000000000")
)

type stubOracle struct {
	rate   oracledomain.Rate
	err    error
	onRead func(ctx context.Context)
}

func (o *stubOracle) LatestRate(ctx context.Context, ref string) (oracledomain.Rate, error) {
	if o.onRead != nil {
		o.onRead(ctx)
	}
	if o.err != nil {
		return oracledomain.Rate{}, o.err
	}
	return o.rate, nil
}

type harness struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	oracle   *stubOracle
	ledger   ledgerdomain.Service
	registry subscriptiondomain.Service
	settings settingsdomain.Service
	handler  paymentdomain.Service
}

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

// refundFailingLedger rejects every transfer the handler sends out of its own account.
type refundFailingLedger struct {
	ledgerdomain.Service
}

var errRefundRejected = errors.New("refund rejected")

func (l refundFailingLedger) WithTx(tx *gorm.DB) ledgerdomain.Service {
	return refundFailingLedger{Service: l.Service.WithTx(tx)}
}

func (l refundFailingLedger) Transfer(ctx context.Context, from, to account.Address, amount decimal.Decimal) error {
	if from == handlerAddr {
		return errRefundRejected
	}
	return l.Service.Transfer(ctx, from, to, amount)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithLedger(t, nil)
}

// newHarnessWithLedger lets a test wrap the ledger the handler sees.
func newHarnessWithLedger(t *testing.T, wrap func(ledgerdomain.Service) ledgerdomain.Service) *harness {
	t.Helper()

	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(start)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Settlement: config.SettlementConfig{Symbol: "LINK", Decimals: 18},
		Handler: config.HandlerConfig{
			Address:                     handlerAddr.String(),
			OwnerAddress:                ownerAddr.String(),
			InitialPaymentAmount:        nominal.String(),
			InitialSubscriptionDuration: 300,
		},
	}
	require.NoError(t, migration.SeedSettings(ctx, db, cfg, clk.Now()))

	outbox := events.NewOutbox(events.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk})
	oracle := &stubOracle{rate: oracledomain.Rate{
		Answer:    decimal.NewFromInt(77777777777),
		Decimals:  8,
		UpdatedAt: start,
	}}

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   ledgerrepository.Provide(),
		Outbox: outbox,
	})
	registry := subscriptionservice.NewService(subscriptionservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Config: cfg,
		Clock:  clk,
		Repo:   subscriptionrepository.Provide(),
		Outbox: outbox,
	})
	settings := settingsservice.NewService(settingsservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Repo:   settingsrepository.Provide(),
		Outbox: outbox,
		Oracle: oracle,
	})
	var handlerLedger ledgerdomain.Service = ledger
	if wrap != nil {
		handlerLedger = wrap(ledger)
	}
	handler := service.NewService(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Config:   cfg,
		Clock:    clk,
		Ledger:   handlerLedger,
		Registry: registry,
		Settings: settings,
		Oracle:   oracle,
		Outbox:   outbox,
	})
	payment.RegisterReceiver(ledger, handler)

	require.NoError(t, ledger.Issue(ctx, payerAddr, funding))

	return &harness{
		db:       db,
		clock:    clk,
		oracle:   oracle,
		ledger:   ledger,
		registry: registry,
		settings: settings,
		handler:  handler,
	}
}

func (h *harness) pay(amount decimal.Decimal, data []byte) error {
	return h.ledger.TransferAndCall(context.Background(), payerAddr, handlerAddr, amount, data)
}

func (h *harness) balance(t *testing.T, addr account.Address) decimal.Decimal {
	t.Helper()
	balance, err := h.ledger.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return balance
}

func (h *harness) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&events.Record{}).Where("type = ?", eventType).Count(&count).Error)
	return count
}

func TestPriceWithoutFeedIsNominal(t *testing.T) {
	h := newHarness(t)

	price, err := h.handler.Price(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(nominal), price.String())
}

func TestPriceThroughFeed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.settings.SetFeed(ctx, ownerAddr, "link-usd"))

	price, err := h.handler.Price(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1285714285727142", price.String())
}

func TestPaymentMintsSequentialRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.pay(nominal, nil))
	require.NoError(t, h.pay(nominal, []byte{}))

	first, err := h.registry.Get(ctx, 1)
	require.NoError(t, err)
	second, err := h.registry.Get(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, payerAddr, first.Holder)
	assert.Equal(t, payerAddr, second.Holder)
	assert.True(t, first.ExpiresAt.Equal(start.Add(300*time.Second)), first.ExpiresAt.String())

	count, err := h.registry.BalanceOf(ctx, payerAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.True(t, h.balance(t, handlerAddr).Equal(nominal.Mul(decimal.NewFromInt(2))))
	assert.Equal(t, int64(2), h.countEvents(t, events.EventSubscriptionCreated))
}

func TestRecordExpiresAfterDuration(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.pay(nominal, nil))

	h.clock.Advance(299 * time.Second)
	active, err := h.registry.IsActive(ctx, 1)
	require.NoError(t, err)
	assert.True(t, active)

	h.clock.Advance(2 * time.Second)
	active, err = h.registry.IsActive(ctx, 1)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestInsufficientPaymentLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.settings.SetFeed(ctx, ownerAddr, "link-usd"))

	err := h.pay(decimal.RequireFromString("1285714285727141"), nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInsufficientPayment)

	assert.True(t, h.balance(t, payerAddr).Equal(funding))
	assert.True(t, h.balance(t, handlerAddr).IsZero())
	count, err := h.registry.BalanceOf(ctx, payerAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), h.countEvents(t, events.EventSubscriptionCreated))

	require.NoError(t, h.pay(decimal.RequireFromString("1285714285727142"), nil))
	_, err = h.registry.Get(ctx, 1)
	assert.NoError(t, err)
}

func TestSurplusIsRefunded(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.pay(nominal.Add(decimal.NewFromInt(50)), nil))

	assert.True(t, h.balance(t, handlerAddr).Equal(nominal), h.balance(t, handlerAddr).String())
	assert.True(t, h.balance(t, payerAddr).Equal(funding.Sub(nominal)))
}

func TestRefundFailureRollsBackPayment(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWithLedger(t, func(inner ledgerdomain.Service) ledgerdomain.Service {
		return refundFailingLedger{Service: inner}
	})
	transfersBefore := h.countEvents(t, events.EventLedgerTransferred)

	err := h.pay(nominal.Add(decimal.NewFromInt(50)), nil)
	assert.ErrorIs(t, err, errRefundRejected)

	assert.True(t, h.balance(t, payerAddr).Equal(funding), h.balance(t, payerAddr).String())
	assert.True(t, h.balance(t, handlerAddr).IsZero(), h.balance(t, handlerAddr).String())
	count, err := h.registry.BalanceOf(ctx, payerAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	_, err = h.registry.Get(ctx, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotFound)
	assert.Equal(t, int64(0), h.countEvents(t, events.EventSubscriptionCreated))
	assert.Equal(t, transfersBefore, h.countEvents(t, events.EventLedgerTransferred))

	require.NoError(t, h.pay(nominal, nil))
	_, err = h.registry.Get(ctx, 1)
	assert.NoError(t, err)
}

func TestPaymentOutcomeAnnotatesSpan(t *testing.T) {
	h := newHarness(t)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := provider.Tracer("test").Start(context.Background(), "pay")
	require.NoError(t, h.ledger.TransferAndCall(ctx, payerAddr, handlerAddr, nominal, nil))
	span.End()

	ctx, span = provider.Tracer("test").Start(context.Background(), "underpay")
	err := h.ledger.TransferAndCall(ctx, payerAddr, handlerAddr, decimal.NewFromInt(1), nil)
	span.End()
	require.ErrorIs(t, err, paymentdomain.ErrInsufficientPayment)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	outcomes := make(map[string]string)
	for _, s := range spans {
		for _, kv := range s.Attributes() {
			if kv.Key == "payment.outcome" {
				outcomes[s.Name()] = kv.Value.AsString()
			}
		}
	}
	assert.Equal(t, paymentdomain.OutcomeCreated, outcomes["pay"])
	assert.Equal(t, paymentdomain.OutcomeInsufficientPayment, outcomes["underpay"])
}

func TestRenewalExtendsFromPreviousExpiration(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.pay(nominal, nil))
	h.clock.Advance(100 * time.Second)
	require.NoError(t, h.pay(nominal, paymentdomain.EncodeRenewal(1)))

	_, err := h.registry.Get(ctx, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotFound)

	renewed, err := h.registry.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, payerAddr, renewed.Holder)
	assert.True(t, renewed.ExpiresAt.Equal(start.Add(600*time.Second)), renewed.ExpiresAt.String())

	count, err := h.registry.BalanceOf(ctx, payerAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRenewalOfInactiveRecordFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.NoError(t, h.pay(nominal, nil))
	h.clock.Advance(301 * time.Second)
	handlerBefore := h.balance(t, handlerAddr)

	cases := map[string][]byte{
		"expired":  paymentdomain.EncodeRenewal(1),
		"unknown":  paymentdomain.EncodeRenewal(99),
		"too wide": append([]byte{0x01}, make([]byte, 8)...),
	}
	for name, data := range cases {
		assert.ErrorIs(t, h.pay(nominal, data), paymentdomain.ErrInactiveOrUnknownRecord, name)
	}
	assert.ErrorIs(t, h.pay(nominal, make([]byte, 33)), paymentdomain.ErrInvalidMetadata)

	assert.True(t, h.balance(t, handlerAddr).Equal(handlerBefore))
	expired, err := h.registry.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, payerAddr, expired.Holder)
	assert.Equal(t, int64(1), h.countEvents(t, events.EventSubscriptionCreated))
}

func TestOracleFailureRejectsPayment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.settings.SetFeed(ctx, ownerAddr, "link-usd"))

	h.oracle.err = oracledomain.ErrOracleUnavailable
	assert.ErrorIs(t, h.pay(funding, nil), oracledomain.ErrOracleUnavailable)

	h.oracle.err = nil
	h.oracle.rate.Answer = decimal.Zero
	assert.ErrorIs(t, h.pay(funding, nil), oracledomain.ErrOracleUnavailable)
	assert.True(t, h.balance(t, payerAddr).Equal(funding))
}

func TestNestedPaymentIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.settings.SetFeed(ctx, ownerAddr, "link-usd"))

	var nested error
	h.oracle.onRead = func(ctx context.Context) {
		h.oracle.onRead = nil
		nested = h.handler.OnTokenTransfer(ctx, nil, payerAddr, funding, nil)
	}

	require.NoError(t, h.pay(funding, nil))
	assert.ErrorIs(t, nested, paymentdomain.ErrReentrantPayment)

	count, err := h.registry.BalanceOf(ctx, payerAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.pay(nominal, nil))

	err := h.handler.Withdraw(ctx, "stranger", nominal, "stranger")
	assert.ErrorIs(t, err, settingsdomain.ErrUnauthorized)

	err = h.handler.Withdraw(ctx, ownerAddr, nominal.Add(decimal.NewFromInt(1)), "bob")
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	require.NoError(t, h.handler.Withdraw(ctx, ownerAddr, nominal, "bob"))
	assert.True(t, h.balance(t, "bob").Equal(nominal))
	assert.True(t, h.balance(t, handlerAddr).IsZero())
	assert.Equal(t, int64(1), h.countEvents(t, events.EventPaymentWithdrawn))
}
