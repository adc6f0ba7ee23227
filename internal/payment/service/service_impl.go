package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/events"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	"github.com/smallbiznis/subscriber/internal/lock"
	obsmetrics "github.com/smallbiznis/subscriber/internal/observability/metrics"
	obstracing "github.com/smallbiznis/subscriber/internal/observability/tracing"
	oracledomain "github.com/smallbiznis/subscriber/internal/oracle/domain"
	paymentdomain "github.com/smallbiznis/subscriber/internal/payment/domain"
	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPaymentLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	Ledger     ledgerdomain.Service
	Registry   subscriptiondomain.Service
	Settings   settingsdomain.Service
	Oracle     oracledomain.RateSource
	Outbox     *events.Outbox
	Locker     *lock.Locker        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db                 *gorm.DB
	log                *zap.Logger
	clock              clock.Clock
	ledger             ledgerdomain.Service
	registry           subscriptiondomain.Service
	settings           settingsdomain.Service
	oracle             oracledomain.RateSource
	outbox             *events.Outbox
	guard              *lock.Guard
	obsMetrics         *obsmetrics.Metrics
	address            account.Address
	settlementDecimals int32
}

func NewService(p Params) paymentdomain.Service {
	address := account.Normalize(p.Config.Handler.Address)
	ttl := p.Config.Handler.PaymentLockTTL
	if ttl <= 0 {
		ttl = defaultPaymentLockTTL
	}
	log := p.Log.Named("payment.service")

	return &Service{
		db:                 p.DB,
		log:                log,
		clock:              p.Clock,
		ledger:             p.Ledger,
		registry:           p.Registry,
		settings:           p.Settings,
		oracle:             p.Oracle,
		outbox:             p.Outbox,
		guard:              lock.NewGuard(p.Locker, "subscriber:payments:"+address.String(), ttl, log),
		obsMetrics:         p.ObsMetrics,
		address:            address,
		settlementDecimals: p.Config.Settlement.Decimals,
	}
}

func (s *Service) Address() account.Address {
	return s.address
}

// Price returns what a payment made now must carry, in settlement units.
func (s *Service) Price(ctx context.Context) (decimal.Decimal, error) {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return s.price(ctx, current)
}

func (s *Service) price(ctx context.Context, current *settingsdomain.Settings) (decimal.Decimal, error) {
	if !current.HasFeed() {
		return current.PaymentAmount, nil
	}
	rate, err := s.oracle.LatestRate(ctx, current.Feed)
	if err != nil {
		return decimal.Zero, err
	}
	return paymentdomain.ComputePrice(current.PaymentAmount, s.settlementDecimals, rate)
}

// OnTokenTransfer settles one payment. amount is already credited to the
// handler on tx; any error returned here rolls that credit back as well.
func (s *Service) OnTokenTransfer(ctx context.Context, tx *gorm.DB, payer account.Address, amount decimal.Decimal, data []byte) (err error) {
	release, err := s.guard.Enter(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return paymentdomain.ErrReentrantPayment
		}
		return err
	}
	defer release()

	outcome := paymentdomain.OutcomeError
	var recordID uint64
	defer func() {
		s.obsMetrics.RecordPayment(ctx, outcome)
		obstracing.Annotate(ctx,
			attribute.String("payment.outcome", outcome),
			attribute.Int64("subscription.id", int64(recordID)),
		)
	}()

	settings := s.settings.WithTx(tx)
	registry := s.registry.WithTx(tx)

	current, err := settings.Get(ctx)
	if err != nil {
		return err
	}
	required, err := s.price(ctx, current)
	if err != nil {
		if errors.Is(err, oracledomain.ErrOracleUnavailable) {
			outcome = paymentdomain.OutcomeOracleUnavailable
		}
		return err
	}
	if amount.LessThan(required) {
		outcome = paymentdomain.OutcomeInsufficientPayment
		s.log.Info("payment rejected",
			zap.String("payer", payer.String()),
			zap.String("amount", amount.String()),
			zap.String("required", required.String()),
		)
		return paymentdomain.ErrInsufficientPayment
	}

	previousID, renew, err := paymentdomain.DecodeRenewal(data)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInactiveOrUnknownRecord) {
			outcome = paymentdomain.OutcomeInactiveRecord
		}
		return err
	}

	now := s.clock.Now().UTC()
	duration := time.Duration(current.SubscriptionDuration) * time.Second
	expiresAt := now.Add(duration)

	if renew {
		previous, err := registry.Get(ctx, previousID)
		if err != nil && !errors.Is(err, subscriptiondomain.ErrNotFound) {
			return err
		}
		// Ownership of the previous record is deliberately not checked.
		if previous == nil || !previous.IsActive(now) {
			outcome = paymentdomain.OutcomeInactiveRecord
			return paymentdomain.ErrInactiveOrUnknownRecord
		}
		if err := registry.Retire(ctx, s.address, previousID); err != nil {
			if errors.Is(err, subscriptiondomain.ErrNotFound) {
				outcome = paymentdomain.OutcomeInactiveRecord
				return paymentdomain.ErrInactiveOrUnknownRecord
			}
			return err
		}
		expiresAt = previous.ExpiresAt.Add(duration)
	}

	id, err := registry.Mint(ctx, s.address, payer, expiresAt)
	if err != nil {
		return err
	}
	recordID = id
	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventSubscriptionCreated,
		Payload: map[string]any{
			"subscriber":      payer.String(),
			"subscription_id": id,
		},
	}); err != nil {
		return err
	}

	if surplus := amount.Sub(required); surplus.IsPositive() {
		if err := s.ledger.WithTx(tx).Transfer(ctx, s.address, payer, surplus); err != nil {
			return err
		}
		s.obsMetrics.RecordRefund(ctx)
	}

	outcome = paymentdomain.OutcomeCreated
	if renew {
		outcome = paymentdomain.OutcomeRenewed
	}
	s.log.Info("payment accepted",
		zap.String("payer", payer.String()),
		zap.String("amount", amount.String()),
		zap.String("required", required.String()),
		zap.Uint64("subscription_id", id),
		zap.Uint64("renewed_id", previousID),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// Withdraw pays out accumulated funds. Owner only.
func (s *Service) Withdraw(ctx context.Context, caller account.Address, amount decimal.Decimal, recipient account.Address) error {
	recipient, err := account.Parse(recipient.String())
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.settings.WithTx(tx).RequireOwner(ctx, caller); err != nil {
			return err
		}
		if err := s.ledger.WithTx(tx).Transfer(ctx, s.address, recipient, amount); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventPaymentWithdrawn,
			Payload: map[string]any{
				"recipient": recipient.String(),
				"amount":    amount.String(),
			},
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("funds withdrawn", zap.String("recipient", recipient.String()), zap.String("amount", amount.String()))
	return nil
}
