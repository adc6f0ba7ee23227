package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/events"
	obsmetrics "github.com/smallbiznis/subscriber/internal/observability/metrics"
	oracledomain "github.com/smallbiznis/subscriber/internal/oracle/domain"
	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       settingsdomain.Repository
	Outbox     *events.Outbox
	Oracle     oracledomain.RateSource
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       settingsdomain.Repository
	outbox     *events.Outbox
	oracle     oracledomain.RateSource
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) settingsdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("settings.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		outbox:     p.Outbox,
		oracle:     p.Oracle,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) WithTx(tx *gorm.DB) settingsdomain.Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) Get(ctx context.Context) (*settingsdomain.Settings, error) {
	current, err := s.repo.Get(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, settingsdomain.ErrNotConfigured
	}
	return current, nil
}

func (s *Service) Owner(ctx context.Context) (account.Address, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return account.ZeroAddress, err
	}
	return current.Owner, nil
}

func (s *Service) Feed(ctx context.Context) (string, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return current.Feed, nil
}

func (s *Service) PaymentAmount(ctx context.Context) (decimal.Decimal, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return current.PaymentAmount, nil
}

func (s *Service) SubscriptionDuration(ctx context.Context) (int64, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return current.SubscriptionDuration, nil
}

func (s *Service) RequireOwner(ctx context.Context, caller account.Address) error {
	owner, err := s.Owner(ctx)
	if err != nil {
		return err
	}
	return checkOwner(owner, caller)
}

// SetFeed points pricing at a catalog feed. An empty ref removes the feed;
// any other ref must produce a usable rate right now.
func (s *Service) SetFeed(ctx context.Context, caller account.Address, ref string) error {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return s.update(ctx, caller, "feed", func(current *settingsdomain.Settings) (events.Event, error) {
		if ref != "" {
			if _, err := s.oracle.LatestRate(ctx, ref); err != nil {
				s.log.Warn("feed check failed", zap.String("feed", ref), zap.Error(err))
				return events.Event{}, settingsdomain.ErrInvalidConfiguration
			}
		}
		current.Feed = ref
		return events.Event{
			Type:    events.EventFeedSet,
			Payload: map[string]any{"feed": ref},
		}, nil
	})
}

// SetPaymentAmount accepts zero, which makes subscriptions free.
func (s *Service) SetPaymentAmount(ctx context.Context, caller account.Address, amount decimal.Decimal) error {
	return s.update(ctx, caller, "payment_amount", func(current *settingsdomain.Settings) (events.Event, error) {
		if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
			return events.Event{}, settingsdomain.ErrInvalidConfiguration
		}
		current.PaymentAmount = amount
		return events.Event{
			Type:    events.EventPaymentAmountSet,
			Payload: map[string]any{"payment_amount": amount.String()},
		}, nil
	})
}

func (s *Service) SetSubscriptionDuration(ctx context.Context, caller account.Address, seconds int64) error {
	return s.update(ctx, caller, "subscription_duration", func(current *settingsdomain.Settings) (events.Event, error) {
		if seconds <= 0 {
			return events.Event{}, settingsdomain.ErrInvalidConfiguration
		}
		current.SubscriptionDuration = seconds
		return events.Event{
			Type:    events.EventSubscriptionDurationSet,
			Payload: map[string]any{"subscription_duration": seconds},
		}, nil
	})
}

func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner account.Address) error {
	return s.update(ctx, caller, "owner", func(current *settingsdomain.Settings) (events.Event, error) {
		next, err := account.Parse(newOwner.String())
		if err != nil {
			return events.Event{}, err
		}
		previous := current.Owner
		current.Owner = next
		return events.Event{
			Type: events.EventOwnershipTransferred,
			Payload: map[string]any{
				"previous_owner": previous.String(),
				"new_owner":      next.String(),
			},
		}, nil
	})
}

// update runs one owner-gated change and its notification in a single transaction.
func (s *Service) update(ctx context.Context, caller account.Address, setting string, mutate func(*settingsdomain.Settings) (events.Event, error)) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.GetForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if current == nil {
			return settingsdomain.ErrNotConfigured
		}
		if err := checkOwner(current.Owner, caller); err != nil {
			return err
		}

		event, err := mutate(current)
		if err != nil {
			return err
		}
		current.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	s.obsMetrics.RecordSettingsChange(ctx, setting)
	s.log.Info("settings changed", zap.String("setting", setting), zap.String("caller", caller.String()))
	return nil
}

func checkOwner(owner, caller account.Address) error {
	caller = account.Normalize(caller.String())
	if caller.IsZero() || caller != owner {
		return settingsdomain.ErrUnauthorized
	}
	return nil
}
