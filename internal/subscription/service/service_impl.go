package service

import (
	"context"
	"time"

	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/events"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	Clock  clock.Clock
	Repo   subscriptiondomain.Repository
	Outbox *events.Outbox
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      subscriptiondomain.Repository
	outbox    *events.Outbox
	authority account.Address
}

// NewService builds the registry. Only the payment handler address may mint or retire.
func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("subscription.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		outbox:    p.Outbox,
		authority: account.Normalize(p.Config.Handler.Address),
	}
}

func (s *Service) WithTx(tx *gorm.DB) subscriptiondomain.Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) Authority() account.Address {
	return s.authority
}

func (s *Service) authorize(caller account.Address) error {
	if s.authority.IsZero() || account.Normalize(caller.String()) != s.authority {
		return subscriptiondomain.ErrUnauthorized
	}
	return nil
}

// Mint stores a new record under the next sequence id.
func (s *Service) Mint(ctx context.Context, caller, holder account.Address, expiresAt time.Time) (uint64, error) {
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	holder, err := account.Parse(holder.String())
	if err != nil {
		return 0, err
	}
	if expiresAt.IsZero() {
		return 0, subscriptiondomain.ErrInvalidExpiration
	}

	var id uint64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := s.repo.NextID(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &subscriptiondomain.Subscription{
			ID:        next,
			Holder:    holder,
			ExpiresAt: expiresAt.UTC(),
			CreatedAt: s.clock.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := s.publishTransfer(ctx, tx, account.ZeroAddress, holder, next); err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("subscription minted",
		zap.Uint64("subscription_id", id),
		zap.String("holder", holder.String()),
		zap.Time("expires_at", expiresAt.UTC()),
	)
	return id, nil
}

// Retire deletes an active record. Missing and expired records are both ErrNotFound.
func (s *Service) Retire(ctx context.Context, caller account.Address, id uint64) error {
	if err := s.authorize(caller); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil || !sub.IsActive(s.clock.Now()) {
			return subscriptiondomain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.publishTransfer(ctx, tx, sub.Holder, account.ZeroAddress, id)
	})
	if err != nil {
		return err
	}

	s.log.Info("subscription retired", zap.Uint64("subscription_id", id))
	return nil
}

// Transfer moves a record to another holder. Only the current holder may call it.
func (s *Service) Transfer(ctx context.Context, caller, to account.Address, id uint64) error {
	to, err := account.Parse(to.String())
	if err != nil {
		return err
	}
	caller = account.Normalize(caller.String())

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrNotFound
		}
		if caller.IsZero() || sub.Holder != caller {
			return subscriptiondomain.ErrUnauthorized
		}
		if err := s.repo.UpdateHolder(ctx, tx, id, to); err != nil {
			return err
		}
		return s.publishTransfer(ctx, tx, sub.Holder, to, id)
	})
}

func (s *Service) Get(ctx context.Context, id uint64) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return sub, nil
}

// ExpirationOf returns the stored expiration, including a past one.
func (s *Service) ExpirationOf(ctx context.Context, id uint64) (time.Time, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return sub.ExpiresAt, nil
}

func (s *Service) HolderOf(ctx context.Context, id uint64) (account.Address, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return account.ZeroAddress, err
	}
	return sub.Holder, nil
}

func (s *Service) IsActive(ctx context.Context, id uint64) (bool, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return sub.IsActive(s.clock.Now()), nil
}

func (s *Service) BalanceOf(ctx context.Context, holder account.Address) (int64, error) {
	holder, err := account.Parse(holder.String())
	if err != nil {
		return 0, err
	}
	return s.repo.CountByHolder(ctx, s.db, holder)
}

func (s *Service) ListByHolder(ctx context.Context, holder account.Address) ([]subscriptiondomain.Subscription, error) {
	holder, err := account.Parse(holder.String())
	if err != nil {
		return nil, err
	}
	return s.repo.ListByHolder(ctx, s.db, holder)
}

func (s *Service) publishTransfer(ctx context.Context, tx *gorm.DB, from, to account.Address, id uint64) error {
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventSubscriptionTransferred,
		Payload: map[string]any{
			"from": from.String(),
			"to":   to.String(),
			"id":   id,
		},
	})
}
