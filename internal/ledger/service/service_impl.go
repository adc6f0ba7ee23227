package service

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/events"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/subscriber/internal/observability/metrics"
	"github.com/smallbiznis/subscriber/pkg/account"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	transferKindIssue    = "issue"
	transferKindTransfer = "transfer"
	transferKindCall     = "transfer_and_call"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
	receivers  *receiverTable
}

type receiverTable struct {
	mu        sync.RWMutex
	byAddress map[account.Address]ledgerdomain.Receiver
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
		receivers:  &receiverTable{byAddress: map[account.Address]ledgerdomain.Receiver{}},
	}
}

// WithTx returns a ledger whose operations join tx. Receivers are shared.
func (s *Service) WithTx(tx *gorm.DB) ledgerdomain.Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) RegisterReceiver(addr account.Address, receiver ledgerdomain.Receiver) {
	s.receivers.mu.Lock()
	defer s.receivers.mu.Unlock()
	if receiver == nil {
		delete(s.receivers.byAddress, addr)
		return
	}
	s.receivers.byAddress[addr] = receiver
	s.log.Info("ledger receiver registered", zap.String("address", addr.String()))
}

func (s *Service) receiverFor(addr account.Address) ledgerdomain.Receiver {
	s.receivers.mu.RLock()
	defer s.receivers.mu.RUnlock()
	return s.receivers.byAddress[addr]
}

func (s *Service) BalanceOf(ctx context.Context, acct account.Address) (decimal.Decimal, error) {
	return s.repo.FindBalance(ctx, s.db, account.Normalize(acct.String()))
}

// Issue credits newly created supply to an account.
func (s *Service) Issue(ctx context.Context, to account.Address, amount decimal.Decimal) error {
	to = account.Normalize(to.String())
	if to.IsZero() {
		return account.ErrInvalidAddress
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.move(ctx, tx, account.ZeroAddress, to, amount, nil)
	})
	if err != nil {
		return err
	}
	s.obsMetrics.RecordLedgerTransfer(ctx, transferKindIssue)
	return nil
}

func (s *Service) Transfer(ctx context.Context, from, to account.Address, amount decimal.Decimal) error {
	from, to, err := normalizeParties(from, to)
	if err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.move(ctx, tx, from, to, amount, nil)
	})
	if err != nil {
		return err
	}
	s.obsMetrics.RecordLedgerTransfer(ctx, transferKindTransfer)
	return nil
}

// TransferAndCall moves funds and, when the recipient is a registered
// receiver, invokes it once on the same transaction.
func (s *Service) TransferAndCall(ctx context.Context, from, to account.Address, amount decimal.Decimal, data []byte) error {
	from, to, err := normalizeParties(from, to)
	if err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}

	receiver := s.receiverFor(to)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.move(ctx, tx, from, to, amount, data); err != nil {
			return err
		}
		if receiver == nil {
			return nil
		}
		return receiver.OnTokenTransfer(ctx, tx, from, amount, data)
	})
	if err != nil {
		return err
	}
	s.obsMetrics.RecordLedgerTransfer(ctx, transferKindCall)
	return nil
}

func (s *Service) move(ctx context.Context, tx *gorm.DB, from, to account.Address, amount decimal.Decimal, data []byte) error {
	now := s.clock.Now().UTC()

	if !from.IsZero() {
		balance, err := s.repo.FindBalanceForUpdate(ctx, tx, from)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return ledgerdomain.ErrInsufficientBalance
		}
		if err := s.repo.UpsertBalance(ctx, tx, &ledgerdomain.Balance{
			Account:   from,
			Amount:    balance.Sub(amount),
			UpdatedAt: now,
		}); err != nil {
			return err
		}
	}

	balance, err := s.repo.FindBalanceForUpdate(ctx, tx, to)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertBalance(ctx, tx, &ledgerdomain.Balance{
		Account:   to,
		Amount:    balance.Add(amount),
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	transfer := &ledgerdomain.Transfer{
		ID:         s.genID.Generate(),
		From:       from,
		To:         to,
		Amount:     amount,
		Data:       data,
		OccurredAt: now,
	}
	if err := s.repo.InsertTransfer(ctx, tx, transfer); err != nil {
		return err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventLedgerTransferred,
		Payload: map[string]any{
			"from":   from.String(),
			"to":     to.String(),
			"amount": amount.String(),
		},
	}); err != nil {
		return err
	}

	s.log.Debug("ledger transfer",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.String()),
	)
	return nil
}

func normalizeParties(from, to account.Address) (account.Address, account.Address, error) {
	from = account.Normalize(from.String())
	to = account.Normalize(to.String())
	if from.IsZero() || to.IsZero() {
		return from, to, account.ErrInvalidAddress
	}
	return from, to, nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return ledgerdomain.ErrInvalidAmount
	}
	return nil
}
