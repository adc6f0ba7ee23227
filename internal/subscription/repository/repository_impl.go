package repository

import (
	"context"

	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
	"github.com/smallbiznis/subscriber/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

// NextID advances the sequence and returns the new value. Must run inside a transaction.
func (r *repo) NextID(ctx context.Context, conn *gorm.DB) (uint64, error) {
	conn = conn.WithContext(ctx)

	seed := subscriptiondomain.Sequence{Name: subscriptiondomain.SequenceSubscriptions}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}
	if err := conn.Exec(
		`UPDATE subscription_sequences SET last_id = last_id + 1 WHERE name = ?`,
		subscriptiondomain.SequenceSubscriptions,
	).Error; err != nil {
		return 0, err
	}

	var seq subscriptiondomain.Sequence
	if err := conn.Where("name = ?", subscriptiondomain.SequenceSubscriptions).Take(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastID, nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, holder, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		subscription.ID,
		subscription.Holder,
		subscription.ExpiresAt,
		subscription.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id uint64) (*subscriptiondomain.Subscription, error) {
	return r.find(conn.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id uint64) (*subscriptiondomain.Subscription, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)), id)
}

func (r *repo) find(conn *gorm.DB, id uint64) (*subscriptiondomain.Subscription, error) {
	var rows []subscriptiondomain.Subscription
	if err := conn.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) UpdateHolder(ctx context.Context, conn *gorm.DB, id uint64, holder account.Address) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE subscriptions SET holder = ? WHERE id = ?`,
		holder,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id uint64) error {
	return conn.WithContext(ctx).Exec(`DELETE FROM subscriptions WHERE id = ?`, id).Error
}

func (r *repo) CountByHolder(ctx context.Context, conn *gorm.DB, holder account.Address) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&subscriptiondomain.Subscription{}).Where("holder = ?", holder).Count(&count).Error
	return count, err
}

func (r *repo) ListByHolder(ctx context.Context, conn *gorm.DB, holder account.Address) ([]subscriptiondomain.Subscription, error) {
	var subscriptions []subscriptiondomain.Subscription
	err := conn.WithContext(ctx).Where("holder = ?", holder).Order("id ASC").Find(&subscriptions).Error
	return subscriptions, err
}
