package repository

import (
	"context"

	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	"github.com/smallbiznis/subscriber/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() settingsdomain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, conn *gorm.DB) (*settingsdomain.Settings, error) {
	return r.find(conn.WithContext(ctx))
}

func (r *repo) GetForUpdate(ctx context.Context, conn *gorm.DB) (*settingsdomain.Settings, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)))
}

func (r *repo) find(conn *gorm.DB) (*settingsdomain.Settings, error) {
	var rows []settingsdomain.Settings
	if err := conn.Where("id = ?", settingsdomain.SingletonID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, settings *settingsdomain.Settings) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE handler_settings
		SET owner = ?, feed = ?, payment_amount = ?, subscription_duration = ?, updated_at = ?
		WHERE id = ?`,
		settings.Owner,
		settings.Feed,
		settings.PaymentAmount,
		settings.SubscriptionDuration,
		settings.UpdatedAt,
		settingsdomain.SingletonID,
	).Error
}
