package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

// Outbox stores notifications in the same transaction as the state change
// they describe, so a rolled back operation leaves none behind.
type Outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(p Params) *Outbox {
	return &Outbox{
		db:    p.DB,
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	eventType := strings.TrimSpace(event.Type)
	if eventType == "" {
		return ErrInvalidEventType
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := Record{
		ID:        o.genID.Generate(),
		Type:      eventType,
		Payload:   datatypes.JSON(raw),
		CreatedAt: o.clock.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}

	o.log.Debug("event published", zap.String("type", eventType), zap.String("event_id", record.ID.String()))
	return nil
}

// List returns notifications oldest first, optionally filtered by type.
func (o *Outbox) List(ctx context.Context, req ListRequest) (ListResponse, error) {
	pageSize := req.Size(defaultPageSize, maxPageSize)
	eventType := strings.TrimSpace(req.Type)

	query := o.db.WithContext(ctx).Model(&Record{})
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token, eventType)
		if err != nil {
			return ListResponse{}, ErrInvalidPageToken
		}
		query = query.Where("id > ?", cursor.AfterID)
	}

	var records []*Record
	if err := query.Order("id ASC").Limit(pageSize + 1).Find(&records).Error; err != nil {
		return ListResponse{}, err
	}

	records, pageInfo := pagination.Page(records, pageSize, eventType, func(r *Record) int64 {
		return r.ID.Int64()
	})

	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}
	return ListResponse{PageInfo: pageInfo, Events: out}, nil
}
