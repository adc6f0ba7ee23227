package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	obsmetrics "github.com/smallbiznis/subscriber/internal/observability/metrics"
	obstracing "github.com/smallbiznis/subscriber/internal/observability/tracing"
	"github.com/smallbiznis/subscriber/internal/oracle/adapters"
	oracledomain "github.com/smallbiznis/subscriber/internal/oracle/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config     config.Config
	Catalog    *config.FeedCatalogHolder
	Registry   *adapters.Registry
	Clock      clock.Clock
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Resolver turns feed references from the catalog into usable rates.
type Resolver struct {
	catalog    *config.FeedCatalogHolder
	registry   *adapters.Registry
	clock      clock.Clock
	maxAge     time.Duration
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		catalog:    p.Catalog,
		registry:   p.Registry,
		clock:      p.Clock,
		maxAge:     p.Config.Oracle.MaxRateAge,
		log:        p.Log.Named("oracle.resolver"),
		obsMetrics: p.ObsMetrics,
	}
}

// Resolve builds the feed registered under ref.
func (r *Resolver) Resolve(ref string) (oracledomain.Feed, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	entry, ok := r.catalog.Lookup(ref)
	if !ok {
		return nil, oracledomain.ErrFeedNotFound
	}
	updatedAt, err := entry.UpdatedTime()
	if err != nil {
		return nil, oracledomain.ErrInvalidFeedConfig
	}
	return r.registry.NewFeed(oracledomain.FeedConfig{
		Ref:       ref,
		Kind:      entry.Kind,
		Symbol:    entry.Symbol,
		Answer:    entry.Answer,
		Decimals:  entry.Decimals,
		UpdatedAt: updatedAt,
	})
}

// LatestRate resolves ref and reads a rate that is safe to price with.
// Every failure is reported as ErrOracleUnavailable so callers fail closed.
func (r *Resolver) LatestRate(ctx context.Context, ref string) (oracledomain.Rate, error) {
	feed, err := r.Resolve(ref)
	if err != nil {
		r.record(ctx, "unknown", "unresolved")
		r.log.Warn("feed unresolved", zap.String("feed", ref), zap.Error(err))
		return oracledomain.Rate{}, errors.Join(oracledomain.ErrOracleUnavailable, err)
	}

	rate, err := feed.LatestRate(ctx)
	if err != nil {
		r.record(ctx, feed.Kind(), "error")
		r.log.Warn("feed read failed", zap.String("feed", ref), zap.String("kind", feed.Kind()), zap.Error(err))
		if errors.Is(err, oracledomain.ErrOracleUnavailable) {
			return oracledomain.Rate{}, err
		}
		return oracledomain.Rate{}, errors.Join(oracledomain.ErrOracleUnavailable, err)
	}

	if reason := r.unusable(rate); reason != "" {
		r.record(ctx, feed.Kind(), reason)
		r.log.Warn("feed rate rejected",
			zap.String("feed", ref),
			zap.String("reason", reason),
			zap.String("answer", rate.Answer.String()),
			zap.Int32("decimals", rate.Decimals),
		)
		return oracledomain.Rate{}, oracledomain.ErrOracleUnavailable
	}

	r.record(ctx, feed.Kind(), "ok")
	return rate, nil
}

func (r *Resolver) record(ctx context.Context, kind, outcome string) {
	r.obsMetrics.RecordOracleRead(ctx, kind, outcome)
	obstracing.Annotate(ctx,
		attribute.String("oracle.kind", kind),
		attribute.String("oracle.outcome", outcome),
	)
}

func (r *Resolver) unusable(rate oracledomain.Rate) string {
	switch {
	case !rate.Answer.IsPositive():
		return "non_positive"
	case !rate.Answer.Equal(rate.Answer.Truncate(0)):
		return "fractional"
	case rate.Decimals < 0 || rate.Decimals > oracledomain.MaxDecimals:
		return "bad_decimals"
	case r.maxAge > 0 && r.clock.Now().Sub(rate.UpdatedAt) > r.maxAge:
		return "stale"
	}
	return ""
}
