package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/subscriber/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const keyTransferCaller = "subscriber:transfers:%s"

// TransferLimiter throttles transfer submissions per caller. It uses the
// shared Redis bucket when one is available and a process-local bucket otherwise.
type TransferLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewTransferLimiter returns nil when TRANSFER_RATE_LIMIT is unset.
func NewTransferLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *TransferLimiter {
	limitCfg := cfg.RateLimit
	if limitCfg.TransferRate <= 0 {
		return nil
	}
	burst := limitCfg.TransferBurst
	if burst <= 0 {
		burst = 1
	}
	if bucket == nil {
		log.Info("transfer rate limit is process local", zap.Float64("rate", limitCfg.TransferRate))
	}
	return &TransferLimiter{
		bucket: bucket,
		rate:   limitCfg.TransferRate,
		burst:  burst,
		local:  map[string]*rate.Limiter{},
	}
}

func (l *TransferLimiter) Enabled() bool {
	return l != nil
}

// Allow spends one token for caller. A denied call reports how long to wait.
func (l *TransferLimiter) Allow(ctx context.Context, caller string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	caller = strings.ToLower(strings.TrimSpace(caller))

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyTransferCaller, caller), l.rate, l.burst)
		if err != nil {
			return false, 0, err
		}
		return res.Allowed, res.RetryAfter, nil
	}

	limiter := l.localLimiter(caller)
	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *TransferLimiter) localLimiter(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.local[caller]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local[caller] = limiter
	}
	return limiter
}
