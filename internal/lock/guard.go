package lock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrBusy is returned while another holder is inside the guard.
var ErrBusy = errors.New("guard busy")

// Guard admits one holder at a time. The in-process flag catches nested and
// concurrent entry on this replica; the optional Redis lock extends that to
// every replica sharing the key.
type Guard struct {
	busy   atomic.Bool
	locker *Locker
	key    string
	ttl    time.Duration
	log    *zap.Logger
}

func NewGuard(locker *Locker, key string, ttl time.Duration, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{locker: locker, key: key, ttl: ttl, log: log}
}

// Enter claims the guard. The returned func releases it and must be called exactly once.
func (g *Guard) Enter(ctx context.Context) (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	if g.locker == nil {
		return func() { g.busy.Store(false) }, nil
	}

	lease, err := g.locker.Acquire(ctx, g.key, g.ttl)
	if err != nil {
		g.busy.Store(false)
		if errors.Is(err, ErrHeld) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire %s: %w", g.key, err)
	}

	return func() {
		if err := g.locker.Release(context.WithoutCancel(ctx), lease); err != nil {
			g.log.Warn("guard release failed", zap.String("key", g.key), zap.Error(err))
		}
		g.busy.Store(false)
	}, nil
}
