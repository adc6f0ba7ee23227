package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(func(client *redis.Client) *TokenBucket {
		if client == nil {
			return nil
		}
		return NewTokenBucket(client)
	}),
	fx.Provide(NewTransferLimiter),
)
