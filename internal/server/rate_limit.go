package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/subscriber/internal/observability/logger"
	"go.uber.org/zap"
)

// TransferRateLimit throttles transfer submissions per authenticated caller.
func (s *Server) TransferRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.transferLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		caller := callerFromContext(c)
		allowed, retryAfter, err := s.transferLimiter.Allow(ctx, caller.String())
		if err != nil {
			logger.FromContext(ctx).Warn("transfer rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			logger.FromContext(ctx).Warn("transfer rate limit exceeded", zap.String("caller", caller.String()))
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
