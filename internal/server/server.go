package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/events"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	"github.com/smallbiznis/subscriber/internal/observability"
	obsmiddleware "github.com/smallbiznis/subscriber/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/subscriber/internal/observability/metrics"
	obstracing "github.com/smallbiznis/subscriber/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/subscriber/internal/payment/domain"
	"github.com/smallbiznis/subscriber/internal/ratelimit"
	settingsdomain "github.com/smallbiznis/subscriber/internal/settings/domain"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(classifyErrorForLog))
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if httpMetrics != nil {
		r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))
	}

	return r
}

// RunHTTP serves the engine for the lifetime of the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	clock           clock.Clock
	jwtSecret       []byte
	ledgerSvc       ledgerdomain.Service
	subscriptionSvc subscriptiondomain.Service
	settingsSvc     settingsdomain.Service
	paymentSvc      paymentdomain.Service
	outbox          *events.Outbox
	transferLimiter *ratelimit.TransferLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	LedgerSvc       ledgerdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	SettingsSvc     settingsdomain.Service
	PaymentSvc      paymentdomain.Service
	Outbox          *events.Outbox
	TransferLimiter *ratelimit.TransferLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		clock:           p.Clock,
		jwtSecret:       []byte(p.Cfg.AuthJWTSecret),
		ledgerSvc:       p.LedgerSvc,
		subscriptionSvc: p.SubscriptionSvc,
		settingsSvc:     p.SettingsSvc,
		paymentSvc:      p.PaymentSvc,
		outbox:          p.Outbox,
		transferLimiter: p.TransferLimiter,
	}

	svc.registerPublicRoutes()
	svc.registerAccountRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/price", s.GetPrice)
	v1.GET("/settings", s.GetSettings)
	v1.GET("/subscriptions/:id", s.GetSubscription)
	v1.GET("/accounts/:address/subscriptions", s.ListAccountSubscriptions)
	v1.GET("/accounts/:address/balance", s.GetBalance)
	v1.GET("/events", s.ListEvents)
}

func (s *Server) registerAccountRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	v1.POST("/transfers", s.TransferRateLimit(), s.CreateTransfer)
	v1.POST("/subscriptions/:id/transfer", s.TransferSubscription)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin", s.AuthRequired())

	admin.PUT("/feed", s.SetFeed)
	admin.PUT("/payment-amount", s.SetPaymentAmount)
	admin.PUT("/subscription-duration", s.SetSubscriptionDuration)
	admin.POST("/withdraw", s.Withdraw)
	admin.POST("/ownership", s.TransferOwnership)
}
