package oracle

import (
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/smallbiznis/subscriber/internal/oracle/adapters"
	"github.com/smallbiznis/subscriber/internal/oracle/adapters/binance"
	"github.com/smallbiznis/subscriber/internal/oracle/adapters/static"
	oracledomain "github.com/smallbiznis/subscriber/internal/oracle/domain"
	"github.com/smallbiznis/subscriber/internal/oracle/service"
	"go.uber.org/fx"
)

var Module = fx.Module("oracle.service",
	fx.Provide(NewRegistry),
	fx.Provide(fx.Annotate(
		service.NewResolver,
		fx.As(fx.Self()),
		fx.As(new(oracledomain.RateSource)),
	)),
)

func NewRegistry(cfg config.Config) *adapters.Registry {
	return adapters.NewRegistry(
		static.NewFactory(),
		binance.NewFactory(cfg.Oracle.BinanceBaseURL),
	)
}
