package migration

import (
	"context"

	"github.com/smallbiznis/subscriber/internal/clock"
	"github.com/smallbiznis/subscriber/internal/config"
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedParams struct {
	fx.In

	DB         *gorm.DB
	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	LedgerRepo ledgerdomain.Repository
	Ledger     ledgerdomain.Service
}

var Module = fx.Module("migrations",
	fx.Invoke(func(p seedParams) error {
		if err := Migrate(p.DB); err != nil {
			return err
		}

		ctx := context.Background()
		if err := SeedSettings(ctx, p.DB, p.Config, p.Clock.Now()); err != nil {
			return err
		}
		if err := SeedGenesis(ctx, p.DB, p.Config, p.LedgerRepo, p.Ledger); err != nil {
			return err
		}

		p.Log.Named("migrations").Info("schema ready", zap.String("dialect", p.DB.Dialector.Name()))
		return nil
	}),
)
