package payment

import (
	ledgerdomain "github.com/smallbiznis/subscriber/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/subscriber/internal/payment/domain"
	"github.com/smallbiznis/subscriber/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(service.NewService),
	fx.Invoke(RegisterReceiver),
)

// RegisterReceiver routes transfers addressed to the handler into its callback.
func RegisterReceiver(ledger ledgerdomain.Service, handler paymentdomain.Service) {
	ledger.RegisterReceiver(handler.Address(), handler)
}
