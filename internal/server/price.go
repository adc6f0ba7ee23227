package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/subscriber/pkg/account"
)

type priceResponse struct {
	Price    decimal.Decimal `json:"price"`
	Symbol   string          `json:"symbol"`
	Decimals int32           `json:"decimals"`
}

type settingsResponse struct {
	Owner                account.Address `json:"owner"`
	Feed                 string          `json:"feed"`
	PaymentAmount        decimal.Decimal `json:"payment_amount"`
	SubscriptionDuration int64           `json:"subscription_duration"`
	SettlementSymbol     string          `json:"settlement_symbol"`
	SettlementDecimals   int32           `json:"settlement_decimals"`
	Handler              account.Address `json:"handler"`
	Registry             account.Address `json:"registry_authority"`
}

// GetPrice quotes what a payment made now must carry.
func (s *Server) GetPrice(c *gin.Context) {
	price, err := s.paymentSvc.Price(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": priceResponse{
		Price:    price,
		Symbol:   s.cfg.Settlement.Symbol,
		Decimals: s.cfg.Settlement.Decimals,
	}})
}

func (s *Server) GetSettings(c *gin.Context) {
	current, err := s.settingsSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settingsResponse{
		Owner:                current.Owner,
		Feed:                 current.Feed,
		PaymentAmount:        current.PaymentAmount,
		SubscriptionDuration: current.SubscriptionDuration,
		SettlementSymbol:     s.cfg.Settlement.Symbol,
		SettlementDecimals:   s.cfg.Settlement.Decimals,
		Handler:              s.paymentSvc.Address(),
		Registry:             s.subscriptionSvc.Authority(),
	}})
}
