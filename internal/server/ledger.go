package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/subscriber/internal/observability/logger"
	"go.uber.org/zap"
)

type createTransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Data   string `json:"data"`
}

func (s *Server) GetBalance(c *gin.Context) {
	addr, err := parseAddress("address", c.Param("address"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledgerSvc.BalanceOf(c.Request.Context(), addr)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"address": addr,
		"balance": balance,
		"symbol":  s.cfg.Settlement.Symbol,
	}})
}

// CreateTransfer moves funds from the caller and notifies the recipient when
// it is a registered receiver. Sending to the handler is how a payment is made.
func (s *Server) CreateTransfer(c *gin.Context) {
	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	to, err := parseAddress("to", req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	data, err := parseHexData(req.Data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	from := callerFromContext(c)
	if err := s.ledgerSvc.TransferAndCall(ctx, from, to, amount, data); err != nil {
		logger.FromContext(ctx).Debug("transfer rejected",
			zap.String("to", to.String()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"from":   from,
		"to":     to,
		"amount": amount,
	}})
}
