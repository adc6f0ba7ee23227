package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type setFeedRequest struct {
	Feed string `json:"feed"`
}

type setPaymentAmountRequest struct {
	PaymentAmount string `json:"payment_amount"`
}

type setSubscriptionDurationRequest struct {
	SubscriptionDuration int64 `json:"subscription_duration"`
}

type withdrawRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type transferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

func (s *Server) SetFeed(c *gin.Context) {
	var req setFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.settingsSvc.SetFeed(c.Request.Context(), callerFromContext(c), req.Feed); err != nil {
		AbortWithError(c, err)
		return
	}
	s.GetSettings(c)
}

func (s *Server) SetPaymentAmount(c *gin.Context) {
	var req setPaymentAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := parseAmount("payment_amount", req.PaymentAmount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.settingsSvc.SetPaymentAmount(c.Request.Context(), callerFromContext(c), amount); err != nil {
		AbortWithError(c, err)
		return
	}
	s.GetSettings(c)
}

func (s *Server) SetSubscriptionDuration(c *gin.Context) {
	var req setSubscriptionDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.settingsSvc.SetSubscriptionDuration(c.Request.Context(), callerFromContext(c), req.SubscriptionDuration); err != nil {
		AbortWithError(c, err)
		return
	}
	s.GetSettings(c)
}

func (s *Server) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.paymentSvc.Withdraw(c.Request.Context(), callerFromContext(c), amount, recipient); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"recipient": recipient,
		"amount":    amount,
	}})
}

func (s *Server) TransferOwnership(c *gin.Context) {
	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	newOwner, err := parseAddress("new_owner", req.NewOwner)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.settingsSvc.TransferOwnership(c.Request.Context(), callerFromContext(c), newOwner); err != nil {
		AbortWithError(c, err)
		return
	}
	s.GetSettings(c)
}
