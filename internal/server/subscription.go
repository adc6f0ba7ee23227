package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/subscriber/internal/subscription/domain"
	"github.com/smallbiznis/subscriber/pkg/account"
)

type subscriptionResponse struct {
	ID        uint64          `json:"id"`
	Holder    account.Address `json:"holder"`
	ExpiresAt time.Time       `json:"expires_at"`
	Active    bool            `json:"active"`
}

type transferSubscriptionRequest struct {
	To string `json:"to"`
}

func (s *Server) GetSubscription(c *gin.Context) {
	id, err := parseSubscriptionID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.subscriptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.toSubscriptionResponse(*sub)})
}

func (s *Server) ListAccountSubscriptions(c *gin.Context) {
	holder, err := parseAddress("address", c.Param("address"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subs, err := s.subscriptionSvc.ListByHolder(c.Request.Context(), holder)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, s.toSubscriptionResponse(sub))
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// TransferSubscription moves a record held by the caller to another account.
func (s *Server) TransferSubscription(c *gin.Context) {
	id, err := parseSubscriptionID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req transferSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.subscriptionSvc.Transfer(c.Request.Context(), callerFromContext(c), to, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "holder": to}})
}

func (s *Server) toSubscriptionResponse(sub subscriptiondomain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        sub.ID,
		Holder:    sub.Holder,
		ExpiresAt: sub.ExpiresAt.UTC(),
		Active:    sub.IsActive(s.clock.Now()),
	}
}
