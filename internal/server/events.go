package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/subscriber/internal/events"
	"github.com/smallbiznis/subscriber/pkg/db/pagination"
)

func (s *Server) ListEvents(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Type string `form:"type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.outbox.List(c.Request.Context(), events.ListRequest{
		Type:       strings.TrimSpace(query.Type),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Events,
		"page_info": resp.PageInfo,
	})
}
