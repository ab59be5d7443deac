package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	overduedomain "github.com/smallbiznis/tirta/internal/overdue/domain"
)

type listOverdueQuery struct {
	Search   string `form:"search"`
	Sort     string `form:"sort"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

func (s *Server) ListOverdue(c *gin.Context) {
	var query listOverdueQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.overdueSvc.List(c.Request.Context(), overduedomain.ListRequest{
		Search:   strings.TrimSpace(query.Search),
		Sort:     strings.TrimSpace(query.Sort),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Rows, "sort": resp.Sort, "page_info": resp.PageInfo})
}

func (s *Server) GetOverdueDetails(c *gin.Context) {
	row, err := s.overdueSvc.Details(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": row})
}

func (s *Server) ListDisconnectionHistory(c *gin.Context) {
	events, err := s.disconnectSvc.History(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) Disconnect(c *gin.Context) {
	result, err := s.disconnectSvc.Disconnect(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) Reconnect(c *gin.Context) {
	result, err := s.disconnectSvc.Reconnect(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) NotifyConsumer(c *gin.Context) {
	result, err := s.disconnectSvc.Notify(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
