package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
)

type listAuditTrailsQuery struct {
	PageToken   string `form:"page_token"`
	PageSize    int    `form:"page_size"`
	Action      string `form:"action"`
	PerformedBy string `form:"performed_by"`
}

func (s *Server) ListAuditTrails(c *gin.Context) {
	var query listAuditTrailsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditTrailRequest{
		PageToken:   strings.TrimSpace(query.PageToken),
		PageSize:    query.PageSize,
		Action:      strings.TrimSpace(query.Action),
		PerformedBy: strings.TrimSpace(query.PerformedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditTrails, "page_info": resp.CursorPageInfo})
}
