package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	smsdomain "github.com/smallbiznis/tirta/internal/sms/domain"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
)

type sendBulkSMSRequest struct {
	ConsumerIDs []string `json:"consumer_ids"`
	SendToAll   bool     `json:"send_to_all"`
	Message     string   `json:"message"`
}

func (s *Server) SendBulkSMS(c *gin.Context) {
	var req sendBulkSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.smsSvc.SendBulk(c.Request.Context(), smsdomain.SendRequest{
		ConsumerIDs: req.ConsumerIDs,
		SendToAll:   req.SendToAll,
		Message:     req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": result})
}

type listRecipientsQuery struct {
	Search string `form:"search"`
	pagination.Page
}

func (s *Server) ListSMSRecipients(c *gin.Context) {
	var query listRecipientsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.smsSvc.ListRecipients(c.Request.Context(), smsdomain.RecipientsRequest{
		Search: strings.TrimSpace(query.Search),
		Page:   query.Page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Recipients, "page_info": resp.PageInfo})
}

func (s *Server) ListSMSLogs(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	value := 0
	if limit != nil {
		value = *limit
	}

	rows, err := s.smsSvc.ListLogs(c.Request.Context(), value)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}
