package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	"github.com/smallbiznis/tirta/pkg/db/pagination"
)

type listNotificationsQuery struct {
	Search   string `form:"search"`
	Archived string `form:"archived"`
	pagination.Page
}

func (s *Server) ListNotifications(c *gin.Context) {
	var query listNotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	archived, err := parseOptionalBool(query.Archived)
	if err != nil {
		AbortWithError(c, newValidationError("archived", "invalid_archived", "invalid archived"))
		return
	}

	req := notificationdomain.ListRequest{
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page.Page,
		PageSize: query.PageSize,
	}
	if archived != nil {
		req.Archived = *archived
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Notifications, "page_info": resp.PageInfo})
}

func (s *Server) ListConsumerNotifications(c *gin.Context) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.notificationSvc.ListForConsumer(c.Request.Context(), strings.TrimSpace(c.Param("id")), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Notifications, "page_info": resp.PageInfo})
}

func (s *Server) CreateNotification(c *gin.Context) {
	var req notificationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	notification, err := s.notificationSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": notification})
}

func (s *Server) BroadcastNotification(c *gin.Context) {
	var req notificationdomain.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.notificationSvc.BroadcastAll(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	if err := s.notificationSvc.MarkAsRead(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ArchiveNotification(c *gin.Context) {
	if err := s.notificationSvc.Archive(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) UnarchiveNotification(c *gin.Context) {
	if err := s.notificationSvc.Unarchive(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteNotification(c *gin.Context) {
	if err := s.notificationSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
