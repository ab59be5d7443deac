package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/auditcontext"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	if s.authzSvc == nil {
		return ErrForbidden
	}
	ctx := c.Request.Context()
	role := auditcontext.RoleFromContext(ctx)
	if role == "" {
		return ErrUnauthorized
	}
	return s.authzSvc.Authorize(ctx, role, strings.TrimSpace(object), strings.TrimSpace(action))
}
