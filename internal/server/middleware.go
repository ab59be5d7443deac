package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/auditcontext"
)

// Set by the upstream auth layer.
const (
	HeaderOperatorName = "X-Operator-Name"
	HeaderOperatorRole = "X-Operator-Role"
)

// OperatorRequired puts the operator identity on the request context. A missing name resolves to "Unknown".
func (s *Server) OperatorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderOperatorRole)))
		if role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		name := strings.TrimSpace(c.GetHeader(HeaderOperatorName))

		ctx := auditcontext.WithActor(c.Request.Context(), name, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
