package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parkodev/backoffice_backend/utils"
)

// SessionMiddleware resolves the calling business and user from request
// headers and stores them on the request context. Token issuance happens
// upstream; here the headers are trusted once present.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Request.Header.Get("X-Business-Id")
		if businessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "business id is required"})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		if userHeader := c.Request.Header.Get("X-User-Id"); userHeader != "" {
			userId, err := strconv.Atoi(userHeader)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
				c.Abort()
				return
			}
			ctx = utils.SetUserIdInContext(ctx, userId)
		}
		if userName := c.Request.Header.Get("X-User-Name"); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}

		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
