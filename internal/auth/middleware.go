package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies an access token and injects identity into
// request context.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.PropertyIDs)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("property_ids", claims.PropertyIDs)

		c.Next()
	}
}

// RequirePropertyParam checks that the identity may act on the property
// named by the route parameter. Mount after RequireAccessToken.
func RequirePropertyParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		propertyID := c.Param(param)
		if propertyID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "property id required"})
			return
		}
		if !AuthorizedForProperty(c.Request.Context(), propertyID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "property not accessible"})
			return
		}
		c.Next()
	}
}
