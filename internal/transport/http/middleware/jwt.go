package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"askcampus/internal/model"
	"askcampus/internal/pkg/jwtutil"
	"askcampus/internal/transport/http/response"
)

const ContextUserKey = "auth_user"

// AuthJWT validates the bearer token and stashes the authenticated user in
// the context. Identity and role come from the signed claims; handlers never
// hit the database just to know who is calling.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, &model.User{
			ID:       claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
		})
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by AuthJWT, or nil on
// unauthenticated routes.
func CurrentUser(c *gin.Context) *model.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*model.User)
	if !ok {
		return nil
	}
	return user
}
