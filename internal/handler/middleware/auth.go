package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "flashdeal/dealhub/pkg/jwt"
	"flashdeal/dealhub/pkg/response"
)

// ContextKeyUserID is the gin context key under which the authenticated user
// id travels. The id is always passed explicitly through the request context;
// there is no ambient per-thread user state.
const ContextKeyUserID = "user_id"

func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			response.Unauthorized(c, "invalid token subject")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}
