package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "user_email"
	ctxRole   = "user_role"
)

// AuthMiddleware validates the bearer token and loads the caller's
// identity into the request context. Refresh tokens are rejected here;
// they are only good for the token exchange endpoint.
func AuthMiddleware(accessTokenSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "missing or malformed Authorization header")
			return
		}

		claims, err := ValidateToken(token, accessTokenSecret)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				abortUnauthorized(c, "token expired")
			case errors.Is(err, ErrInvalidTokenType):
				abortUnauthorized(c, "invalid token type")
			default:
				abortUnauthorized(c, "invalid token")
			}
			return
		}
		if claims.TokenType != "access" {
			abortUnauthorized(c, "access token required")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole gates a route group on the role carried by the token.
// Must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := c.Get(ctxRole)
		if !ok {
			abortUnauthorized(c, "not authenticated")
			return
		}
		if r, _ := got.(string); r != role {
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated caller's id, if any.
func GetUserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: msg})
	c.Abort()
}
