package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenParser turns a bearer token into the chat user id it was issued for.
type TokenParser interface {
	ParseToken(tokenString string) (int64, error)
}

// AdminChecker reports whether a chat user currently belongs to the admin group.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

type AuthMiddleware struct {
	tokens TokenParser
	admins AdminChecker
}

func NewAuthMiddleware(tokens TokenParser, admins AdminChecker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, admins: admins}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}

		userID, err := m.tokens.ParseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", strconv.FormatInt(userID, 10))
		c.Next()
	}
}

// RequireAdmin re-checks group membership on every request, so a demoted
// admin loses access once the membership cache expires.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			c.Abort()
			return
		}

		userID, err := strconv.ParseInt(raw.(string), 10, 64)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			c.Abort()
			return
		}

		if !m.admins.IsAdmin(c.Request.Context(), userID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
