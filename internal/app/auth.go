package app

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddlewareFromEnv guards host-side routes with bearer tokens: either
// a member of STATIC_TOKENS or an HMAC JWT signed with JWT_HMAC_SECRET.
// With neither configured the middleware is permissive, which suits the
// single-host demo deployment.
func AuthMiddlewareFromEnv() gin.HandlerFunc {
	staticTokens := strings.Split(strings.TrimSpace(os.Getenv("STATIC_TOKENS")), ",")
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_HMAC_SECRET"))

	open := jwtSecret == "" && strings.TrimSpace(os.Getenv("STATIC_TOKENS")) == ""

	return func(c *gin.Context) {
		if open {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		if jwtSecret != "" {
			_, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenMalformed
				}
				return []byte(jwtSecret), nil
			}, jwt.WithLeeway(5*time.Second))
			if err == nil {
				c.Next()
				return
			}
		}

		for _, t := range staticTokens {
			if t = strings.TrimSpace(t); t != "" && tokenStr == t {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}
