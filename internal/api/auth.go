package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// Bearer-token auth for the §6 operator surface: POST /analyze, its
// result poll, and the watchlist CRUD routes all sit behind this. /healthz
// and the websocket progress stream (internal/api/websocket.go) are public
// — a caller needs to see the service is up, and a progress event alone
// leaks nothing a request id doesn't already imply.

// AuthMiddleware returns a Gin middleware that validates bearer tokens.
// If API_AUTH_TOKEN is not set, all requests are allowed (dev mode).
// WARNING: in GIN_MODE=release, leaving API_AUTH_TOKEN unset exposes all
// protected routes to the public internet. Always set a strong token in prod.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("API_AUTH_TOKEN")

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] API_AUTH_TOKEN is not set in release mode. " +
			"All protected endpoints are publicly accessible. " +
			"Set API_AUTH_TOKEN in your environment to enforce authentication.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <API_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		// Constant-time comparison prevents timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// unsafeTokenPlaceholders are values an operator might leave behind from a
// copy-pasted .env.example rather than generating a real secret.
var unsafeTokenPlaceholders = map[string]bool{
	"":         true,
	"changeme": true,
	"password": true,
	"secret":   true,
	"test":     true,
}

// UnsafeDefaultCredential reports whether API_AUTH_TOKEN is unset or set to
// an obviously default/placeholder value, for the §6 health-endpoint check
// that unsafe defaults "must be detected and reported." Only the auth
// token is checked; the rate limiter's configuration is not inspected.
func UnsafeDefaultCredential() bool {
	return unsafeTokenPlaceholders[os.Getenv("API_AUTH_TOKEN")]
}
