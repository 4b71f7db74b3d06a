package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const sessionCookie = "steam_session"

// SessionResolver turns a session token into the authenticated steamID.
// Session issuance lives outside this service.
type SessionResolver interface {
	ResolveSteamID(ctx context.Context, sessionToken string) (string, error)
}

// SessionAuth resolves the caller's steamID from the session cookie or a
// bearer token and stores it in the request context. It never aborts; guards
// that need an identity use RequireAuth.
func SessionAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if cookie, err := c.Cookie(sessionCookie); err == nil {
			token = cookie
		} else if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}

		if token != "" {
			if steamID, err := resolver.ResolveSteamID(c.Request.Context(), token); err == nil && steamID != "" {
				c.Set("steam_id", steamID)
			}
		}

		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSteamID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Steam session required"})
			return
		}

		c.Next()
	}
}

// RequireStaff restricts a route to the configured staff steamIDs.
func RequireStaff(staffIDs []string) gin.HandlerFunc {
	staff := make(map[string]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		if id = strings.TrimSpace(id); id != "" {
			staff[id] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		steamID := GetSteamID(c)
		if steamID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Steam session required"})
			return
		}

		if _, ok := staff[steamID]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Staff access required"})
			return
		}

		c.Next()
	}
}

// RequireSecret guards machine endpoints (cron, fulfillment callbacks) with a
// shared secret passed as ?secret= or a bearer token.
func RequireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Endpoint secret not configured"})
			return
		}

		provided := c.Query("secret")
		if provided == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				provided = strings.TrimPrefix(h, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
			return
		}

		c.Next()
	}
}

// GetSteamID returns the authenticated steamID, or empty.
func GetSteamID(c *gin.Context) string {
	if v, exists := c.Get("steam_id"); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
