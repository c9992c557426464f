package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kartikgopal01/coedit/internal/auth"
)

const callerKey = "callerId"

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using
// the provided verifier. Browsers cannot set headers on websocket upgrades,
// so an access_token query parameter is accepted as a fallback.
func AuthMiddleware(ver auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header", "code": "unauthenticated"})
			return
		}

		idToken, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthenticated", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims", "code": "unauthenticated"})
			return
		}
		sub := auth.Subject(claims)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject", "code": "unauthenticated"})
			return
		}

		c.Set("claims", claims)
		c.Set(callerKey, sub)
		c.Request = c.Request.WithContext(auth.WithCallerID(c.Request.Context(), sub))
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" {
		if q := c.Query("access_token"); q != "" {
			return q, true
		}
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CallerID returns the authenticated subject set by AuthMiddleware, or "".
func CallerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
