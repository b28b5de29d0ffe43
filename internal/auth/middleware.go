package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"farmtrace/marketplace-backend/internal/viewer"
)

const viewerKey = "viewer"

// RequireViewer authenticates the bearer token and stores the viewer in the
// gin context. Browsers cannot set headers on WebSocket upgrades, so the
// token may also come from the access_token query parameter.
func RequireViewer(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		v, err := tokens.Validate(raw)
		if err != nil {
			msg := ErrInvalidToken.Error()
			if errors.Is(err, ErrTokenExpired) {
				msg = ErrTokenExpired.Error()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		SetViewer(c, v)
		c.Next()
	}
}

// SetViewer stores v for downstream handlers
func SetViewer(c *gin.Context, v viewer.Viewer) {
	c.Set(viewerKey, v)
}

// ViewerFrom returns the authenticated viewer
func ViewerFrom(c *gin.Context) (viewer.Viewer, bool) {
	value, ok := c.Get(viewerKey)
	if !ok {
		return nil, false
	}
	v, ok := value.(viewer.Viewer)
	return v, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
