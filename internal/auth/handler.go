package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farmtrace/marketplace-backend/internal/viewer"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me returns the claims of the authenticated viewer
func (h *Handler) Me(c *gin.Context) {
	v, ok := ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewer": viewer.ToClaims(v)})
}
