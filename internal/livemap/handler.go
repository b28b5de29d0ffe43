package livemap

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/auth"
	"farmtrace/marketplace-backend/internal/mapsync"
	"farmtrace/marketplace-backend/internal/viewer"
)

// Handler exposes the live map over HTTP
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes registers map routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	m := router.Group("/map")
	{
		m.GET("/layers", h.listLayers)
		m.GET("/ws", h.connect)
		m.GET("/sessions", h.listSessions)
	}
}

func (h *Handler) listLayers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"layers": mapsync.TileSources()})
}

func (h *Handler) connect(c *gin.Context) {
	v, ok := auth.ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	// the upgrader writes its own error response
	if _, err := h.manager.HandleConnection(c.Writer, c.Request, v); err != nil {
		h.logger.Warn("Live map connection failed", zap.Error(err))
	}
}

func (h *Handler) listSessions(c *gin.Context) {
	v, ok := auth.ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if admin, isAdmin := v.(viewer.Admin); !isAdmin || !admin.IsCentral() {
		c.JSON(http.StatusForbidden, gin.H{"error": "central administrators only"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": h.manager.Sessions(), "count": h.manager.SessionCount()})
}
