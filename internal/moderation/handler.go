package moderation

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/auth"
	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/clock"
	"farmtrace/marketplace-backend/internal/products/export"
	"farmtrace/marketplace-backend/internal/viewer"
	"farmtrace/marketplace-backend/internal/visibility"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the admin dashboard: the pending queue and spreadsheet export
type Handler struct {
	catalog *catalog.Service
	filter  *visibility.Filter
	clock   clock.Clock
	logger  *zap.Logger
}

func NewHandler(cat *catalog.Service, filter *visibility.Filter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{catalog: cat, filter: filter, clock: clock.Real(), logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	m := rg.Group("/moderation")
	{
		m.GET("/queue", h.Queue)
		m.GET("/export.xlsx", h.Export)
		m.GET("/export.csv", h.ExportCSV)
	}
}

// Queue lists pending products inside the admin's jurisdiction, newest first
func (h *Handler) Queue(c *gin.Context) {
	admin, criteria, ok := h.adminRequest(c)
	if !ok {
		return
	}
	visible, err := h.visible(c, admin, criteria)
	if err != nil {
		return
	}
	queue := PendingOnly(visible)
	c.JSON(http.StatusOK, gin.H{"products": queue, "count": len(queue)})
}

// Export writes the admin's visible set as a spreadsheet
func (h *Handler) Export(c *gin.Context) {
	admin, criteria, ok := h.adminRequest(c)
	if !ok {
		return
	}
	visible, err := h.visible(c, admin, criteria)
	if err != nil {
		return
	}

	var buf bytes.Buffer
	if err := export.ExportProducts(&buf, visible); err != nil {
		h.logger.Error("Failed to export products", zap.String("admin_id", admin.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export products"})
		return
	}
	filename := fmt.Sprintf("products-%s.xlsx", h.clock.Now().Format("20060102-1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportCSV writes the admin's visible set as CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	admin, criteria, ok := h.adminRequest(c)
	if !ok {
		return
	}
	visible, err := h.visible(c, admin, criteria)
	if err != nil {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteProductsCSV(&buf, visible, export.DefaultCSVOptions()); err != nil {
		h.logger.Error("Failed to export products", zap.String("admin_id", admin.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export products"})
		return
	}
	filename := fmt.Sprintf("products-%s.csv", h.clock.Now().Format("20060102-1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) adminRequest(c *gin.Context) (viewer.Admin, visibility.Criteria, bool) {
	var criteria visibility.Criteria
	v, ok := auth.ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return viewer.Admin{}, criteria, false
	}
	admin, isAdmin := v.(viewer.Admin)
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrators only"})
		return viewer.Admin{}, criteria, false
	}
	if err := c.ShouldBindQuery(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return viewer.Admin{}, criteria, false
	}
	return admin, criteria, true
}

func (h *Handler) visible(c *gin.Context, admin viewer.Admin, criteria visibility.Criteria) ([]catalog.Product, error) {
	all, err := h.catalog.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, err
	}
	return h.filter.Visible(all, admin, criteria), nil
}

// PendingOnly keeps products still awaiting a decision, preserving order
func PendingOnly(products []catalog.Product) []catalog.Product {
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if p.Verification.Status == catalog.StatusPending {
			out = append(out, p)
		}
	}
	return out
}
