package products

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/auth"
	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/clock"
	"farmtrace/marketplace-backend/internal/products/export"
	"farmtrace/marketplace-backend/internal/verification"
	"farmtrace/marketplace-backend/internal/viewer"
	"farmtrace/marketplace-backend/internal/visibility"
)

// ImageResolver turns stored image references into URLs a browser can load
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type Handler struct {
	catalog  *catalog.Service
	verifier *verification.Service
	filter   *visibility.Filter
	images   ImageResolver
	clock    clock.Clock
	logger   *zap.Logger
}

// NewHandler creates the product handler. images may be nil.
func NewHandler(cat *catalog.Service, verifier *verification.Service, filter *visibility.Filter, images ImageResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalog:  cat,
		verifier: verifier,
		filter:   filter,
		images:   images,
		clock:    clock.Real(),
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	{
		products.GET("", h.List)
		products.POST("", h.Submit)
		products.GET("/:id", h.Get)
		products.POST("/:id/timeline", h.AppendTimeline)
		products.POST("/:id/decision", h.Decide)
		products.GET("/:id/history", h.History)
		products.GET("/:id/traceability.pdf", h.Traceability)
	}
}

// List returns the viewer's visible set. Farmers asking for mine=true get
// their own products in any status.
func (h *Handler) List(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	var criteria visibility.Criteria
	if err := c.ShouldBindQuery(&criteria); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		out []catalog.Product
		err error
	)
	if farmer, isFarmer := v.(viewer.Farmer); isFarmer && c.Query("mine") == "true" {
		var own []catalog.Product
		own, err = h.catalog.ListByFarmer(c.Request.Context(), farmer.UserID)
		out = visibility.Narrow(own, criteria)
	} else {
		var all []catalog.Product
		all, err = h.catalog.Snapshot(c.Request.Context())
		out = h.filter.Visible(all, v, criteria)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	for i := range out {
		h.resolveImages(c.Request.Context(), &out[i])
	}
	c.JSON(http.StatusOK, gin.H{"products": out, "count": len(out)})
}

func (h *Handler) Get(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	p, ok := h.visibleProduct(c, v)
	if !ok {
		return
	}
	h.resolveImages(c.Request.Context(), p)
	c.JSON(http.StatusOK, p)
}

// Submit stores a farmer's product as PENDING. The farmer identity comes from
// the token, never from the body.
func (h *Handler) Submit(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	farmer, isFarmer := v.(viewer.Farmer)
	if !isFarmer {
		c.JSON(http.StatusForbidden, gin.H{"error": "only farmers may submit products"})
		return
	}

	var req catalog.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.FarmerID = farmer.UserID
	req.FarmerName = farmer.Name

	p, err := h.catalog.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) AppendTimeline(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	farmer, isFarmer := v.(viewer.Farmer)
	if !isFarmer {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owning farmer may add timeline entries"})
		return
	}

	var entry catalog.TimelineEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.catalog.AppendTimeline(c.Request.Context(), c.Param("id"), farmer.UserID, entry)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Decide(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	// non-admins get 403 whatever the body holds
	if _, isAdmin := v.(viewer.Admin); !isAdmin {
		h.fail(c, verification.ErrPermissionDenied)
		return
	}
	var req verification.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.verifier.Decide(c.Request.Context(), c.Param("id"), verification.NormalizeStatus(req.Status), req.Note, v)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// History returns the decision trail of a product within the admin's jurisdiction
func (h *Handler) History(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	if _, isAdmin := v.(viewer.Admin); !isAdmin {
		h.fail(c, verification.ErrPermissionDenied)
		return
	}
	if _, ok := h.visibleProduct(c, v); !ok {
		return
	}
	history, err := h.verifier.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Traceability renders the product's traceability sheet as PDF
func (h *Handler) Traceability(c *gin.Context) {
	v, ok := requireViewer(c)
	if !ok {
		return
	}
	p, ok := h.visibleProduct(c, v)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTraceability(&buf, p, h.clock.Now()); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="traceability-%s.pdf"`, p.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// visibleProduct loads the :id product and answers 404 when the viewer may
// not see it, so hidden products are indistinguishable from missing ones
func (h *Handler) visibleProduct(c *gin.Context, v viewer.Viewer) (*catalog.Product, bool) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if !h.canSee(v, p) {
		h.fail(c, catalog.ErrProductNotFound)
		return nil, false
	}
	return p, true
}

func (h *Handler) canSee(v viewer.Viewer, p *catalog.Product) bool {
	if farmer, ok := v.(viewer.Farmer); ok && p.FarmerID == farmer.UserID {
		return true
	}
	return h.filter.Allows(v, p)
}

func (h *Handler) resolveImages(ctx context.Context, p *catalog.Product) {
	if h.images == nil {
		return
	}
	for _, refs := range [][]string{p.Images.Product, p.Images.Certificate, p.Images.Land} {
		for i, ref := range refs {
			url, err := h.images.Resolve(ctx, ref)
			if err != nil {
				h.logger.Warn("Failed to resolve image", zap.String("product_id", p.ID), zap.Error(err))
				continue
			}
			refs[i] = url
		}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Product request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps domain errors onto HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, verification.ErrPermissionDenied), errors.Is(err, catalog.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, verification.ErrInvalidStatus), errors.Is(err, catalog.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, verification.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func requireViewer(c *gin.Context) (viewer.Viewer, bool) {
	v, ok := auth.ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return v, true
}
