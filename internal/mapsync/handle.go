package mapsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/metrics"
)

var (
	ErrMapSurfaceUnavailable = errors.New("map surface unavailable")
	ErrMapDisposed           = errors.New("map handle disposed")
)

const (
	DefaultLocateTimeout = 10 * time.Second
	DefaultLocateZoom    = 15
)

// Options configure a map handle. Callbacks run with the handle locked and
// must not call back into it.
type Options struct {
	TileLayer      TileLayer
	OnMarkerSelect func(DetailPanel)
	OnPanelClosed  func()
	Locator        LocationProvider
	LocateTimeout  time.Duration
	LocateZoom     int
	OnNotice       func(message string)
	OnLocateState  func(LocateState)

	// ResolveImage rewrites image references shown in the detail panel
	ResolveImage func(string) string
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

type marker struct {
	id       MarkerID
	position LatLng
}

// Handle owns one map surface from Render until Dispose
type Handle struct {
	mu       sync.Mutex
	surface  Surface
	opts     Options
	disposed bool

	layer   TileLayer
	layerID LayerID

	products map[string]catalog.Product
	markers  map[string]marker
	selected *DetailPanel

	locationMarker MarkerID
	locateState    LocateState
	locateGen      uint64
	locateCancel   context.CancelFunc
}

// Render creates the map surface in container, attaches the initial tile layer
// and places one marker per product. Nothing is drawn if any step fails.
func Render(container Container, products []catalog.Product, opts Options) (*Handle, error) {
	if opts.TileLayer == "" {
		opts.TileLayer = LayerStandard
	}
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = DefaultLocateTimeout
	}
	if opts.LocateZoom <= 0 {
		opts.LocateZoom = DefaultLocateZoom
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	src, err := LookupTileLayer(opts.TileLayer)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, fmt.Errorf("%w: no container", ErrMapSurfaceUnavailable)
	}
	surface, err := container.NewSurface(SurfaceOptions{Center: DefaultCenter, Zoom: DefaultZoom})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapSurfaceUnavailable, err)
	}
	if surface == nil {
		return nil, fmt.Errorf("%w: container returned no surface", ErrMapSurfaceUnavailable)
	}
	layerID, err := surface.AddTileLayer(src)
	if err != nil {
		_ = surface.Close()
		return nil, fmt.Errorf("%w: tile layer: %v", ErrMapSurfaceUnavailable, err)
	}

	h := &Handle{
		surface:     surface,
		opts:        opts,
		layer:       opts.TileLayer,
		layerID:     layerID,
		products:    make(map[string]catalog.Product),
		markers:     make(map[string]marker),
		locateState: LocateIdle,
	}
	if err := h.SetProducts(products); err != nil {
		_ = h.Dispose()
		return nil, err
	}
	return h, nil
}

// Layer returns the attached tile layer
func (h *Handle) Layer() TileLayer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.layer
}

// SetLayer swaps the base tiles. Exactly one tile layer stays attached; if the
// new one cannot be attached the previous one is restored.
func (h *Handle) SetLayer(layer TileLayer) error {
	src, err := LookupTileLayer(layer)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrMapDisposed
	}
	if layer == h.layer && h.layerID != "" {
		return nil
	}

	// layerID is empty when an earlier switch could neither attach nor restore
	if h.layerID != "" {
		if err := h.surface.RemoveLayer(h.layerID); err != nil {
			return fmt.Errorf("failed to remove %s layer: %w", h.layer, err)
		}
		h.layerID = ""
	}
	id, err := h.surface.AddTileLayer(src)
	if err != nil {
		if layer != h.layer {
			prev, _ := LookupTileLayer(h.layer)
			if restored, rerr := h.surface.AddTileLayer(prev); rerr == nil {
				h.layerID = restored
			}
		}
		return fmt.Errorf("failed to attach %s layer: %w", layer, err)
	}
	h.layer = layer
	h.layerID = id
	return nil
}

// SetProducts reconciles markers with products by id: markers of products
// that left the set or moved are removed, missing ones are added. Afterwards
// there is exactly one marker per product at its stored coordinates.
func (h *Handle) SetProducts(products []catalog.Product) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrMapDisposed
	}

	next := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		next[p.ID] = p.Clone()
	}

	added, removed := 0, 0
	for id, m := range h.markers {
		p, keep := next[id]
		if keep && m.position == positionOf(&p) {
			continue
		}
		if err := h.surface.RemoveMarker(m.id); err != nil {
			h.retainMarked(next)
			return fmt.Errorf("failed to remove marker of %s: %w", id, err)
		}
		delete(h.markers, id)
		removed++
	}

	for _, p := range products {
		if _, ok := h.markers[p.ID]; ok {
			continue
		}
		productID := p.ID
		pos := positionOf(&p)
		markerID, err := h.surface.AddMarker(MarkerSpec{
			Position:  pos,
			Kind:      MarkerProduct,
			ProductID: productID,
			Title:     p.Name,
			OnClick:   func() { _ = h.Select(productID) },
		})
		if err != nil {
			h.retainMarked(next)
			return fmt.Errorf("failed to add marker of %s: %w", productID, err)
		}
		h.markers[productID] = marker{id: markerID, position: pos}
		added++
	}

	h.products = next
	if h.selected != nil {
		if p, ok := next[h.selected.ProductID]; ok {
			panel := newDetailPanel(&p, h.opts.ResolveImage)
			h.selected = &panel
		}
	}

	h.opts.Metrics.ObserveReconcile(added, removed)
	h.opts.Logger.Debug("Markers reconciled",
		zap.Int("visible", len(next)),
		zap.Int("added", added),
		zap.Int("removed", removed))
	return nil
}

// retainMarked keeps products in step with markers after a partial
// reconciliation: a product stays selectable only while its marker exists,
// with the newest data for markers already at their new position. Callers hold h.mu.
func (h *Handle) retainMarked(next map[string]catalog.Product) {
	products := make(map[string]catalog.Product, len(h.markers))
	for id, m := range h.markers {
		if p, ok := next[id]; ok && m.position == positionOf(&p) {
			products[id] = p
		} else if p, ok := h.products[id]; ok {
			products[id] = p
		}
	}
	h.products = products
}

// MarkerCount returns the number of product markers, excluding transient ones
func (h *Handle) MarkerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.markers)
}

// Select opens the detail panel for a product currently on the map,
// replacing any previous selection
func (h *Handle) Select(productID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrMapDisposed
	}
	p, ok := h.products[productID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	panel := newDetailPanel(&p, h.opts.ResolveImage)
	h.selected = &panel
	if h.opts.OnMarkerSelect != nil {
		h.opts.OnMarkerSelect(panel)
	}
	return nil
}

// ClosePanel clears the selection. Markers are untouched.
func (h *Handle) ClosePanel() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrMapDisposed
	}
	if h.selected == nil {
		return nil
	}
	h.selected = nil
	if h.opts.OnPanelClosed != nil {
		h.opts.OnPanelClosed()
	}
	return nil
}

// Panel returns the open detail panel, if any
func (h *Handle) Panel() (DetailPanel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.selected == nil {
		return DetailPanel{}, false
	}
	return *h.selected, true
}

// Dispose cancels a pending locate and releases the surface with every layer
// and marker on it. Calling it again is a no-op.
func (h *Handle) Dispose() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil
	}
	h.disposed = true
	if h.locateCancel != nil {
		h.locateCancel()
		h.locateCancel = nil
	}

	var errs []error
	for id, m := range h.markers {
		if err := h.surface.RemoveMarker(m.id); err != nil {
			errs = append(errs, fmt.Errorf("marker of %s: %w", id, err))
		}
	}
	if h.locationMarker != "" {
		if err := h.surface.RemoveMarker(h.locationMarker); err != nil {
			errs = append(errs, fmt.Errorf("location marker: %w", err))
		}
	}
	if h.layerID != "" {
		if err := h.surface.RemoveLayer(h.layerID); err != nil {
			errs = append(errs, fmt.Errorf("tile layer: %w", err))
		}
	}
	if err := h.surface.Close(); err != nil {
		errs = append(errs, err)
	}

	h.markers = nil
	h.products = nil
	h.selected = nil
	h.locationMarker = ""
	return errors.Join(errs...)
}

func positionOf(p *catalog.Product) LatLng {
	return LatLng{Lat: p.Location.Lat, Lng: p.Location.Lng}
}
