package mapsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"farmtrace/marketplace-backend/pkg/geospatial"
)

var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrLocateSuperseded    = errors.New("locate request superseded")
)

// NoticeLocationUnavailable is shown when the position cannot be determined
const NoticeLocationUnavailable = "Không thể xác định vị trí của bạn. Hãy kiểm tra quyền truy cập vị trí."

// LocationProvider answers a one-shot position request. Implementations must
// return when ctx is done.
type LocationProvider interface {
	Locate(ctx context.Context) (LatLng, error)
}

// LocationProviderFunc adapts a function to LocationProvider
type LocationProviderFunc func(ctx context.Context) (LatLng, error)

func (f LocationProviderFunc) Locate(ctx context.Context) (LatLng, error) {
	return f(ctx)
}

// LocateState is the state of the "my location" control
type LocateState string

const (
	LocateIdle    LocateState = "idle"
	LocatePending LocateState = "pending" // control disabled, spinner shown
)

// LocateState returns the current control state
func (h *Handle) LocateState() LocateState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.locateState
}

// LocateUser asks the provider for the viewer's position, flies there and
// shows a single location marker. A second call cancels the first, which then
// returns ErrLocateSuperseded. Failures show a notice and leave the map as is.
// LocateUser blocks until the provider answers or the timeout expires; other
// handle operations proceed meanwhile.
func (h *Handle) LocateUser(ctx context.Context) error {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return ErrMapDisposed
	}
	provider := h.opts.Locator
	if provider == nil {
		h.failLocate(errors.New("no location provider"))
		h.mu.Unlock()
		return fmt.Errorf("%w: no location provider", ErrLocationUnavailable)
	}
	if h.locateCancel != nil {
		h.locateCancel()
	}
	h.locateGen++
	gen := h.locateGen
	lctx, cancel := context.WithTimeout(ctx, h.opts.LocateTimeout)
	h.locateCancel = cancel
	h.setLocateState(LocatePending)
	h.mu.Unlock()

	pos, err := provider.Locate(lctx)
	if err == nil {
		err = lctx.Err()
	}
	cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return ErrMapDisposed
	}
	if gen != h.locateGen {
		h.opts.Metrics.IncrementLocate("superseded")
		return ErrLocateSuperseded
	}
	h.locateCancel = nil
	h.setLocateState(LocateIdle)

	if err == nil {
		err = geospatial.ValidatePoint(pos.Lat, pos.Lng)
	}
	if err != nil {
		h.failLocate(err)
		return fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	if err := h.surface.FlyTo(pos, h.opts.LocateZoom); err != nil {
		h.failLocate(err)
		return fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	if h.locationMarker != "" {
		if err := h.surface.RemoveMarker(h.locationMarker); err != nil {
			return fmt.Errorf("failed to remove previous location marker: %w", err)
		}
		h.locationMarker = ""
	}
	id, err := h.surface.AddMarker(MarkerSpec{Position: pos, Kind: MarkerLocation, Title: "Vị trí của bạn"})
	if err != nil {
		return fmt.Errorf("failed to add location marker: %w", err)
	}
	h.locationMarker = id
	h.opts.Metrics.IncrementLocate("success")
	return nil
}

// callers hold h.mu
func (h *Handle) failLocate(err error) {
	h.opts.Metrics.IncrementLocate("failure")
	h.opts.Logger.Info("Locate failed", zap.Error(err))
	if h.opts.OnNotice != nil {
		h.opts.OnNotice(NoticeLocationUnavailable)
	}
}

// callers hold h.mu
func (h *Handle) setLocateState(state LocateState) {
	if h.locateState == state {
		return
	}
	h.locateState = state
	if h.opts.OnLocateState != nil {
		h.opts.OnLocateState(state)
	}
}
