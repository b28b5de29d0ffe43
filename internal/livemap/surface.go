package livemap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"farmtrace/marketplace-backend/internal/mapsync"
)

// wsSurface draws on the browser map by sending commands over the session
type wsSurface struct {
	session *Session

	mu      sync.Mutex
	next    int
	onClick map[mapsync.MarkerID]func()
}

func newSurface(s *Session) *wsSurface {
	return &wsSurface{session: s, onClick: make(map[mapsync.MarkerID]func())}
}

// NewSurface lets the session act as the map container
func (w *wsSurface) NewSurface(opts mapsync.SurfaceOptions) (mapsync.Surface, error) {
	if w.session.isClosed() {
		return nil, ErrSessionClosed
	}
	return w, nil
}

func (w *wsSurface) nextID(prefix string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	return fmt.Sprintf("%s-%d", prefix, w.next)
}

func (w *wsSurface) AddTileLayer(src mapsync.TileSource) (mapsync.LayerID, error) {
	id := w.nextID("layer")
	if err := w.session.push(CmdAddTileLayer, tileLayerCommand{LayerID: id, Source: src}); err != nil {
		return "", err
	}
	return mapsync.LayerID(id), nil
}

func (w *wsSurface) RemoveLayer(id mapsync.LayerID) error {
	return w.session.push(CmdRemoveLayer, layerRef{LayerID: string(id)})
}

func (w *wsSurface) AddMarker(spec mapsync.MarkerSpec) (mapsync.MarkerID, error) {
	id := mapsync.MarkerID(w.nextID("marker"))
	err := w.session.push(CmdAddMarker, markerCommand{
		MarkerID:  string(id),
		Kind:      spec.Kind,
		ProductID: spec.ProductID,
		Title:     spec.Title,
		Position:  spec.Position,
	})
	if err != nil {
		return "", err
	}
	if spec.OnClick != nil {
		w.mu.Lock()
		w.onClick[id] = spec.OnClick
		w.mu.Unlock()
	}
	return id, nil
}

func (w *wsSurface) RemoveMarker(id mapsync.MarkerID) error {
	w.mu.Lock()
	delete(w.onClick, id)
	w.mu.Unlock()
	return w.session.push(CmdRemoveMarker, markerRef{MarkerID: string(id)})
}

func (w *wsSurface) FlyTo(center mapsync.LatLng, zoom int) error {
	return w.session.push(CmdFlyTo, flyToCommand{Center: center, Zoom: zoom, Animate: true})
}

func (w *wsSurface) Close() error {
	w.mu.Lock()
	w.onClick = make(map[mapsync.MarkerID]func())
	w.mu.Unlock()
	return w.session.push(CmdClose, nil)
}

// click runs the handler of a marker; it reports false for unknown markers
func (w *wsSurface) click(id mapsync.MarkerID) bool {
	w.mu.Lock()
	fn, ok := w.onClick[id]
	w.mu.Unlock()
	if !ok {
		return false
	}
	fn()
	return true
}

// browserLocator asks the browser's geolocation API through the session
type browserLocator struct {
	session *Session
	timeout time.Duration
}

type locationReply struct {
	pos mapsync.LatLng
	err error
}

func (b browserLocator) Locate(ctx context.Context) (mapsync.LatLng, error) {
	requestID := uuid.NewString()
	reply := b.session.awaitLocation(requestID)
	defer b.session.forgetLocation(requestID)

	err := b.session.push(CmdLocateRequest, locateRequest{RequestID: requestID, TimeoutMS: b.timeout.Milliseconds()})
	if err != nil {
		return mapsync.LatLng{}, err
	}

	select {
	case r := <-reply:
		return r.pos, r.err
	case <-ctx.Done():
		return mapsync.LatLng{}, ctx.Err()
	case <-b.session.done:
		return mapsync.LatLng{}, ErrSessionClosed
	}
}

var errBrowserLocation = errors.New("browser could not determine the position")
