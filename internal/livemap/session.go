package livemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/mapsync"
	"farmtrace/marketplace-backend/internal/viewer"
	"farmtrace/marketplace-backend/internal/visibility"
)

var ErrSessionClosed = errors.New("live map session closed")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Session is one browser map. Viewer input and catalog changes are handled
// by a single event loop; only geolocation runs beside it.
type Session struct {
	ID        string
	Viewer    viewer.Viewer
	StartedAt time.Time

	conn    *websocket.Conn
	manager *Manager
	logger  *zap.Logger

	send    chan Message
	events  chan Message
	changes *catalog.Subscription

	surface  *wsSurface
	handle   atomic.Pointer[mapsync.Handle]
	criteria visibility.Criteria

	locMu    sync.Mutex
	locating map[string]chan locationReply

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// push queues a command for the browser. A client that stops reading for
// writeWait is disconnected.
func (s *Session) push(t MessageType, payload interface{}) error {
	msg, err := newMessage(t, payload)
	if err != nil {
		return err
	}
	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	if s.closing.Load() {
		// teardown never waits on a slow client
		return ErrSessionClosed
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-timer.C:
		s.logger.Warn("Live map client too slow, closing", zap.String("session_id", s.ID))
		// close needs the handle lock, which our caller may hold
		go s.close()
		return ErrSessionClosed
	}
}

// readPump forwards browser events to the event loop. Location replies go
// straight to the waiting locate request.
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("Live map read failed", zap.String("session_id", s.ID), zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case EvLocation:
			var ev locationEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				continue
			}
			s.resolveLocation(ev.RequestID, locationReply{pos: mapsync.LatLng{Lat: ev.Lat, Lng: ev.Lng}})
		case EvLocationError:
			var ev locationErrorEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				continue
			}
			s.resolveLocation(ev.RequestID, locationReply{err: fmt.Errorf("%w: %s", errBrowserLocation, ev.Message)})
		default:
			select {
			case s.events <- msg:
			case <-s.done:
				return
			}
		}
	}
}

// writePump sends queued commands and keeps the connection alive
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued, such as the close command
func (s *Session) flush() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// run is the session's event loop
func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-s.changes.C():
			if !ok {
				return
			}
			s.refresh()
		case msg := <-s.events:
			s.handleEvent(msg)
		}
	}
}

// refresh recomputes the visible set and reconciles the markers
func (s *Session) refresh() {
	products, err := s.manager.catalog.Snapshot(s.ctx)
	if err != nil {
		s.logger.Error("Failed to read catalog", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	visible := s.manager.filter.Visible(products, s.Viewer, s.criteria)
	if err := s.handle.Load().SetProducts(visible); err != nil && !errors.Is(err, mapsync.ErrMapDisposed) {
		s.logger.Error("Failed to reconcile markers", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (s *Session) handleEvent(msg Message) {
	switch msg.Type {
	case EvSearch:
		var ev searchEvent
		if s.decode(msg, &ev) {
			s.criteria.Search = ev.Query
			s.refresh()
		}
	case EvCategory:
		var ev categoryEvent
		if s.decode(msg, &ev) {
			s.criteria.Category = ev.Category
			s.refresh()
		}
	case EvLayer:
		var ev layerEvent
		if s.decode(msg, &ev) {
			if err := s.handle.Load().SetLayer(ev.Layer); err != nil {
				_ = s.push(CmdNotice, noticeCommand{Message: err.Error()})
			}
		}
	case EvMarkerClick:
		var ev markerRef
		if s.decode(msg, &ev) && !s.surface.click(mapsync.MarkerID(ev.MarkerID)) {
			s.logger.Debug("Click on unknown marker", zap.String("marker_id", ev.MarkerID))
		}
	case EvClosePanel:
		_ = s.handle.Load().ClosePanel()
	case EvLocate:
		go func() {
			err := s.handle.Load().LocateUser(s.ctx)
			if err != nil && !errors.Is(err, mapsync.ErrLocateSuperseded) && !errors.Is(err, mapsync.ErrMapDisposed) {
				s.logger.Info("Locate finished without a position", zap.String("session_id", s.ID), zap.Error(err))
			}
		}()
	default:
		s.logger.Debug("Unknown live map event", zap.String("type", string(msg.Type)))
	}
}

func (s *Session) decode(msg Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		s.logger.Debug("Malformed live map event", zap.String("type", string(msg.Type)), zap.Error(err))
		return false
	}
	return true
}

func (s *Session) awaitLocation(requestID string) <-chan locationReply {
	ch := make(chan locationReply, 1)
	s.locMu.Lock()
	s.locating[requestID] = ch
	s.locMu.Unlock()
	return ch
}

func (s *Session) forgetLocation(requestID string) {
	s.locMu.Lock()
	delete(s.locating, requestID)
	s.locMu.Unlock()
}

func (s *Session) resolveLocation(requestID string, reply locationReply) {
	s.locMu.Lock()
	ch, ok := s.locating[requestID]
	delete(s.locating, requestID)
	s.locMu.Unlock()
	if ok {
		ch <- reply
	}
}

// close releases the map handle and the connection. Safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if h := s.handle.Load(); h != nil {
			// dispose while the writer still drains so the browser gets the close command
			_ = h.Dispose()
		}
		close(s.done)
		s.cancel()
		s.changes.Close()
		s.manager.unregister(s)
		// give the writer a moment to send the close frame
		time.AfterFunc(time.Second, func() { _ = s.conn.Close() })
	})
}
