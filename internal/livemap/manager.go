package livemap

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/mapsync"
	"farmtrace/marketplace-backend/internal/metrics"
	"farmtrace/marketplace-backend/internal/viewer"
	"farmtrace/marketplace-backend/internal/visibility"
)

// Options tune the maps the manager renders
type Options struct {
	DefaultLayer   mapsync.TileLayer
	LocateTimeout  time.Duration
	LocateZoom     int
	AllowedOrigins []string
	ResolveImage   func(string) string
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// Manager upgrades connections into live map sessions and tracks them
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	upgrader websocket.Upgrader

	catalog *catalog.Service
	filter  *visibility.Filter
	opts    Options
	logger  *zap.Logger
}

// NewManager creates a live map manager reading from cat through filter
func NewManager(cat *catalog.Service, filter *visibility.Filter, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultLayer == "" {
		opts.DefaultLayer = mapsync.LayerStandard
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		catalog:  cat,
		filter:   filter,
		opts:     opts,
		logger:   opts.Logger,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}
	return m
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	if len(m.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range m.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleConnection upgrades the request and renders the viewer's map on it
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, v viewer.Viewer) (*Session, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        uuid.New().String(),
		Viewer:    v,
		StartedAt: time.Now(),
		conn:      conn,
		manager:   m,
		logger:    m.logger,
		send:      make(chan Message, sendBuffer),
		events:    make(chan Message, 16),
		changes:   m.catalog.Subscribe(),
		locating:  make(map[string]chan locationReply),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.surface = newSurface(s)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.opts.Metrics.SessionOpened()

	go s.writePump()

	products, err := m.catalog.Snapshot(ctx)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	handle, err := mapsync.Render(s.surface, m.filter.Visible(products, v, s.criteria), mapsync.Options{
		TileLayer: m.opts.DefaultLayer,
		OnMarkerSelect: func(panel mapsync.DetailPanel) {
			_ = s.push(CmdPanel, panel)
		},
		OnPanelClosed: func() {
			_ = s.push(CmdPanelClosed, nil)
		},
		Locator:       browserLocator{session: s, timeout: m.opts.LocateTimeout},
		LocateTimeout: m.opts.LocateTimeout,
		LocateZoom:    m.opts.LocateZoom,
		OnNotice: func(message string) {
			_ = s.push(CmdNotice, noticeCommand{Message: message})
		},
		OnLocateState: func(state mapsync.LocateState) {
			_ = s.push(CmdLocateState, locateStateCommand{State: state})
		},
		ResolveImage: m.opts.ResolveImage,
		Metrics:      m.opts.Metrics,
		Logger:       m.logger.With(zap.String("session_id", s.ID)),
	})
	if err != nil {
		s.close()
		return nil, err
	}
	s.handle.Store(handle)
	if s.isClosed() {
		_ = handle.Dispose()
		return nil, ErrSessionClosed
	}

	go s.readPump()
	go s.run()

	m.logger.Info("Live map session opened",
		zap.String("session_id", s.ID),
		zap.String("viewer_id", v.ID()),
		zap.String("role", string(v.Role())))
	return s, nil
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	_, ok := m.sessions[s.ID]
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	if ok {
		m.opts.Metrics.SessionClosed()
		m.logger.Info("Live map session closed", zap.String("session_id", s.ID))
	}
}

// SessionCount returns the number of open sessions
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SessionInfo describes an open session for monitoring
type SessionInfo struct {
	SessionID string      `json:"session_id"`
	ViewerID  string      `json:"viewer_id"`
	Role      viewer.Role `json:"role"`
	StartedAt time.Time   `json:"started_at"`
	Markers   int         `json:"markers"`
	Layer     string      `json:"layer"`
}

// Sessions lists the open sessions
func (m *Manager) Sessions() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	info := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		entry := SessionInfo{
			SessionID: s.ID,
			ViewerID:  s.Viewer.ID(),
			Role:      s.Viewer.Role(),
			StartedAt: s.StartedAt,
		}
		if h := s.handle.Load(); h != nil {
			entry.Markers = h.MarkerCount()
			entry.Layer = string(h.Layer())
		}
		info = append(info, entry)
	}
	return info
}

// Close ends every session
func (m *Manager) Close() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.close()
	}
}
