package livemap

import (
	"encoding/json"
	"time"

	"farmtrace/marketplace-backend/internal/mapsync"
)

// MessageType names a live map message
type MessageType string

// Commands sent to the browser
const (
	CmdAddTileLayer  MessageType = "add_tile_layer"
	CmdRemoveLayer   MessageType = "remove_layer"
	CmdAddMarker     MessageType = "add_marker"
	CmdRemoveMarker  MessageType = "remove_marker"
	CmdFlyTo         MessageType = "fly_to"
	CmdPanel         MessageType = "panel"
	CmdPanelClosed   MessageType = "panel_closed"
	CmdNotice        MessageType = "notice"
	CmdLocateState   MessageType = "locate_state"
	CmdLocateRequest MessageType = "locate_request"
	CmdClose         MessageType = "close"
)

// Events received from the browser
const (
	EvSearch        MessageType = "search"
	EvCategory      MessageType = "category"
	EvLayer         MessageType = "layer"
	EvMarkerClick   MessageType = "marker_click"
	EvClosePanel    MessageType = "close_panel"
	EvLocate        MessageType = "locate"
	EvLocation      MessageType = "location"
	EvLocationError MessageType = "location_error"
)

// Message is the envelope for both directions
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(t MessageType, payload interface{}) (Message, error) {
	msg := Message{Type: t, Timestamp: time.Now().UTC()}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Data = data
	return msg, nil
}

type tileLayerCommand struct {
	LayerID string             `json:"layer_id"`
	Source  mapsync.TileSource `json:"source"`
}

type layerRef struct {
	LayerID string `json:"layer_id"`
}

type markerCommand struct {
	MarkerID  string             `json:"marker_id"`
	Kind      mapsync.MarkerKind `json:"kind"`
	ProductID string             `json:"product_id,omitempty"`
	Title     string             `json:"title,omitempty"`
	Position  mapsync.LatLng     `json:"position"`
}

type markerRef struct {
	MarkerID string `json:"marker_id"`
}

type flyToCommand struct {
	Center  mapsync.LatLng `json:"center"`
	Zoom    int            `json:"zoom"`
	Animate bool           `json:"animate"`
}

type noticeCommand struct {
	Message string `json:"message"`
}

type locateStateCommand struct {
	State mapsync.LocateState `json:"state"`
}

type locateRequest struct {
	RequestID string `json:"request_id"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type searchEvent struct {
	Query string `json:"query"`
}

type categoryEvent struct {
	Category string `json:"category"`
}

type layerEvent struct {
	Layer mapsync.TileLayer `json:"layer"`
}

type locationEvent struct {
	RequestID string  `json:"request_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

type locationErrorEvent struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}
