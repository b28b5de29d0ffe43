package mapsync

// LatLng is a WGS84 position
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LayerID string

type MarkerID string

// MarkerKind separates catalog markers from transient overlays
type MarkerKind string

const (
	MarkerProduct  MarkerKind = "product"
	MarkerLocation MarkerKind = "location"
)

// Initial view over Vietnam
var (
	DefaultCenter = LatLng{Lat: 15.8, Lng: 108.2}
	DefaultZoom   = 6
)

type SurfaceOptions struct {
	Center LatLng
	Zoom   int
}

// MarkerSpec describes a marker to attach. OnClick may be nil; surfaces call it
// on user clicks, never from inside one of their own methods.
type MarkerSpec struct {
	Position  LatLng
	Kind      MarkerKind
	ProductID string
	Title     string
	OnClick   func()
}

// Container is the rendering target a surface is created in
type Container interface {
	NewSurface(opts SurfaceOptions) (Surface, error)
}

// Surface is the drawing surface behind a map handle: a browser map, a test
// recorder, or anything else that can place layers and markers.
type Surface interface {
	AddTileLayer(src TileSource) (LayerID, error)
	RemoveLayer(id LayerID) error
	AddMarker(spec MarkerSpec) (MarkerID, error)
	RemoveMarker(id MarkerID) error
	// FlyTo animates to center at zoom
	FlyTo(center LatLng, zoom int) error
	Close() error
}
