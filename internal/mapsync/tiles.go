package mapsync

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownTileLayer = errors.New("unknown tile layer")

// TileLayer names one of the base maps a viewer can switch between
type TileLayer string

const (
	LayerStandard  TileLayer = "standard"
	LayerSatellite TileLayer = "satellite"
	LayerDark      TileLayer = "dark"
	LayerTerrain   TileLayer = "terrain"
)

// TileSource is the URL template and attribution of a tile provider
type TileSource struct {
	Layer       TileLayer `json:"layer"`
	URLTemplate string    `json:"url_template"`
	Attribution string    `json:"attribution"`
	Subdomains  string    `json:"subdomains,omitempty"`
	MaxZoom     int       `json:"max_zoom"`
}

var tileSources = map[TileLayer]TileSource{
	LayerStandard: {
		Layer:       LayerStandard,
		URLTemplate: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
		Subdomains:  "abc",
		MaxZoom:     19,
	},
	LayerSatellite: {
		Layer:       LayerSatellite,
		URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri, Maxar, Earthstar Geographics",
		MaxZoom:     19,
	},
	LayerDark: {
		Layer:       LayerDark,
		URLTemplate: "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		Subdomains:  "abcd",
		MaxZoom:     20,
	},
	LayerTerrain: {
		Layer:       LayerTerrain,
		URLTemplate: "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
		Attribution: "Map data &copy; OpenStreetMap contributors, SRTM | Style &copy; OpenTopoMap (CC-BY-SA)",
		Subdomains:  "abc",
		MaxZoom:     17,
	},
}

// LookupTileLayer returns the source bound to layer
func LookupTileLayer(layer TileLayer) (TileSource, error) {
	src, ok := tileSources[layer]
	if !ok {
		return TileSource{}, fmt.Errorf("%w: %q", ErrUnknownTileLayer, layer)
	}
	return src, nil
}

// TileSources lists every layer, sorted by name
func TileSources() []TileSource {
	out := make([]TileSource, 0, len(tileSources))
	for _, src := range tileSources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Layer < out[j].Layer })
	return out
}
