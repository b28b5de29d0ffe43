package geospatial

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ValidatePoint checks that lat/lng are finite and inside WGS84 bounds
func ValidatePoint(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, lng)
	}
	return nil
}

// Point converts lat/lng to an orb point (orb stores lng first)
func Point(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// Regions maps an area name to its boundary geometry.
type Regions map[string]orb.Geometry

// ParseRegions reads a GeoJSON FeatureCollection. Each feature's nameProperty
// becomes the region key; only Polygon and MultiPolygon geometries are kept.
func ParseRegions(data []byte, nameProperty string) (Regions, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	regions := make(Regions, len(fc.Features))
	for i, feature := range fc.Features {
		if feature.Geometry == nil {
			return nil, fmt.Errorf("invalid GeoJSON: feature %d has no geometry", i)
		}
		name := strings.TrimSpace(feature.Properties.MustString(nameProperty, ""))
		if name == "" {
			return nil, fmt.Errorf("invalid GeoJSON: feature %d has no %q property", i, nameProperty)
		}
		switch feature.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			regions[name] = feature.Geometry
		default:
			return nil, fmt.Errorf("invalid GeoJSON: region %q is a %s, want polygon", name, feature.Geometry.GeoJSONType())
		}
	}
	return regions, nil
}

// LoadRegions reads region boundaries from a GeoJSON file
func LoadRegions(path, nameProperty string) (Regions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return ParseRegions(data, nameProperty)
}

// Contains reports whether the point lies inside the geometry
func Contains(geometry orb.Geometry, p orb.Point) bool {
	switch g := geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	default:
		return false
	}
}
