package visibility

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/pkg/geospatial"
)

// JurisdictionMatcher decides whether a product lies inside a regional admin's area
type JurisdictionMatcher interface {
	Matches(assignedArea string, product *catalog.Product) bool
}

// SubstringMatcher matches when the last word of the assigned area occurs in the
// product address, ignoring case. "Tỉnh Lâm Đồng" therefore matches any address
// containing "đồng". An area with no words matches every address.
type SubstringMatcher struct{}

func (SubstringMatcher) Matches(assignedArea string, product *catalog.Product) bool {
	token := areaToken(assignedArea)
	if token == "" {
		return true
	}
	return strings.Contains(fold(product.Location.Address), token)
}

func areaToken(area string) string {
	words := strings.Fields(area)
	if len(words) == 0 {
		return ""
	}
	return fold(words[len(words)-1])
}

// GeofenceMatcher tests the product coordinates against the polygon registered
// for the assigned area. Areas without a polygon use Fallback.
type GeofenceMatcher struct {
	index    geospatial.Regions
	Fallback JurisdictionMatcher
}

func NewGeofenceMatcher(regions geospatial.Regions) *GeofenceMatcher {
	index := make(geospatial.Regions, len(regions))
	for name, geometry := range regions {
		index[fold(name)] = geometry
	}
	return &GeofenceMatcher{index: index, Fallback: SubstringMatcher{}}
}

func (g *GeofenceMatcher) Matches(assignedArea string, product *catalog.Product) bool {
	if geometry, ok := g.index[fold(strings.TrimSpace(assignedArea))]; ok {
		return geospatial.Contains(geometry, geospatial.Point(product.Location.Lat, product.Location.Lng))
	}
	if g.Fallback == nil {
		return false
	}
	return g.Fallback.Matches(assignedArea, product)
}

// fold puts text into NFC and lower case so composed and decomposed
// Vietnamese diacritics compare equal
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
