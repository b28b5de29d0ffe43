package geospatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lamDongGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "Tỉnh Lâm Đồng"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[107.2, 11.2], [108.8, 11.2], [108.8, 12.4], [107.2, 12.4], [107.2, 11.2]]]
      }
    }
  ]
}`

func TestValidatePoint(t *testing.T) {
	assert.NoError(t, ValidatePoint(11.94, 108.44))
	assert.ErrorIs(t, ValidatePoint(91, 0), ErrInvalidCoordinates)
	assert.ErrorIs(t, ValidatePoint(0, -181), ErrInvalidCoordinates)
	assert.ErrorIs(t, ValidatePoint(math.NaN(), 0), ErrInvalidCoordinates)
}

func TestParseRegionsAndContains(t *testing.T) {
	regions, err := ParseRegions([]byte(lamDongGeoJSON), "name")
	require.NoError(t, err)
	require.Contains(t, regions, "Tỉnh Lâm Đồng")

	area := regions["Tỉnh Lâm Đồng"]
	assert.True(t, Contains(area, Point(11.94, 108.44)), "Da Lat is inside Lam Dong")
	assert.False(t, Contains(area, Point(10.77, 106.70)), "Ho Chi Minh City is outside")
}

func TestParseRegionsRejectsPoints(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"Point","coordinates":[1,2]}}]}`
	_, err := ParseRegions([]byte(data), "name")
	assert.Error(t, err)
}

func TestParseRegionsRequiresName(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`
	_, err := ParseRegions([]byte(data), "name")
	assert.Error(t, err)
}
