package locator

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func featuresByKind(fc *geojson.FeatureCollection) map[string][]*geojson.Feature {
	out := make(map[string][]*geojson.Feature)
	for _, f := range fc.Features {
		kind, _ := f.Properties["kind"].(string)
		out[kind] = append(out[kind], f)
	}
	return out
}

func TestResultToFeatureCollection(t *testing.T) {
	result := NewEstimator(DefaultParams(), nil).EstimateRecords(paradiseRecords(), nil)
	fc := ResultToFeatureCollection(result)
	kinds := featuresByKind(fc)

	assert.Len(t, kinds[KindObserver], 3)
	assert.Len(t, kinds[KindRay], 3)
	assert.Len(t, kinds[KindIntersection], 3)
	require.Len(t, kinds[KindHull], 1)
	require.Len(t, kinds[KindEstimate], 1)

	obs := kinds[KindObserver][0]
	assert.Equal(t, orb.Point{-121.7, 39.810278}, obs.Geometry)
	assert.Equal(t, "a", obs.Properties["id"])
	assert.Equal(t, true, obs.Properties["contributor"])

	for _, f := range kinds[KindIntersection] {
		assert.Equal(t, 1, f.Properties["cluster"])
	}

	_, isPolygon := kinds[KindHull][0].Geometry.(orb.Polygon)
	assert.True(t, isPolygon)

	est := kinds[KindEstimate][0]
	assert.Equal(t, true, est.Properties["insideHull"])
	pt, ok := est.Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, result.Estimate.Lon, pt.Lon(), 1e-12)
	assert.InDelta(t, result.Estimate.Lat, pt.Lat(), 1e-12)

	// round trips as valid GeoJSON
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	parsed, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, parsed.Features, len(fc.Features))
}

func TestResultToFeatureCollection_NoEstimate(t *testing.T) {
	result := NewEstimator(DefaultParams(), nil).EstimateRecords(paradiseRecords()[:2], nil)
	kinds := featuresByKind(ResultToFeatureCollection(result))

	assert.Len(t, kinds[KindObserver], 2)
	require.Len(t, kinds[KindIntersection], 1)
	assert.Equal(t, NoiseLabel, kinds[KindIntersection][0].Properties["cluster"])
	assert.Empty(t, kinds[KindHull])
	assert.Empty(t, kinds[KindEstimate])
	assert.Equal(t, false, kinds[KindObserver][0].Properties["contributor"])
}

func TestResultToFeatureCollection_Empty(t *testing.T) {
	fc := ResultToFeatureCollection(Result{})
	assert.Empty(t, fc.Features)
}
