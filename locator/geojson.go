package locator

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds written to the "kind" property.
const (
	KindObserver     = "observer"
	KindRay          = "ray"
	KindIntersection = "intersection"
	KindEstimate     = "estimate"
	KindHull         = "contributorHull"
)

// ResultToFeatureCollection exports an estimation result as GeoJSON:
// observer positions, their rays, every intersection point labelled with its
// cluster (NoiseLabel when unclustered), the hull of contributing observers
// and the estimate itself.
func ResultToFeatureCollection(result Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	contributing := make(map[int]bool)
	if result.Selection != nil {
		for _, idx := range result.Selection.Contributors {
			contributing[idx] = true
		}
	}

	for i, obs := range result.Observations {
		f := geojson.NewFeature(obs.Origin.OrbPoint())
		f.Properties["kind"] = KindObserver
		f.Properties["index"] = i
		f.Properties["id"] = obs.ID
		f.Properties["azimuth"] = obs.Azimuth
		f.Properties["source"] = string(obs.Source)
		f.Properties["contributor"] = contributing[i]
		fc.Append(f)

		ray := geojson.NewFeature(orb.LineString{obs.Origin.OrbPoint(), obs.Through.OrbPoint()})
		ray.Properties["kind"] = KindRay
		ray.Properties["index"] = i
		fc.Append(ray)
	}

	labels := make(map[[2]int]int)
	for _, c := range result.Clusters {
		for _, p := range c.Points {
			labels[p.Pair] = c.Label
		}
	}
	for _, p := range result.Intersections {
		label, ok := labels[p.Pair]
		if !ok {
			label = NoiseLabel
		}
		f := geojson.NewFeature(orb.Point{p.Point.X, p.Point.Y})
		f.Properties["kind"] = KindIntersection
		f.Properties["pair"] = []int{p.Pair[0], p.Pair[1]}
		f.Properties["cluster"] = label
		fc.Append(f)
	}

	if result.Selection != nil && len(result.Selection.Contributors) >= 3 {
		pts := make([]orb.Point, 0, len(result.Selection.Contributors))
		for _, idx := range result.Selection.Contributors {
			pts = append(pts, result.Observations[idx].Origin.OrbPoint())
		}
		if hull := ConvexHull(pts); len(hull) >= 3 {
			ring := append(orb.Ring{}, hull...)
			ring = append(ring, hull[0])
			f := geojson.NewFeature(orb.Polygon{ring})
			f.Properties["kind"] = KindHull
			f.Properties["cluster"] = result.Selection.Cluster.Label
			fc.Append(f)
		}
	}

	if e := result.Estimate; e != nil {
		f := geojson.NewFeature(e.LatLon().OrbPoint())
		f.Properties["kind"] = KindEstimate
		f.Properties["insideHull"] = result.InsideHull
		if result.Selection != nil {
			f.Properties["score"] = result.Selection.Cluster.Score
		}
		fc.Append(f)
	}

	return fc
}
