package locator

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// hullTolerance absorbs floating-point error when testing points that sit on
// the hull boundary, in degrees.
const hullTolerance = 1e-9

// NormalizeAngle normalizes an angle in degrees to the range [0, 360).
func NormalizeAngle(degrees float64) float64 {
	degrees = math.Mod(degrees, 360)
	if degrees < 0 {
		degrees += 360
	}
	return degrees
}

// Distance returns the Euclidean distance between two planar points.
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// ConvexHull computes the convex hull of a set of 2D points using
// Andrew's monotone chain algorithm. Returns points in counter-clockwise order.
func ConvexHull(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		result := make([]orb.Point, len(points))
		copy(result, points)
		return result
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	n := len(sorted)
	hull := make([]orb.Point, 0, 2*n)

	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// last point duplicates the first
	return hull[:len(hull)-1]
}

// HullContains reports whether p lies inside or on the convex hull of the
// given coordinates. Degenerate hulls (fewer than three distinct corners)
// fall back to the bounding box.
func HullContains(coords []LatLon, p LatLon) bool {
	if len(coords) == 0 {
		return false
	}

	pts := make([]orb.Point, len(coords))
	for i, c := range coords {
		pts[i] = c.OrbPoint()
	}
	target := p.OrbPoint()

	hull := ConvexHull(pts)
	if len(hull) < 3 {
		bound := orb.MultiPoint(pts).Bound().Pad(hullTolerance)
		return bound.Contains(target)
	}

	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0])

	if planar.RingContains(ring, target) {
		return true
	}
	return planar.DistanceFrom(orb.LineString(ring), target) <= hullTolerance
}
