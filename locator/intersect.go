package locator

import "math"

// DefaultParallelEpsilon is the sine of the smallest angle between two lines
// that are still intersected, roughly 0.06 degrees. Compass bearings are
// not resolved more finely than that.
const DefaultParallelEpsilon = 1e-3

// Line is a 2D line through Origin along the unit vector Dir. A zero Dir
// marks a degenerate line that intersects nothing.
type Line struct {
	Origin Point
	Dir    Point
}

// LineThrough returns the line through p1 and p2, directed from p1 to p2.
func LineThrough(p1, p2 Point) Line {
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	n := math.Hypot(dx, dy)
	if n == 0 || !isFinite(n) {
		return Line{Origin: p1}
	}
	return Line{Origin: p1, Dir: Point{X: dx / n, Y: dy / n}}
}

// cross is the z component of the 2D cross product a × b.
func cross(a, b Point) float64 {
	return a.X*b.Y - a.Y*b.X
}

// Parallel reports whether two lines are parallel within epsilon, comparing
// the sine of the angle between their directions. The test is the same in
// every orientation, including either side of vertical.
func (l Line) Parallel(other Line, epsilon float64) bool {
	return math.Abs(cross(l.Dir, other.Dir)) <= epsilon
}

// Intersect returns the crossing point of two lines. ok is false for
// parallel lines, a non-finite solve, or a crossing outside the valid
// longitude/latitude range.
func (l Line) Intersect(other Line, epsilon float64) (Point, bool) {
	if l.Parallel(other, epsilon) {
		return Point{}, false
	}

	w := Point{X: other.Origin.X - l.Origin.X, Y: other.Origin.Y - l.Origin.Y}
	t := cross(w, other.Dir) / cross(l.Dir, other.Dir)
	p := Point{X: l.Origin.X + t*l.Dir.X, Y: l.Origin.Y + t*l.Dir.Y}

	if !isFinite(p.X) || !isFinite(p.Y) {
		return Point{}, false
	}
	if math.Abs(p.X) > 180 || math.Abs(p.Y) > 90 {
		return Point{}, false
	}
	return p, true
}

// ComputeIntersections intersects every unordered pair of observation lines.
// Parallel and numerically degenerate pairs are skipped. Each emitted point
// carries the indices (i < j) of the observations that produced it.
func ComputeIntersections(observations []Observation, epsilon float64) []IntersectionPoint {
	if epsilon <= 0 {
		epsilon = DefaultParallelEpsilon
	}
	if len(observations) < 2 {
		return nil
	}

	lines := make([]Line, len(observations))
	for i, obs := range observations {
		lines[i] = obs.Line()
	}

	var points []IntersectionPoint
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			p, ok := lines[i].Intersect(lines[j], epsilon)
			if !ok {
				continue
			}
			points = append(points, IntersectionPoint{Point: p, Pair: [2]int{i, j}})
		}
	}

	return points
}
