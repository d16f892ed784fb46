package locator

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ConsensusScore returns the mean pairwise Euclidean distance between
// points. ok is false when there are fewer than two points, since no
// pairwise distance exists.
func ConsensusScore(points []Point) (score float64, ok bool) {
	if len(points) < 2 {
		return 0, false
	}

	distances := make([]float64, 0, len(points)*(len(points)-1)/2)
	for i := 0; i < len(points); i++ {
		a := []float64{points[i].X, points[i].Y}
		for j := i + 1; j < len(points); j++ {
			distances = append(distances, floats.Distance(a, []float64{points[j].X, points[j].Y}, 2))
		}
	}
	return stat.Mean(distances, nil), true
}

// ClusterIntersections runs DBSCAN over the intersection coordinates and
// returns every non-noise cluster, ordered by label. Clusters of two or more
// points carry their consensus score; single-point clusters keep a zero
// score and are never selected.
func ClusterIntersections(points []IntersectionPoint, params DBSCANParams) []Cluster {
	if len(points) == 0 {
		return nil
	}

	coords := make([]Point, len(points))
	for i, p := range points {
		coords[i] = p.Point
	}

	labels, count := DBSCAN(coords, params)
	if count == 0 {
		return nil
	}

	members := make([][]IntersectionPoint, count+1)
	for i, label := range labels {
		if label == NoiseLabel {
			continue
		}
		members[label] = append(members[label], points[i])
	}

	clusters := make([]Cluster, 0, count)
	for label := 1; label <= count; label++ {
		if len(members[label]) == 0 {
			continue
		}
		c := Cluster{Label: label, Points: members[label]}
		pts := make([]Point, len(c.Points))
		for i, p := range c.Points {
			pts[i] = p.Point
		}
		if score, ok := ConsensusScore(pts); ok {
			c.Score = score
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// SelectTightest picks the cluster with the lowest consensus score among
// clusters holding at least two points. Ties go to the lower label.
func SelectTightest(clusters []Cluster) (Cluster, bool) {
	best := -1
	for i, c := range clusters {
		if len(c.Points) < 2 {
			continue
		}
		if best == -1 || c.Score < clusters[best].Score {
			best = i
		}
	}
	if best == -1 {
		return Cluster{}, false
	}
	return clusters[best], true
}

// ContributingObservations returns the sorted union of the observation
// indices behind the given intersection points.
func ContributingObservations(points []IntersectionPoint) []int {
	seen := make(map[int]struct{}, 2*len(points))
	for _, p := range points {
		seen[p.Pair[0]] = struct{}{}
		seen[p.Pair[1]] = struct{}{}
	}
	indices := make([]int, 0, len(seen))
	for idx := range seen {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

// OriginCentroid returns the mean origin of the observations at indices.
// ok is false if indices is empty or references no valid observation.
func OriginCentroid(observations []Observation, indices []int) (Estimate, bool) {
	lats := make([]float64, 0, len(indices))
	lons := make([]float64, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(observations) {
			continue
		}
		lats = append(lats, observations[idx].Origin.Lat)
		lons = append(lons, observations[idx].Origin.Lon)
	}
	if len(lats) == 0 {
		return Estimate{}, false
	}
	return Estimate{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}, true
}

// SelectConsensus clusters the intersection points, picks the tightest
// cluster and maps it back to its contributing observations.
func SelectConsensus(points []IntersectionPoint, params DBSCANParams) (*Selection, []Cluster) {
	clusters := ClusterIntersections(points, params)
	winner, ok := SelectTightest(clusters)
	if !ok {
		return nil, clusters
	}
	return &Selection{
		Cluster:      winner,
		Contributors: ContributingObservations(winner.Points),
	}, clusters
}
