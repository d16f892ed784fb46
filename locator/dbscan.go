package locator

import "math"

const (
	// DefaultEps is the default DBSCAN neighbourhood radius, in the same units
	// as the intersection coordinates (degrees). It is deliberately loose and
	// meant to be tuned per deployment.
	DefaultEps = 5.0

	// DefaultMinSamples is the default number of points (including the point
	// itself) a neighbourhood needs for its centre to be a core point.
	DefaultMinSamples = 3

	// NoiseLabel marks points that belong to no cluster.
	NoiseLabel = -1

	// maxCellIndex bounds grid cell coordinates so that far-away outliers
	// cannot overflow the integer conversion.
	maxCellIndex = 1 << 52
)

// cellKey identifies one grid cell of the spatial index.
type cellKey struct {
	X, Y int64
}

// SpatialIndex provides neighbour queries over planar points using a regular
// grid. The cell size should match the DBSCAN eps.
type SpatialIndex struct {
	CellSize float64
	Grid     map[cellKey][]int
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[cellKey][]int),
	}
}

// Build populates the index from points.
func (si *SpatialIndex) Build(points []Point) {
	si.Grid = make(map[cellKey][]int, len(points))
	for i, p := range points {
		key := si.cellOf(p)
		si.Grid[key] = append(si.Grid[key], i)
	}
}

func (si *SpatialIndex) cellOf(p Point) cellKey {
	return cellKey{X: clampCell(p.X / si.CellSize), Y: clampCell(p.Y / si.CellSize)}
}

func clampCell(v float64) int64 {
	v = math.Floor(v)
	if v > maxCellIndex {
		return maxCellIndex
	}
	if v < -maxCellIndex {
		return -maxCellIndex
	}
	return int64(v)
}

// RegionQuery returns the indices of all points within eps of points[idx],
// including idx itself.
func (si *SpatialIndex) RegionQuery(points []Point, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	base := si.cellOf(p)

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, candidateIdx := range si.Grid[cellKey{X: base.X + dx, Y: base.Y + dy}] {
				c := points[candidateIdx]
				ddx := c.X - p.X
				ddy := c.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}
	return neighbors
}

// DBSCANParams contains parameters for the DBSCAN clustering algorithm.
type DBSCANParams struct {
	Eps        float64
	MinSamples int
}

// DBSCAN labels each point with a cluster ID (1..n) or NoiseLabel. Clusters
// are numbered in discovery order, which follows input order, so labelling
// is deterministic for a given input.
func DBSCAN(points []Point, params DBSCANParams) (labels []int, clusterCount int) {
	if len(points) == 0 {
		return nil, 0
	}
	if params.Eps <= 0 {
		params.Eps = DefaultEps
	}
	if params.MinSamples <= 0 {
		params.MinSamples = DefaultMinSamples
	}

	labels = make([]int, len(points)) // 0 = unvisited
	index := NewSpatialIndex(params.Eps)
	index.Build(points)

	for i := range points {
		if labels[i] != 0 {
			continue
		}

		neighbors := index.RegionQuery(points, i, params.Eps)
		if len(neighbors) < params.MinSamples {
			labels[i] = NoiseLabel
			continue
		}

		clusterCount++
		expandCluster(points, index, labels, i, neighbors, clusterCount, params)
	}

	return labels, clusterCount
}

// expandCluster grows a cluster outward from a core point.
func expandCluster(points []Point, si *SpatialIndex, labels []int, seedIdx int, neighbors []int, clusterID int, params DBSCANParams) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == NoiseLabel {
			labels[idx] = clusterID // border point
		}
		if labels[idx] != 0 {
			continue
		}

		labels[idx] = clusterID
		next := si.RegionQuery(points, idx, params.Eps)
		if len(next) >= params.MinSamples {
			neighbors = append(neighbors, next...)
		}
	}
}
