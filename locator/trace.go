package locator

import "log"

// Tracer receives diagnostic events from the estimator. Implementations must
// not retain the slices they are handed.
type Tracer interface {
	Rejected(r Rejection)
	Intersection(p IntersectionPoint)
	ClusterScored(c Cluster)
	Selected(s Selection, e Estimate)
}

// NopTracer discards every event.
type NopTracer struct{}

func (NopTracer) Rejected(Rejection)             {}
func (NopTracer) Intersection(IntersectionPoint) {}
func (NopTracer) ClusterScored(Cluster)          {}
func (NopTracer) Selected(Selection, Estimate)   {}

// LogTracer writes estimator events to a standard logger.
type LogTracer struct {
	Logger *log.Logger
}

// NewLogTracer returns a tracer writing to l, or to the default logger if l
// is nil.
func NewLogTracer(l *log.Logger) *LogTracer {
	if l == nil {
		l = log.Default()
	}
	return &LogTracer{Logger: l}
}

func (t *LogTracer) Rejected(r Rejection) {
	t.Logger.Printf("[TRACE] rejected record %d (id=%q): %s", r.Index, r.ID, r.Reason())
}

func (t *LogTracer) Intersection(p IntersectionPoint) {
	t.Logger.Printf("[TRACE] intersection %d/%d at lat=%.6f lon=%.6f", p.Pair[0], p.Pair[1], p.Point.Y, p.Point.X)
}

func (t *LogTracer) ClusterScored(c Cluster) {
	t.Logger.Printf("[TRACE] cluster %d: %d points, score %.6f", c.Label, len(c.Points), c.Score)
}

func (t *LogTracer) Selected(s Selection, e Estimate) {
	t.Logger.Printf("[TRACE] selected cluster %d from observers %v -> %.6f, %.6f", s.Cluster.Label, s.Contributors, e.Lat, e.Lon)
}
