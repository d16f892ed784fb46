package locator

import (
	"fmt"
	"math"
)

// Params tunes the estimator. Zero values fall back to the package defaults.
type Params struct {
	Eps               float64 `yaml:"eps" json:"eps"`
	MinSamples        int     `yaml:"minSamples" json:"minSamples"`
	ParallelEpsilon   float64 `yaml:"parallelEpsilon,omitempty" json:"parallelEpsilon,omitempty"`
	ReferenceDistance float64 `yaml:"referenceDistance,omitempty" json:"referenceDistance,omitempty"`
}

// DefaultParams returns the default estimator parameters.
func DefaultParams() Params {
	return Params{
		Eps:               DefaultEps,
		MinSamples:        DefaultMinSamples,
		ParallelEpsilon:   DefaultParallelEpsilon,
		ReferenceDistance: DefaultReferenceDistance,
	}
}

// WithDefaults returns a copy of p with zero fields replaced by defaults.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Eps == 0 {
		p.Eps = d.Eps
	}
	if p.MinSamples == 0 {
		p.MinSamples = d.MinSamples
	}
	if p.ParallelEpsilon == 0 {
		p.ParallelEpsilon = d.ParallelEpsilon
	}
	if p.ReferenceDistance == 0 {
		p.ReferenceDistance = d.ReferenceDistance
	}
	return p
}

// Validate rejects negative or non-finite parameters. Zero values are allowed
// and mean "use the default".
func (p Params) Validate() error {
	if p.Eps < 0 || math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) {
		return fmt.Errorf("eps must be a positive finite number, got %v", p.Eps)
	}
	if p.MinSamples < 0 {
		return fmt.Errorf("minSamples must be positive, got %d", p.MinSamples)
	}
	if p.ParallelEpsilon < 0 || p.ParallelEpsilon >= 1 || math.IsNaN(p.ParallelEpsilon) {
		return fmt.Errorf("parallelEpsilon must be in [0, 1), got %v", p.ParallelEpsilon)
	}
	if p.ReferenceDistance < 0 || math.IsNaN(p.ReferenceDistance) || math.IsInf(p.ReferenceDistance, 0) {
		return fmt.Errorf("referenceDistance must be a positive finite number, got %v", p.ReferenceDistance)
	}
	return nil
}

// DBSCAN returns the clustering parameters.
func (p Params) DBSCAN() DBSCANParams {
	return DBSCANParams{Eps: p.Eps, MinSamples: p.MinSamples}
}

// Outcome explains why an estimation did or did not produce a location.
type Outcome string

const (
	OutcomeOK                       Outcome = "ok"
	OutcomeInsufficientObservations Outcome = "insufficient_observations"
	OutcomeNoIntersections          Outcome = "no_intersections"
	OutcomeNoCluster                Outcome = "no_cluster"
)

// Result is the full outcome of one estimation call. Estimate is nil unless
// Outcome is OutcomeOK.
type Result struct {
	Estimate      *Estimate           `json:"estimate"`
	Outcome       Outcome             `json:"outcome"`
	Observations  []Observation       `json:"observations"`
	Rejected      []Rejection         `json:"rejected,omitempty"`
	Intersections []IntersectionPoint `json:"intersections"`
	Clusters      []Cluster           `json:"clusters,omitempty"`
	Selection     *Selection          `json:"selection,omitempty"`
	InsideHull    bool                `json:"insideHull"`
}

// Estimator runs the ray, intersection and consensus stages over one batch.
// It holds no mutable state and is safe for concurrent use.
type Estimator struct {
	params Params
	tracer Tracer
}

// NewEstimator creates an estimator. A nil tracer discards diagnostics.
func NewEstimator(params Params, tracer Tracer) *Estimator {
	if tracer == nil {
		tracer = NopTracer{}
	}
	return &Estimator{params: params.WithDefaults(), tracer: tracer}
}

// Params returns the effective parameters.
func (e *Estimator) Params() Params {
	return e.params
}

// EstimateRecords normalizes raw records, filtering by bounds when non-nil,
// and estimates a location from the surviving observations.
func (e *Estimator) EstimateRecords(records []RawRecord, bounds *Bounds) Result {
	observations, rejected := NormalizeRecords(records, e.params.ReferenceDistance, bounds)
	for _, r := range rejected {
		e.tracer.Rejected(r)
	}
	result := e.EstimateObservations(observations)
	result.Rejected = rejected
	return result
}

// EstimateObservations estimates a location from already normalized
// observations.
func (e *Estimator) EstimateObservations(observations []Observation) Result {
	result := Result{Observations: observations}

	if len(observations) < 2 {
		result.Outcome = OutcomeInsufficientObservations
		return result
	}

	result.Intersections = ComputeIntersections(observations, e.params.ParallelEpsilon)
	for _, p := range result.Intersections {
		e.tracer.Intersection(p)
	}
	if len(result.Intersections) == 0 {
		result.Outcome = OutcomeNoIntersections
		return result
	}

	selection, clusters := SelectConsensus(result.Intersections, e.params.DBSCAN())
	result.Clusters = clusters
	for _, c := range clusters {
		e.tracer.ClusterScored(c)
	}
	if selection == nil {
		result.Outcome = OutcomeNoCluster
		return result
	}

	estimate, ok := OriginCentroid(observations, selection.Contributors)
	if !ok {
		result.Outcome = OutcomeNoCluster
		return result
	}
	e.tracer.Selected(*selection, estimate)

	origins := make([]LatLon, len(observations))
	for i, obs := range observations {
		origins[i] = obs.Origin
	}

	result.Outcome = OutcomeOK
	result.Selection = selection
	result.Estimate = &estimate
	result.InsideHull = HullContains(origins, estimate.LatLon())
	return result
}

// Estimate is a convenience wrapper returning only the location, or nil.
func (e *Estimator) Estimate(records []RawRecord, bounds *Bounds) *Estimate {
	return e.EstimateRecords(records, bounds).Estimate
}
