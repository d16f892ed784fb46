package locator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb/geo"
)

// DefaultReferenceDistance is how far (in meters) an azimuth is walked from
// the origin to obtain the ray's second point.
const DefaultReferenceDistance = 100000.0

// ErrDegenerateDirection is returned for a zero direction vector or a
// magnetometer reading with no horizontal component.
var ErrDegenerateDirection = errors.New("direction is degenerate")

// ErrOutOfBounds marks a record whose origin lies outside the requested bounds.
var ErrOutOfBounds = errors.New("origin outside bounds")

// MissingFieldError reports a required record field that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// FieldRangeError reports a field whose value is non-finite or out of range.
type FieldRangeError struct {
	Field string
	Value float64
}

func (e *FieldRangeError) Error() string {
	return fmt.Sprintf("field %q out of range: %v", e.Field, e.Value)
}

// Rejection records an input record that was dropped during normalization.
type Rejection struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   error  `json:"-"`
}

// Reason returns the rejection error text, for JSON output and logs.
func (r Rejection) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON includes the rejection reason as text.
func (r Rejection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Index  int    `json:"index"`
		ID     string `json:"id,omitempty"`
		Reason string `json:"reason"`
	}{r.Index, r.ID, r.Reason()})
}

// MagnetometerAzimuth converts a flat-held magnetometer reading into a
// bearing in degrees [0, 360). The z component is ignored.
func MagnetometerAzimuth(x, y float64) float64 {
	return NormalizeAngle(math.Atan2(y, x) * 180 / math.Pi)
}

// DestinationPoint walks distance meters from origin along bearing (degrees
// clockwise from north) on the sphere.
func DestinationPoint(origin LatLon, bearing, distance float64) LatLon {
	return latLonFromOrb(geo.PointAtBearingAndDistance(origin.OrbPoint(), bearing, distance))
}

// NewObservation builds an observation from an origin and a bearing. The
// second point is placed referenceDistance meters along the bearing.
func NewObservation(id string, origin LatLon, azimuth, referenceDistance float64) (Observation, error) {
	if err := validateOrigin(origin); err != nil {
		return Observation{}, err
	}
	if !isFinite(azimuth) {
		return Observation{}, &FieldRangeError{Field: "azimuth", Value: azimuth}
	}
	if referenceDistance <= 0 {
		referenceDistance = DefaultReferenceDistance
	}
	azimuth = NormalizeAngle(azimuth)
	return Observation{
		ID:      id,
		Origin:  origin,
		Through: DestinationPoint(origin, azimuth, referenceDistance),
		Azimuth: azimuth,
		Source:  DirectionAzimuth,
	}, nil
}

// NewVectorObservation builds an observation from an origin and a planar
// direction vector (dx east in degrees of longitude, dy north in degrees of
// latitude).
func NewVectorObservation(id string, origin LatLon, dx, dy float64) (Observation, error) {
	if err := validateOrigin(origin); err != nil {
		return Observation{}, err
	}
	if !isFinite(dx) {
		return Observation{}, &FieldRangeError{Field: "direction.dx", Value: dx}
	}
	if !isFinite(dy) {
		return Observation{}, &FieldRangeError{Field: "direction.dy", Value: dy}
	}
	if dx == 0 && dy == 0 {
		return Observation{}, ErrDegenerateDirection
	}
	return Observation{
		ID:      id,
		Origin:  origin,
		Through: LatLon{Lat: origin.Lat + dy, Lon: origin.Lon + dx},
		Azimuth: NormalizeAngle(math.Atan2(dx, dy) * 180 / math.Pi),
		Source:  DirectionVector,
	}, nil
}

// NewMagnetometerObservation builds an observation from a raw magnetometer
// triple. The device is assumed to be held flat.
func NewMagnetometerObservation(id string, origin LatLon, mag [3]float64, referenceDistance float64) (Observation, error) {
	for i, v := range mag {
		if !isFinite(v) {
			return Observation{}, &FieldRangeError{Field: fmt.Sprintf("magnetometer[%d]", i), Value: v}
		}
	}
	if mag[0] == 0 && mag[1] == 0 {
		return Observation{}, ErrDegenerateDirection
	}
	obs, err := NewObservation(id, origin, MagnetometerAzimuth(mag[0], mag[1]), referenceDistance)
	if err != nil {
		return Observation{}, err
	}
	obs.Source = DirectionMagnetometer
	return obs, nil
}

func validateOrigin(origin LatLon) error {
	if !isFinite(origin.Lat) || origin.Lat < -90 || origin.Lat > 90 {
		return &FieldRangeError{Field: "latitude", Value: origin.Lat}
	}
	if !isFinite(origin.Lon) || origin.Lon < -180 || origin.Lon > 180 {
		return &FieldRangeError{Field: "longitude", Value: origin.Lon}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
