package locator

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// LatLon is a geographic coordinate in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// OrbPoint returns the coordinate as an orb.Point ([lon, lat] order).
func (ll LatLon) OrbPoint() orb.Point {
	return orb.Point{ll.Lon, ll.Lat}
}

// Planar returns the coordinate in the planar solve frame (X = lon, Y = lat).
func (ll LatLon) Planar() Point {
	return Point{X: ll.Lon, Y: ll.Lat}
}

func (ll LatLon) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", ll.Lat, ll.Lon)
}

// latLonFromOrb converts an orb.Point back to a LatLon.
func latLonFromOrb(p orb.Point) LatLon {
	return LatLon{Lat: p.Lat(), Lon: p.Lon()}
}

// Point is a 2D coordinate in the planar solve frame.
// X is longitude and Y is latitude, both in degrees.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DirectionSource records how an observation's direction was supplied.
type DirectionSource string

const (
	DirectionVector       DirectionSource = "vector"
	DirectionAzimuth      DirectionSource = "azimuth"
	DirectionMagnetometer DirectionSource = "magnetometer"
)

// Observation is one observer's reported position and facing direction.
// Through is a second point on the ray, ahead of Origin in the facing
// direction. Observations are values and are never mutated after
// construction.
type Observation struct {
	ID      string          `json:"id,omitempty"`
	Origin  LatLon          `json:"origin"`
	Through LatLon          `json:"through"`
	Azimuth float64         `json:"azimuth"` // degrees clockwise from north, [0, 360)
	Source  DirectionSource `json:"source"`
}

// Line returns the line from the observation's origin through its directed
// second point.
func (o Observation) Line() Line {
	return LineThrough(o.Origin.Planar(), o.Through.Planar())
}

// IntersectionPoint is the crossing of two observation rays, tagged with the
// indices of the observations that produced it. Pair[0] < Pair[1].
type IntersectionPoint struct {
	Point Point  `json:"point"`
	Pair  [2]int `json:"pair"`
}

// Cluster is a group of intersection points sharing a DBSCAN label.
// Score is the mean pairwise distance between members; lower is tighter.
type Cluster struct {
	Label  int                 `json:"label"`
	Points []IntersectionPoint `json:"points"`
	Score  float64             `json:"score"`
}

// Selection is the winning cluster and the observations that produced it.
type Selection struct {
	Cluster      Cluster `json:"cluster"`
	Contributors []int   `json:"contributors"`
}

// Estimate is the final fire location: the centroid of the contributing
// observers' reported positions.
type Estimate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LatLon returns the estimate as a LatLon.
func (e Estimate) LatLon() LatLon {
	return LatLon{Lat: e.Lat, Lon: e.Lon}
}

// Config represents the full configuration file
type Config struct {
	MQTT         MQTTConfig        `yaml:"mqtt" json:"mqtt"`
	Observations ObservationConfig `yaml:"observations" json:"observations"`
	Estimator    Params            `yaml:"estimator" json:"estimator"`
	Bounds       *Bounds           `yaml:"bounds,omitempty" json:"bounds,omitempty"`
	Store        StoreConfig       `yaml:"store,omitempty" json:"store,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// ObservationConfig controls where observations come from and how long they
// stay eligible for estimation.
type ObservationConfig struct {
	Topics    []string      `yaml:"topics" json:"topics"`
	MaxAge    time.Duration `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
	CachePath string        `yaml:"cachePath,omitempty" json:"cachePath,omitempty"`
}

// StoreConfig points at an optional remote observation store.
type StoreConfig struct {
	URL      string        `yaml:"url,omitempty" json:"url,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Attempts int           `yaml:"attempts,omitempty" json:"attempts,omitempty"`
}
