package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Bounds is a geographic rectangle used to pre-filter which observations take
// part in one estimation call. It is always passed explicitly.
type Bounds struct {
	SouthWest LatLon `yaml:"southWest" json:"southWest"`
	NorthEast LatLon `yaml:"northEast" json:"northEast"`
}

// Validate checks that the corners are in range and ordered.
func (b Bounds) Validate() error {
	if err := validateOrigin(b.SouthWest); err != nil {
		return fmt.Errorf("bounds.southWest: %w", err)
	}
	if err := validateOrigin(b.NorthEast); err != nil {
		return fmt.Errorf("bounds.northEast: %w", err)
	}
	if b.SouthWest.Lat > b.NorthEast.Lat {
		return fmt.Errorf("bounds: southWest.lat %.6f is north of northEast.lat %.6f", b.SouthWest.Lat, b.NorthEast.Lat)
	}
	if b.SouthWest.Lon > b.NorthEast.Lon {
		return fmt.Errorf("bounds: southWest.lon %.6f is east of northEast.lon %.6f", b.SouthWest.Lon, b.NorthEast.Lon)
	}
	return nil
}

// Bound returns the rectangle as an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.OrbPoint(), Max: b.NorthEast.OrbPoint()}
}

// Contains reports whether ll lies inside or on the edge of the rectangle.
func (b Bounds) Contains(ll LatLon) bool {
	return b.Bound().Contains(ll.OrbPoint())
}

// ParseBounds parses two "lat,lon" corner strings.
func ParseBounds(southWest, northEast string) (*Bounds, error) {
	sw, err := parseLatLon(southWest)
	if err != nil {
		return nil, fmt.Errorf("parsing southWest: %w", err)
	}
	ne, err := parseLatLon(northEast)
	if err != nil {
		return nil, fmt.Errorf("parsing northEast: %w", err)
	}
	b := &Bounds{SouthWest: sw, NorthEast: ne}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func parseLatLon(s string) (LatLon, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLon{}, fmt.Errorf("want \"lat,lon\", got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLon{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLon{}, fmt.Errorf("longitude: %w", err)
	}
	return LatLon{Lat: lat, Lon: lon}, nil
}
