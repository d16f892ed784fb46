package locator

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RawRecord is an observation record as it arrives from ingestion: a loosely
// typed JSON object. Several historical key spellings are accepted.
type RawRecord map[string]interface{}

var (
	latitudeKeys     = []string{"latitude", "lat"}
	longitudeKeys    = []string{"longitude", "lng", "lon"}
	idKeys           = []string{"id", "observerId"}
	magnetometerKeys = []string{"magnetometer", "gyroscope"}
)

// ID returns the observer identifier carried by the record, if any.
func (r RawRecord) ID() string {
	for _, k := range idKeys {
		if v, ok := r[k]; ok {
			switch id := v.(type) {
			case string:
				return id
			case float64:
				return strconv.FormatFloat(id, 'f', -1, 64)
			}
		}
	}
	return ""
}

// lookup returns the first value present under any of keys, and the key used.
func (r RawRecord) lookup(keys []string) (interface{}, string, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

// Origin returns the observer position carried by the record, unvalidated.
func (r RawRecord) Origin() (LatLon, error) {
	latRaw, _, ok := r.lookup(latitudeKeys)
	if !ok {
		return LatLon{}, &MissingFieldError{Field: "latitude"}
	}
	lonRaw, _, ok := r.lookup(longitudeKeys)
	if !ok {
		return LatLon{}, &MissingFieldError{Field: "longitude"}
	}
	lat, err := toFloat("latitude", latRaw)
	if err != nil {
		return LatLon{}, err
	}
	lon, err := toFloat("longitude", lonRaw)
	if err != nil {
		return LatLon{}, err
	}
	return LatLon{Lat: lat, Lon: lon}, nil
}

// ToObservation normalizes a raw record into an Observation.
//
// Direction precedence is direction vector, then azimuth, then magnetometer.
// A missing coordinate or direction yields a *MissingFieldError.
func (r RawRecord) ToObservation(referenceDistance float64) (Observation, error) {
	id := r.ID()
	origin, err := r.Origin()
	if err != nil {
		return Observation{}, err
	}

	if v, ok := r["direction"]; ok && v != nil {
		vec, err := toVector("direction", v, 2)
		if err != nil {
			return Observation{}, err
		}
		return NewVectorObservation(id, origin, vec[0], vec[1])
	}

	if v, ok := r["azimuth"]; ok && v != nil {
		az, err := toFloat("azimuth", v)
		if err != nil {
			return Observation{}, err
		}
		return NewObservation(id, origin, az, referenceDistance)
	}

	if v, key, ok := r.lookup(magnetometerKeys); ok {
		vec, err := toVector(key, v, 3)
		if err != nil {
			return Observation{}, err
		}
		return NewMagnetometerObservation(id, origin, [3]float64{vec[0], vec[1], vec[2]}, referenceDistance)
	}

	return Observation{}, &MissingFieldError{Field: "direction"}
}

// NormalizeRecords converts raw records into observations. Records that fail
// validation, or whose origin lies outside bounds (when bounds is non-nil),
// are returned as rejections and never abort the batch.
func NormalizeRecords(records []RawRecord, referenceDistance float64, bounds *Bounds) ([]Observation, []Rejection) {
	observations := make([]Observation, 0, len(records))
	var rejected []Rejection

	for i, rec := range records {
		obs, err := rec.ToObservation(referenceDistance)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, ID: rec.ID(), Err: err})
			continue
		}
		if bounds != nil && !bounds.Contains(obs.Origin) {
			rejected = append(rejected, Rejection{Index: i, ID: obs.ID, Err: ErrOutOfBounds})
			continue
		}
		observations = append(observations, obs)
	}

	return observations, rejected
}

// toFloat coerces a decoded JSON/YAML scalar to float64.
func toFloat(field string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q: unsupported type %T", field, v)
	}
}

// toVector accepts either a JSON array or an object with dx/dy or x/y/z keys.
func toVector(field string, v interface{}, n int) ([]float64, error) {
	out := make([]float64, n)
	switch vec := v.(type) {
	case []interface{}:
		if len(vec) < n {
			return nil, fmt.Errorf("field %q: want %d components, got %d", field, n, len(vec))
		}
		for i := 0; i < n; i++ {
			f, err := toFloat(fmt.Sprintf("%s[%d]", field, i), vec[i])
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	case map[string]interface{}:
		keys := []string{"x", "y", "z"}
		if n == 2 {
			if _, ok := vec["dx"]; ok {
				keys = []string{"dx", "dy"}
			}
		}
		for i := 0; i < n; i++ {
			raw, ok := vec[keys[i]]
			if !ok {
				return nil, &MissingFieldError{Field: field + "." + keys[i]}
			}
			f, err := toFloat(field+"."+keys[i], raw)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported type %T", field, v)
	}
}
