package locator

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestRawRecord_ID(t *testing.T) {
	tests := []struct {
		name string
		rec  RawRecord
		want string
	}{
		{"id", RawRecord{"id": "cam-7"}, "cam-7"},
		{"observerId", RawRecord{"observerId": "phone"}, "phone"},
		{"numeric", RawRecord{"id": 12.0}, "12"},
		{"missing", RawRecord{}, ""},
		{"unsupported type", RawRecord{"id": true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRawRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name       string
		rec        RawRecord
		wantSource DirectionSource
		wantAz     float64
		wantErr    bool
	}{
		{
			name:       "azimuth with long keys",
			rec:        RawRecord{"latitude": 39.8, "longitude": -121.6, "azimuth": 45.0},
			wantSource: DirectionAzimuth,
			wantAz:     45,
		},
		{
			name:       "short keys and string numbers",
			rec:        RawRecord{"lat": "39.8", "lng": "-121.6", "azimuth": "400"},
			wantSource: DirectionAzimuth,
			wantAz:     40,
		},
		{
			name:       "lon spelling",
			rec:        RawRecord{"lat": 39.8, "lon": -121.6, "azimuth": 0.0},
			wantSource: DirectionAzimuth,
			wantAz:     0,
		},
		{
			name:       "direction array",
			rec:        RawRecord{"lat": 1.0, "lng": 1.0, "direction": []interface{}{0.0, -1.0}},
			wantSource: DirectionVector,
			wantAz:     180,
		},
		{
			name:       "direction object",
			rec:        RawRecord{"lat": 1.0, "lng": 1.0, "direction": map[string]interface{}{"dx": -1.0, "dy": 0.0}},
			wantSource: DirectionVector,
			wantAz:     270,
		},
		{
			name:       "direction wins over azimuth",
			rec:        RawRecord{"lat": 1.0, "lng": 1.0, "azimuth": 10.0, "direction": []interface{}{1.0, 0.0}},
			wantSource: DirectionVector,
			wantAz:     90,
		},
		{
			name:       "azimuth wins over magnetometer",
			rec:        RawRecord{"lat": 1.0, "lng": 1.0, "azimuth": 10.0, "magnetometer": []interface{}{0.0, 1.0, 0.0}},
			wantSource: DirectionAzimuth,
			wantAz:     10,
		},
		{
			name:       "magnetometer object",
			rec:        RawRecord{"lat": 1.0, "lng": 1.0, "magnetometer": map[string]interface{}{"x": 0.0, "y": 1.0, "z": 3.0}},
			wantSource: DirectionMagnetometer,
			wantAz:     90,
		},
		{
			name:       "gyroscope spelling",
			rec:        RawRecord{"lat": 1.0, "lng": 1.0, "gyroscope": []interface{}{1.0, 0.0, 0.0}},
			wantSource: DirectionMagnetometer,
			wantAz:     0,
		},
		{
			name:    "bad string number",
			rec:     RawRecord{"lat": "north", "lng": 1.0, "azimuth": 0.0},
			wantErr: true,
		},
		{
			name:    "short direction array",
			rec:     RawRecord{"lat": 1.0, "lng": 1.0, "direction": []interface{}{1.0}},
			wantErr: true,
		},
		{
			name:    "direction of wrong type",
			rec:     RawRecord{"lat": 1.0, "lng": 1.0, "direction": "north"},
			wantErr: true,
		},
		{
			name:    "infinite azimuth",
			rec:     RawRecord{"lat": 1.0, "lng": 1.0, "azimuth": math.Inf(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := tt.rec.ToObservation(DefaultReferenceDistance)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", obs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obs.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", obs.Source, tt.wantSource)
			}
			if math.Abs(obs.Azimuth-tt.wantAz) > 1e-9 {
				t.Errorf("azimuth = %v, want %v", obs.Azimuth, tt.wantAz)
			}
		})
	}
}

func TestRawRecord_ToObservationMissingFields(t *testing.T) {
	tests := []struct {
		name      string
		rec       RawRecord
		wantField string
	}{
		{"no latitude", RawRecord{"lng": 1.0, "azimuth": 0.0}, "latitude"},
		{"no longitude", RawRecord{"lat": 1.0, "azimuth": 0.0}, "longitude"},
		{"null latitude", RawRecord{"lat": nil, "lng": 1.0, "azimuth": 0.0}, "latitude"},
		{"no direction", RawRecord{"lat": 1.0, "lng": 1.0}, "direction"},
		{"vector missing dy", RawRecord{"lat": 1.0, "lng": 1.0, "direction": map[string]interface{}{"dx": 1.0}}, "direction.dy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rec.ToObservation(0)
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("err = %v, want *MissingFieldError", err)
			}
			if missing.Field != tt.wantField {
				t.Errorf("field = %q, want %q", missing.Field, tt.wantField)
			}
		})
	}
}

func TestRawRecord_JSONNumbers(t *testing.T) {
	var rec RawRecord
	dec := json.NewDecoder(strings.NewReader(`{"lat": 39.5, "lng": -121.25, "direction": [1, 2]}`))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}

	obs, err := rec.ToObservation(0)
	if err != nil {
		t.Fatalf("ToObservation: %v", err)
	}
	if obs.Origin != (LatLon{Lat: 39.5, Lon: -121.25}) {
		t.Errorf("origin = %v", obs.Origin)
	}
	if obs.Through != (LatLon{Lat: 41.5, Lon: -120.25}) {
		t.Errorf("through = %v", obs.Through)
	}
}

func TestNormalizeRecords(t *testing.T) {
	records := []RawRecord{
		{"id": "a", "lat": 39.8, "lng": -121.6, "azimuth": 90.0},
		{"id": "b", "lat": 39.8},
		{"id": "c", "lat": 10.0, "lng": 10.0, "azimuth": 90.0},
		{"id": "d", "lat": 39.9, "lng": -121.2, "direction": []interface{}{0.0, 0.0}},
		{"id": "e", "lat": 39.7, "lng": -121.3, "azimuth": 0.0},
	}
	bounds := &Bounds{
		SouthWest: LatLon{Lat: 39, Lon: -122},
		NorthEast: LatLon{Lat: 40, Lon: -121},
	}

	observations, rejected := NormalizeRecords(records, 0, bounds)

	if len(observations) != 2 || observations[0].ID != "a" || observations[1].ID != "e" {
		t.Fatalf("observations = %+v, want a and e", observations)
	}
	if len(rejected) != 3 {
		t.Fatalf("got %d rejections, want 3", len(rejected))
	}

	wantIdx := []int{1, 2, 3}
	for i, r := range rejected {
		if r.Index != wantIdx[i] {
			t.Errorf("rejection %d index = %d, want %d", i, r.Index, wantIdx[i])
		}
	}
	if !errors.Is(rejected[1].Err, ErrOutOfBounds) {
		t.Errorf("rejection c err = %v, want ErrOutOfBounds", rejected[1].Err)
	}
	if !errors.Is(rejected[2].Err, ErrDegenerateDirection) {
		t.Errorf("rejection d err = %v, want ErrDegenerateDirection", rejected[2].Err)
	}

	// without bounds the far record is kept
	observations, _ = NormalizeRecords(records, 0, nil)
	if len(observations) != 3 {
		t.Errorf("unbounded observations = %d, want 3", len(observations))
	}
}
