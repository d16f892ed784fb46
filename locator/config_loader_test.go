package locator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://broker:1883
  publishPrefix: wildfire
observations:
  topics:
    - towers/+/bearing
  maxAge: 15m
  cachePath: /tmp/firesight.json
estimator:
  eps: 0.05
  minSamples: 4
bounds:
  southWest: {lat: 39, lon: -122}
  northEast: {lat: 40, lon: -121}
store:
  url: http://store.local/observations
  timeout: 5s
  attempts: 2
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("broker = %q", config.MQTT.Broker)
	}
	if config.MQTT.PublishPrefix != "wildfire" {
		t.Errorf("publishPrefix = %q", config.MQTT.PublishPrefix)
	}
	if config.MQTT.ClientID != "firesight" {
		t.Errorf("clientId = %q, want default firesight", config.MQTT.ClientID)
	}
	if len(config.Observations.Topics) != 1 || config.Observations.Topics[0] != "towers/+/bearing" {
		t.Errorf("topics = %v", config.Observations.Topics)
	}
	if config.Observations.MaxAge != 15*time.Minute {
		t.Errorf("maxAge = %v, want 15m", config.Observations.MaxAge)
	}
	if config.Estimator.Eps != 0.05 || config.Estimator.MinSamples != 4 {
		t.Errorf("estimator = %+v", config.Estimator)
	}
	if config.Estimator.ParallelEpsilon != DefaultParallelEpsilon {
		t.Errorf("parallelEpsilon = %v, want default", config.Estimator.ParallelEpsilon)
	}
	if config.Bounds == nil || config.Bounds.NorthEast.Lat != 40 {
		t.Errorf("bounds = %+v", config.Bounds)
	}
	if config.Store.URL != "http://store.local/observations" {
		t.Errorf("store url = %q", config.Store.URL)
	}
	if config.Store.Timeout != 5*time.Second || config.Store.Attempts != 2 {
		t.Errorf("store timeout/attempts = %v/%d, want 5s/2", config.Store.Timeout, config.Store.Attempts)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "observations:\n  topics: []\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(config.Observations.Topics) != 1 || config.Observations.Topics[0] != DefaultObservationTopic {
		t.Errorf("topics = %v, want default", config.Observations.Topics)
	}
	if config.Estimator != DefaultParams() {
		t.Errorf("estimator = %+v, want defaults", config.Estimator)
	}
	if config.Bounds != nil {
		t.Errorf("bounds = %+v, want nil", config.Bounds)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "mqtt: [", "parsing config YAML"},
		{"negative eps", "estimator:\n  eps: -1\n", "estimator: eps"},
		{"bad bounds", "bounds:\n  southWest: {lat: 41, lon: -122}\n  northEast: {lat: 40, lon: -121}\n", "bounds"},
		{"negative max age", "observations:\n  maxAge: -5m\n", "maxAge"},
		{"empty topic", "observations:\n  topics: [\"\"]\n", "topics[0] is empty"},
		{"negative store attempts", "store:\n  attempts: -1\n", "store.attempts"},
		{"parallel epsilon of one", "estimator:\n  parallelEpsilon: 1\n", "parallelEpsilon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("missing file err = %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	config := DefaultConfig()
	config.MQTT.Broker = "tcp://localhost:1883"
	config.Observations.MaxAge = time.Hour
	config.Bounds = &Bounds{
		SouthWest: LatLon{Lat: 39, Lon: -122},
		NorthEast: LatLon{Lat: 40, Lon: -121},
	}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := SaveConfig(path, config); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.MQTT.Broker != config.MQTT.Broker || loaded.Observations.MaxAge != time.Hour {
		t.Errorf("loaded = %+v", loaded)
	}
	if *loaded.Bounds != *config.Bounds {
		t.Errorf("bounds = %+v, want %+v", loaded.Bounds, config.Bounds)
	}
}
