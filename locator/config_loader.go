package locator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultObservationTopic is subscribed to when no topics are configured.
const DefaultObservationTopic = "firesight/observations/+"

// DefaultConfig returns a configuration with every default applied and no
// broker configured.
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			PublishPrefix: "firesight",
			ClientID:      "firesight",
		},
		Observations: ObservationConfig{
			Topics: []string{DefaultObservationTopic},
		},
		Estimator: DefaultParams(),
	}
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Estimator = config.Estimator.WithDefaults()
	if len(config.Observations.Topics) == 0 {
		config.Observations.Topics = []string{DefaultObservationTopic}
	}

	return config, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if err := c.Estimator.Validate(); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}
	if c.Bounds != nil {
		if err := c.Bounds.Validate(); err != nil {
			return err
		}
	}
	if c.Observations.MaxAge < 0 {
		return fmt.Errorf("observations.maxAge must not be negative, got %s", c.Observations.MaxAge)
	}
	if c.Store.Timeout < 0 || c.Store.Attempts < 0 {
		return fmt.Errorf("store.timeout and store.attempts must not be negative")
	}
	for i, topic := range c.Observations.Topics {
		if topic == "" {
			return fmt.Errorf("observations.topics[%d] is empty", i)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
