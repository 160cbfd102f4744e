// Package config provides configuration loading for frame-classifier.
package config

import (
	"fmt"

	"github.com/FrenchMajesty/frame-classifier/internal/logging"
)

// Index backends
const (
	BackendExact    = "exact"
	BackendChromem  = "chromem"
	BackendPinecone = "pinecone"
)

// Config is the process configuration.
type Config struct {
	Classifier ClassifierConfig `koanf:"classifier"`
	Index      IndexConfig      `koanf:"index"`
	Sink       SinkConfig       `koanf:"sink"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Log        logging.Config   `koanf:"log"`
}

// ClassifierConfig holds the classification core settings.
type ClassifierConfig struct {
	Classes  int     `koanf:"classes"`
	K        int     `koanf:"k"`
	Dim      int     `koanf:"dim"`
	TickRate float64 `koanf:"tick_rate"`
}

// IndexConfig selects the nearest-neighbor backend.
type IndexConfig struct {
	Backend           string `koanf:"backend"`
	PineconeAPIKey    string `koanf:"pinecone_api_key"`
	PineconeHost      string `koanf:"pinecone_host"`
	PineconeNamespace string `koanf:"pinecone_namespace"`
	PineconeMetric    string `koanf:"pinecone_metric"`
}

// SinkConfig controls transition delivery.
type SinkConfig struct {
	QueueSize int `koanf:"queue_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `koanf:"addr"`
}

// applyDefaults fills in zero values.
func applyDefaults(cfg *Config) {
	if cfg.Classifier.Classes == 0 {
		cfg.Classifier.Classes = 3
	}
	if cfg.Classifier.K == 0 {
		cfg.Classifier.K = 10
	}
	if cfg.Classifier.TickRate == 0 {
		cfg.Classifier.TickRate = 30
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendExact
	}
	if cfg.Sink.QueueSize == 0 {
		cfg.Sink.QueueSize = 8
	}

	logDefaults := logging.NewDefaultConfig()
	if cfg.Log.Level == "" {
		cfg.Log.Level = logDefaults.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = logDefaults.Format
	}
	if cfg.Log.Fields == nil {
		cfg.Log.Fields = logDefaults.Fields
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Classifier.Classes <= 0 {
		return fmt.Errorf("classifier.classes must be positive, got %d", c.Classifier.Classes)
	}
	if c.Classifier.K <= 0 {
		return fmt.Errorf("classifier.k must be positive, got %d", c.Classifier.K)
	}
	if c.Classifier.Dim <= 0 {
		return fmt.Errorf("classifier.dim must be positive, got %d", c.Classifier.Dim)
	}
	if c.Classifier.TickRate <= 0 {
		return fmt.Errorf("classifier.tick_rate must be positive, got %g", c.Classifier.TickRate)
	}
	if c.Sink.QueueSize < 0 {
		return fmt.Errorf("sink.queue_size must not be negative, got %d", c.Sink.QueueSize)
	}

	switch c.Index.Backend {
	case BackendExact, BackendChromem:
	case BackendPinecone:
		if c.Index.PineconeAPIKey == "" {
			return fmt.Errorf("index.pinecone_api_key is required for the pinecone backend")
		}
		if c.Index.PineconeHost == "" {
			return fmt.Errorf("index.pinecone_host is required for the pinecone backend")
		}
	default:
		return fmt.Errorf("index.backend must be one of %q, %q, %q, got %q",
			BackendExact, BackendChromem, BackendPinecone, c.Index.Backend)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
