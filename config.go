package classifier

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultNumClasses is the number of classes when none is configured
	DefaultNumClasses = 3

	// DefaultK is the number of neighbors that vote on each prediction
	DefaultK = 10

	// DefaultTickRate is the loop's tick rate in ticks per second
	DefaultTickRate = 30.0
)

// Config holds configuration for the FrameLoop and the components it owns
type Config struct {
	// NumClasses is the number of class labels. If 0, uses DefaultNumClasses.
	NumClasses int

	// K is the neighbor count for voting. If 0, uses DefaultK.
	K int

	// Dim is the embedding dimension produced by the feature extractor. Required.
	Dim int

	// TickRate caps how many ticks Run executes per second. If 0, uses DefaultTickRate.
	TickRate float64

	// Index replaces exact nearest-neighbor search. If nil, the store searches its own examples.
	Index NeighborIndex

	// Logger receives loop diagnostics. If nil, logging is disabled.
	Logger *zap.Logger

	// Registerer receives the loop's Prometheus collectors. If nil, metrics are not exported.
	Registerer prometheus.Registerer
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.NumClasses == 0 {
		c.NumClasses = DefaultNumClasses
	}

	if c.K == 0 {
		c.K = DefaultK
	}

	if c.TickRate == 0 {
		c.TickRate = DefaultTickRate
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Validate rejects inconsistent values. Defaults are not applied.
func (c Config) Validate() error {
	if c.NumClasses <= 0 {
		return fmt.Errorf("%w: number of classes must be positive, got %d", ErrConfiguration, c.NumClasses)
	}
	if c.K <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrConfiguration, c.K)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrConfiguration, c.Dim)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate must be positive, got %g", ErrConfiguration, c.TickRate)
	}
	return nil
}
