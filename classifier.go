package classifier

import (
	"context"
	"fmt"
)

// Classifier answers k-nearest-neighbor queries against an ExampleStore
type Classifier struct {
	store *ExampleStore
	k     int
}

// NewClassifier creates a Classifier voting among k neighbors
func NewClassifier(store *ExampleStore, k int) (*Classifier, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: example store is required", ErrConfiguration)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrConfiguration, k)
	}
	return &Classifier{store: store, k: k}, nil
}

// K returns the configured neighbor count
func (c *Classifier) K() int {
	return c.k
}

// Predict classifies query using the configured K
func (c *Classifier) Predict(ctx context.Context, query []float32) (*Result, error) {
	return c.PredictK(ctx, query, c.k)
}

// PredictK classifies query by a vote among min(k, total examples) nearest neighbors.
//
// An empty store yields a Result labelled NoLabel with all-zero confidences.
// Equal vote counts resolve to the smallest label.
func (c *Classifier) PredictK(ctx context.Context, query []float32, k int) (*Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}
	if err := c.store.checkVector(query); err != nil {
		return nil, err
	}

	numClasses := c.store.NumClasses()
	result := &Result{
		Label:       NoLabel,
		Confidences: make([]float64, numClasses),
		Counts:      c.store.ClassCounts(),
	}

	total := 0
	for _, n := range result.Counts {
		total += n
	}
	if total == 0 {
		return result, nil
	}

	effectiveK := min(k, total)
	neighbors, err := c.store.Nearest(ctx, query, effectiveK)
	if err != nil {
		return nil, fmt.Errorf("failed to search neighbors: %w", err)
	}
	if len(neighbors) > effectiveK {
		neighbors = neighbors[:effectiveK]
	}

	votes := make([]int, numClasses)
	voters := 0
	for _, n := range neighbors {
		if !n.Label.Valid(numClasses) {
			continue
		}
		votes[n.Label]++
		voters++
	}
	if voters == 0 {
		return nil, fmt.Errorf("%w: index returned no neighbors for %d examples", ErrUnavailable, total)
	}

	best := 0
	for label, v := range votes {
		result.Confidences[label] = float64(v) / float64(voters)
		if v > votes[best] {
			best = label
		}
	}
	result.Label = Label(best)
	result.Neighbors = voters

	return result, nil
}
