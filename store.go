package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// StoreOption configures an ExampleStore
type StoreOption func(*ExampleStore)

// WithIndex mirrors every accepted example into idx and serves Nearest from it.
func WithIndex(idx NeighborIndex) StoreOption {
	return func(s *ExampleStore) {
		s.index = idx
	}
}

// ExampleStore owns the per-class training examples.
//
// The frame loop is the only writer; readers such as a status display may call
// ClassCounts or TotalExamples concurrently.
type ExampleStore struct {
	numClasses int
	dim        int
	index      NeighborIndex

	mu      sync.RWMutex
	sets    [][]Example
	total   int
	nextSeq uint64
}

// NewExampleStore creates an empty store for numClasses classes of dim-dimensional vectors
func NewExampleStore(numClasses, dim int, opts ...StoreOption) (*ExampleStore, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: number of classes must be positive, got %d", ErrConfiguration, numClasses)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrConfiguration, dim)
	}

	s := &ExampleStore{
		numClasses: numClasses,
		dim:        dim,
		sets:       make([][]Example, numClasses),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NumClasses returns the configured class count
func (s *ExampleStore) NumClasses() int {
	return s.numClasses
}

// Dim returns the configured embedding dimension
func (s *ExampleStore) Dim() int {
	return s.dim
}

// AddExample stores a copy of vector under label. On error the store is unchanged.
func (s *ExampleStore) AddExample(ctx context.Context, label Label, vector []float32) (Example, error) {
	if !label.Valid(s.numClasses) {
		return Example{}, fmt.Errorf("%w: label %d out of range [0, %d)", ErrInvalidInput, label, s.numClasses)
	}
	if err := s.checkVector(vector); err != nil {
		return Example{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ex := Example{
		ID:     uuid.New().String(),
		Label:  label,
		Seq:    s.nextSeq,
		Vector: append([]float32(nil), vector...),
	}

	if s.index != nil {
		if err := s.index.Insert(ctx, ex); err != nil {
			return Example{}, fmt.Errorf("failed to index example: %w", err)
		}
	}

	s.sets[label] = append(s.sets[label], ex)
	s.total++
	s.nextSeq++
	return ex, nil
}

// ClassCounts returns the number of examples per class
func (s *ExampleStore) ClassCounts() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make([]int, s.numClasses)
	for i, set := range s.sets {
		counts[i] = len(set)
	}
	return counts
}

// TotalExamples returns the number of examples across all classes
func (s *ExampleStore) TotalExamples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Clear removes every example. Sequence numbers keep increasing afterwards.
func (s *ExampleStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}

	for i := range s.sets {
		s.sets[i] = nil
	}
	s.total = 0
	return nil
}

// Nearest returns up to k stored examples closest to query, ordered by ascending
// squared Euclidean distance with ties broken by insertion order.
func (s *ExampleStore) Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if err := s.checkVector(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}

	if s.index != nil {
		return s.index.Nearest(ctx, query, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	neighbors := make([]Neighbor, 0, s.total)
	for _, set := range s.sets {
		for _, ex := range set {
			neighbors = append(neighbors, Neighbor{
				Label:    ex.Label,
				Seq:      ex.Seq,
				Distance: SquaredEuclidean(query, ex.Vector),
			})
		}
	}

	SortNeighbors(neighbors)
	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (s *ExampleStore) checkVector(vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("%w: vector has %d components, want %d", ErrInvalidInput, len(vector), s.dim)
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrInvalidInput, i)
		}
	}
	return nil
}

// SquaredEuclidean returns the squared Euclidean distance between equal-length vectors
func SquaredEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// SortNeighbors orders neighbors by ascending distance, ties by ascending Seq
func SortNeighbors(neighbors []Neighbor) {
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Seq < neighbors[j].Seq
	})
}
