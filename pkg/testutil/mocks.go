package testutil

import (
	"context"
	"sync"

	classifier "github.com/FrenchMajesty/frame-classifier"
)

// MockFrameSource is a mock implementation of FrameSource for testing
type MockFrameSource struct {
	FrameFunc func(ctx context.Context) (*classifier.Frame, error)

	mu        sync.Mutex
	CallCount int
}

func (m *MockFrameSource) Frame(ctx context.Context) (*classifier.Frame, error) {
	m.mu.Lock()
	m.CallCount++
	seq := uint64(m.CallCount)
	m.mu.Unlock()

	if m.FrameFunc != nil {
		return m.FrameFunc(ctx)
	}

	// Default: an empty frame numbered by call
	return &classifier.Frame{Seq: seq}, nil
}

// MockExtractor is a mock implementation of FeatureExtractor for testing.
// It tracks every embedding it lends out so tests can assert release discipline.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, frame *classifier.Frame) ([]float32, error)

	mu           sync.Mutex
	CallCount    int
	LentCount    int
	ReleaseCount int
	LastFrame    *classifier.Frame
}

func (m *MockExtractor) Extract(ctx context.Context, frame *classifier.Frame) (*classifier.Embedding, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastFrame = frame
	m.mu.Unlock()

	vector := []float32{0, 0, 0}
	if m.ExtractFunc != nil {
		v, err := m.ExtractFunc(ctx, frame)
		if err != nil {
			return nil, err
		}
		vector = v
	}

	m.mu.Lock()
	m.LentCount++
	m.mu.Unlock()

	return classifier.NewEmbedding(vector, func() {
		m.mu.Lock()
		m.ReleaseCount++
		m.mu.Unlock()
	}), nil
}

// Outstanding returns embeddings lent out and not yet released
func (m *MockExtractor) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LentCount - m.ReleaseCount
}

// Counts returns the extract and release counts
func (m *MockExtractor) Counts() (calls, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount, m.ReleaseCount
}

// MockSink is a mock implementation of ActionSink that records transitions
type MockSink struct {
	OnTransitionFunc func(label classifier.Label)

	mu     sync.Mutex
	Labels []classifier.Label
}

func (m *MockSink) OnTransition(label classifier.Label) {
	m.mu.Lock()
	m.Labels = append(m.Labels, label)
	m.mu.Unlock()

	if m.OnTransitionFunc != nil {
		m.OnTransitionFunc(label)
	}
}

// Calls returns a copy of the recorded transitions
func (m *MockSink) Calls() []classifier.Label {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]classifier.Label(nil), m.Labels...)
}

// MockIndex is a mock implementation of NeighborIndex for testing
type MockIndex struct {
	InsertFunc  func(ctx context.Context, ex classifier.Example) error
	NearestFunc func(ctx context.Context, query []float32, k int) ([]classifier.Neighbor, error)
	ResetFunc   func(ctx context.Context) error

	mu         sync.Mutex
	Inserted   []classifier.Example
	NearestK   []int
	ResetCount int
}

func (m *MockIndex) Insert(ctx context.Context, ex classifier.Example) error {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ctx, ex); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.Inserted = append(m.Inserted, ex)
	m.mu.Unlock()
	return nil
}

func (m *MockIndex) Nearest(ctx context.Context, query []float32, k int) ([]classifier.Neighbor, error) {
	m.mu.Lock()
	m.NearestK = append(m.NearestK, k)
	m.mu.Unlock()

	if m.NearestFunc != nil {
		return m.NearestFunc(ctx, query, k)
	}

	// Default: every inserted example at distance 0, in insertion order
	m.mu.Lock()
	defer m.mu.Unlock()
	neighbors := make([]classifier.Neighbor, 0, len(m.Inserted))
	for _, ex := range m.Inserted {
		neighbors = append(neighbors, classifier.Neighbor{Label: ex.Label, Seq: ex.Seq})
	}
	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (m *MockIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.ResetCount++
	m.mu.Unlock()

	if m.ResetFunc != nil {
		if err := m.ResetFunc(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.Inserted = nil
	m.mu.Unlock()
	return nil
}

// Script is a TrainingSignal replaying a fixed sequence, one label per call.
// After the last entry it keeps returning NoLabel.
type Script struct {
	mu     sync.Mutex
	Labels []classifier.Label
	pos    int
}

func (s *Script) Current() classifier.Label {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.Labels) {
		return classifier.NoLabel
	}
	l := s.Labels[s.pos]
	s.pos++
	return l
}
