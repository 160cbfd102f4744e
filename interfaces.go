package classifier

import (
	"context"
	"sync"
	"time"
)

// Frame is a captured input frame. It is opaque to the classification core and
// only handed through to the FeatureExtractor.
type Frame struct {
	// Data holds the raw frame bytes. MUST NOT be modified after it is returned by a FrameSource.
	Data []byte

	Width  int
	Height int

	// Timestamp when the frame was captured
	Timestamp time.Time

	// Seq is a monotonically increasing frame number assigned by the source
	Seq uint64
}

// Embedding is a feature vector lent by a FeatureExtractor for the duration of one tick.
// Release must be called exactly once when the tick is done with it; the loop does this
// on every exit path.
type Embedding struct {
	Vector []float32

	release func()
	once    sync.Once
}

// NewEmbedding wraps vector. release, if not nil, is invoked by the first call to Release.
func NewEmbedding(vector []float32, release func()) *Embedding {
	return &Embedding{Vector: vector, release: release}
}

// Release returns the embedding's buffer to its owner. Calls after the first are no-ops.
func (e *Embedding) Release() {
	if e == nil {
		return
	}
	e.once.Do(func() {
		if e.release != nil {
			e.release()
		}
	})
}

// FrameSource yields the current frame. It returns ErrUnavailable when no frame can be
// produced this tick (camera paused, no new data) and io.EOF when the source is exhausted.
type FrameSource interface {
	Frame(ctx context.Context) (*Frame, error)
}

// FeatureExtractor turns a frame into a fixed-dimension embedding.
type FeatureExtractor interface {
	Extract(ctx context.Context, frame *Frame) (*Embedding, error)
}

// TrainingSignal reports the label currently being trained, or NoLabel.
type TrainingSignal interface {
	Current() Label
}

// ActionSink receives transition events. OnTransition must not block the loop.
type ActionSink interface {
	OnTransition(label Label)
}

// Neighbor is a stored example returned by a nearest-neighbor query
type Neighbor struct {
	Label    Label
	Seq      uint64
	Distance float64
}

// NeighborIndex performs nearest-neighbor search over stored examples.
// Implementations must return neighbors ordered by ascending distance, ties by ascending Seq.
type NeighborIndex interface {
	Insert(ctx context.Context, ex Example) error
	Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Reset(ctx context.Context) error
}
