package replay

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	classifier "github.com/FrenchMajesty/frame-classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recording = `{"train": 2, "vector": [0.5, 1]}

{"vector": [1, 0.5]}
{"train": -1}
{"paused": true, "train": 1}
`

func TestSession_Playback(t *testing.T) {
	ctx := context.Background()
	s := NewSession(strings.NewReader(recording))

	// Frame 1: training class 2 with an embedding
	frame, err := s.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, classifier.Label(2), s.Current())

	emb, err := s.Extract(ctx, frame)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1}, emb.Vector)
	assert.Equal(t, int64(1), s.Outstanding())
	emb.Release()
	emb.Release()
	assert.Equal(t, int64(0), s.Outstanding())

	// Frame 2: blank lines are skipped, nothing trained
	frame, err = s.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), frame.Seq)
	assert.Equal(t, classifier.NoLabel, s.Current())

	// Frame 3: no embedding recorded
	frame, err = s.Frame(ctx)
	require.NoError(t, err)
	_, err = s.Extract(ctx, frame)
	assert.ErrorIs(t, err, classifier.ErrUnavailable)
	assert.Equal(t, classifier.NoLabel, s.Current())

	// Frame 4: paused
	_, err = s.Frame(ctx)
	assert.ErrorIs(t, err, classifier.ErrUnavailable)

	_, err = s.Frame(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSession_ExtractCopiesVector(t *testing.T) {
	ctx := context.Background()
	s := NewSession(strings.NewReader(`{"vector": [1, 2, 3]}`))

	frame, err := s.Frame(ctx)
	require.NoError(t, err)

	first, err := s.Extract(ctx, frame)
	require.NoError(t, err)
	first.Vector[0] = 99

	second, err := s.Extract(ctx, frame)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, second.Vector)

	first.Release()
	second.Release()
	assert.Zero(t, s.Outstanding())
}

func TestSession_StaleFrame(t *testing.T) {
	ctx := context.Background()
	s := NewSession(strings.NewReader("{\"vector\": [1]}\n{\"vector\": [2]}\n"))

	stale, err := s.Frame(ctx)
	require.NoError(t, err)
	_, err = s.Frame(ctx)
	require.NoError(t, err)

	_, err = s.Extract(ctx, stale)
	assert.ErrorIs(t, err, classifier.ErrUnavailable)

	_, err = s.Extract(ctx, nil)
	assert.ErrorIs(t, err, classifier.ErrUnavailable)
}

func TestSession_MalformedLine(t *testing.T) {
	s := NewSession(strings.NewReader("{\"vector\": [1]}\nnot json\n"))

	_, err := s.Frame(context.Background())
	require.NoError(t, err)

	_, err = s.Frame(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode frame 2")
	assert.False(t, errors.Is(err, io.EOF))
}

func TestSession_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession(strings.NewReader(recording))
	_, err := s.Frame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Extract(ctx, &classifier.Frame{Seq: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_DrivesFrameLoop(t *testing.T) {
	s := NewSession(strings.NewReader(`{"train": 0, "vector": [0, 0]}
{"train": 0, "vector": [0, 1]}
{"train": 1, "vector": [5, 5]}
{"vector": [4, 4]}
{"vector": [0, 0.5]}
`))

	var transitions []classifier.Label
	loop, err := classifier.NewFrameLoop(classifier.Config{NumClasses: 2, K: 1, Dim: 2, TickRate: 1000},
		classifier.Dependencies{
			Source:    s,
			Extractor: s,
			Training:  s,
			Sink: sinkFunc(func(label classifier.Label) {
				transitions = append(transitions, label)
			}),
		})
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []classifier.Label{0, 1, 0}, transitions)
	assert.Equal(t, []int{2, 1}, loop.Store().ClassCounts())
	assert.Zero(t, s.Outstanding())
}

type sinkFunc func(label classifier.Label)

func (f sinkFunc) OnTransition(label classifier.Label) { f(label) }
