package chromem

import (
	"context"
	"fmt"
	"testing"

	classifier "github.com/FrenchMajesty/frame-classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(nil)
	require.NoError(t, err)
	return idx
}

func insert(t *testing.T, idx *Index, id string, label classifier.Label, seq uint64, vector ...float32) {
	t.Helper()
	require.NoError(t, idx.Insert(context.Background(), classifier.Example{
		ID:     id,
		Label:  label,
		Seq:    seq,
		Vector: vector,
	}))
}

func TestIndex_Nearest(t *testing.T) {
	idx := newTestIndex(t)
	insert(t, idx, "east", 0, 0, 1, 0)
	insert(t, idx, "north", 1, 1, 0, 1)
	insert(t, idx, "north-east", 2, 2, 1, 1)

	neighbors, err := idx.Nearest(context.Background(), []float32{2, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	assert.Equal(t, classifier.Label(0), neighbors[0].Label)
	assert.Equal(t, classifier.Label(2), neighbors[1].Label)
	assert.Less(t, neighbors[0].Distance, neighbors[1].Distance)
	assert.GreaterOrEqual(t, neighbors[0].Distance, -1e-6)
}

func TestIndex_Nearest_ClampsToCount(t *testing.T) {
	idx := newTestIndex(t)

	neighbors, err := idx.Nearest(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, neighbors)

	insert(t, idx, "a", 1, 0, 1, 0)
	neighbors, err = idx.Nearest(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, neighbors, 1)
}

func TestIndex_Nearest_TiesBySeq(t *testing.T) {
	idx := newTestIndex(t)
	insert(t, idx, "late", 1, 5, 2, 0)
	insert(t, idx, "early", 0, 3, 1, 0)

	neighbors, err := idx.Nearest(context.Background(), []float32{3, 0}, 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, uint64(3), neighbors[0].Seq)
	assert.Equal(t, uint64(5), neighbors[1].Seq)
}

func TestIndex_Nearest_TiesBeyondK(t *testing.T) {
	idx := newTestIndex(t)
	for _, seq := range []uint64{5, 2, 7, 0, 3, 6, 1, 4} {
		insert(t, idx, fmt.Sprintf("ex-%d", seq), classifier.Label(seq%3), seq, 1, 1)
	}
	// closer than every tied example
	insert(t, idx, "exact", 2, 8, 1, 0)

	for range 50 {
		neighbors, err := idx.Nearest(context.Background(), []float32{1, 0.1}, 1)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, uint64(8), neighbors[0].Seq)

		neighbors, err = idx.Nearest(context.Background(), []float32{1, 1}, 3)
		require.NoError(t, err)
		require.Len(t, neighbors, 3)
		assert.Equal(t, []uint64{0, 1, 2}, []uint64{neighbors[0].Seq, neighbors[1].Seq, neighbors[2].Seq})
		assert.Equal(t, []classifier.Label{0, 1, 2}, []classifier.Label{neighbors[0].Label, neighbors[1].Label, neighbors[2].Label})
	}
}

func TestIndex_DoesNotMutateVectors(t *testing.T) {
	idx := newTestIndex(t)
	vector := []float32{3, 4}
	require.NoError(t, idx.Insert(context.Background(), classifier.Example{ID: "a", Vector: vector}))
	assert.Equal(t, []float32{3, 4}, vector)

	query := []float32{6, 8}
	_, err := idx.Nearest(context.Background(), query, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 8}, query)
}

func TestIndex_RejectsZeroVectors(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Insert(context.Background(), classifier.Example{ID: "zero", Vector: []float32{0, 0}})
	assert.ErrorIs(t, err, classifier.ErrInvalidInput)

	_, err = idx.Nearest(context.Background(), []float32{0, 0}, 1)
	assert.ErrorIs(t, err, classifier.ErrInvalidInput)

	_, err = idx.Nearest(context.Background(), []float32{1, 0}, 0)
	assert.ErrorIs(t, err, classifier.ErrInvalidInput)
}

func TestIndex_Reset(t *testing.T) {
	idx := newTestIndex(t)
	insert(t, idx, "a", 0, 0, 1, 0)
	insert(t, idx, "b", 1, 1, 0, 1)
	require.Equal(t, 2, idx.Count())

	require.NoError(t, idx.Reset(context.Background()))
	assert.Equal(t, 0, idx.Count())

	insert(t, idx, "a", 1, 2, 1, 0)
	assert.Equal(t, 1, idx.Count())
}

func TestIndex_BacksExampleStore(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	store, err := classifier.NewExampleStore(2, 2, classifier.WithIndex(idx))
	require.NoError(t, err)
	clf, err := classifier.NewClassifier(store, 3)
	require.NoError(t, err)

	for _, v := range [][]float32{{1, 0.1}, {1, -0.1}, {0.9, 0}} {
		_, err := store.AddExample(ctx, 0, v)
		require.NoError(t, err)
	}
	for _, v := range [][]float32{{0.1, 1}, {-0.1, 1}} {
		_, err := store.AddExample(ctx, 1, v)
		require.NoError(t, err)
	}

	result, err := clf.Predict(ctx, []float32{5, 0.2})
	require.NoError(t, err)
	assert.Equal(t, classifier.Label(0), result.Label)
	assert.Equal(t, 1.0, result.Confidences[0])

	result, err = clf.Predict(ctx, []float32{0, 3})
	require.NoError(t, err)
	assert.Equal(t, classifier.Label(1), result.Label)
	assert.InDelta(t, 2.0/3.0, result.Confidences[1], 1e-9)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, idx.Count())
}
