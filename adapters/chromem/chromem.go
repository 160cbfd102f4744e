// Package chromem implements an in-memory classifier.NeighborIndex on chromem-go.
//
// chromem-go ranks by cosine similarity over normalized vectors, so this index
// answers with cosine distance (1 - similarity) instead of squared Euclidean
// distance. All-zero vectors have no direction and are rejected with
// classifier.ErrInvalidInput, both as examples and as queries. Nothing is
// persisted.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	classifier "github.com/FrenchMajesty/frame-classifier"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// DefaultCollection is the collection examples are stored in
const DefaultCollection = "frame_examples"

const (
	metadataLabel = "label"
	metadataSeq   = "seq"
)

// errNoEmbeddingFunc is returned if chromem ever asks for an embedding; every document carries its own.
var errNoEmbeddingFunc = errors.New("chromem index stores precomputed embeddings only")

// Index implements classifier.NeighborIndex with cosine distance
type Index struct {
	db     *chromem.DB
	name   string
	logger *zap.Logger

	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewIndex creates an empty in-memory index
func NewIndex(logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Index{
		db:     chromem.NewDB(),
		name:   DefaultCollection,
		logger: logger,
	}

	collection, err := idx.db.GetOrCreateCollection(idx.name, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", idx.name, err)
	}
	idx.collection = collection

	return idx, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

// Insert implements classifier.NeighborIndex
func (i *Index) Insert(ctx context.Context, ex classifier.Example) error {
	if isZero(ex.Vector) {
		return fmt.Errorf("%w: zero vector has no cosine direction", classifier.ErrInvalidInput)
	}

	i.mu.RLock()
	collection := i.collection
	i.mu.RUnlock()

	doc := chromem.Document{
		ID: ex.ID,
		Metadata: map[string]string{
			metadataLabel: strconv.Itoa(int(ex.Label)),
			metadataSeq:   strconv.FormatUint(ex.Seq, 10),
		},
		// chromem normalizes in place; keep the caller's copy intact
		Embedding: append([]float32(nil), ex.Vector...),
	}
	if err := collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("adding example %s: %w", ex.ID, err)
	}
	return nil
}

// Nearest implements classifier.NeighborIndex
func (i *Index) Nearest(ctx context.Context, query []float32, k int) ([]classifier.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", classifier.ErrInvalidInput, k)
	}
	if isZero(query) {
		return nil, fmt.Errorf("%w: zero vector has no cosine direction", classifier.ErrInvalidInput)
	}

	i.mu.RLock()
	collection := i.collection
	i.mu.RUnlock()

	// chromem requires nResults <= doc count
	count := collection.Count()
	if count == 0 {
		return []classifier.Neighbor{}, nil
	}
	if k > count {
		k = count
	}

	results, err := queryTies(ctx, collection, query, k, count)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", i.name, err)
	}

	neighbors := make([]classifier.Neighbor, 0, len(results))
	for _, r := range results {
		label, err := strconv.Atoi(r.Metadata[metadataLabel])
		if err != nil {
			i.logger.Warn("skipping example with invalid label metadata", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		seq, err := strconv.ParseUint(r.Metadata[metadataSeq], 10, 64)
		if err != nil {
			i.logger.Warn("skipping example with invalid seq metadata", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		neighbors = append(neighbors, classifier.Neighbor{
			Label:    classifier.Label(label),
			Seq:      seq,
			Distance: 1 - float64(r.Similarity),
		})
	}

	classifier.SortNeighbors(neighbors)
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// queryTies returns at least the k most similar documents plus every document
// tied with the k-th, so ties can be ordered by Seq. chromem picks arbitrarily
// among equal similarities at its cut-off.
func queryTies(ctx context.Context, collection *chromem.Collection, query []float32, k, count int) ([]chromem.Result, error) {
	n := min(k+1, count)
	for {
		results, err := collection.QueryEmbedding(ctx, append([]float32(nil), query...), n, nil, nil)
		if err != nil {
			return nil, err
		}
		if n >= count || len(results) <= k || results[len(results)-1].Similarity < results[k-1].Similarity {
			return results, nil
		}
		n = min(n*2, count)
	}
}

// Reset implements classifier.NeighborIndex by recreating the collection
func (i *Index) Reset(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.db.DeleteCollection(i.name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", i.name, err)
	}
	collection, err := i.db.GetOrCreateCollection(i.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", i.name, err)
	}
	i.collection = collection

	i.logger.Debug("chromem index reset", zap.String("collection", i.name))
	return nil
}

// Count returns the number of indexed examples
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.collection.Count()
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
