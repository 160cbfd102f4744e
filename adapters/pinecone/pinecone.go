// Package pinecone implements a remote classifier.NeighborIndex on a Pinecone index.
//
// Each index instance writes into its own namespace, generated per session, and
// wipes it on Reset and Close so nothing survives the process.
//
// Pinecone is eventually consistent: recently inserted vectors may not be
// returned yet. It also cuts the result at top k on the server, choosing
// arbitrarily among matches tied at the k-th score, so the ascending-Seq
// tie-break only orders the matches Pinecone returns and is best-effort
// across the cut-off.
package pinecone

import (
	"context"
	"errors"
	"fmt"

	classifier "github.com/FrenchMajesty/frame-classifier"
	"github.com/FrenchMajesty/frame-classifier/internal/retry"
	"github.com/google/uuid"
	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Metric is the distance metric the Pinecone index was created with
type Metric string

const (
	MetricEuclidean  Metric = "euclidean"
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
)

const (
	metadataLabel = "label"
	metadataSeq   = "seq"
)

// Config holds configuration for the Pinecone index
type Config struct {
	// APIKey authenticates against Pinecone. Required.
	APIKey string

	// Host is the index host, e.g. "frames-abc123.svc.pinecone.io". Required.
	Host string

	// Namespace isolates this session's vectors. If empty, a random one is generated.
	Namespace string

	// Metric must match the index's metric. If empty, uses MetricEuclidean.
	Metric Metric

	// Retry configures retries of transient failures. If zero, uses retry.DefaultConfig.
	Retry retry.Config
}

// indexConnection is the subset of *pinecone.IndexConnection the index uses
type indexConnection interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteAllVectorsInNamespace(ctx context.Context) error
	Close() error
}

// Index implements classifier.NeighborIndex on a Pinecone namespace
type Index struct {
	conn      indexConnection
	namespace string
	metric    Metric
	retry     retry.Config
	logger    *zap.Logger
}

// NewIndex connects to the configured Pinecone index
func NewIndex(cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: pinecone api key is required", classifier.ErrConfiguration)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: pinecone host is required", classifier.ErrConfiguration)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "session-" + uuid.New().String()
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	conn, err := client.Index(pinecone.NewIndexConnParams{
		Host:      cfg.Host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}

	return newIndex(conn, cfg, logger)
}

func newIndex(conn indexConnection, cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.Metric == "" {
		cfg.Metric = MetricEuclidean
	}
	switch cfg.Metric {
	case MetricEuclidean, MetricCosine, MetricDotProduct:
	default:
		return nil, fmt.Errorf("%w: unknown pinecone metric %q", classifier.ErrConfiguration, cfg.Metric)
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Index{
		conn:      conn,
		namespace: cfg.Namespace,
		metric:    cfg.Metric,
		retry:     cfg.Retry,
		logger:    logger.With(zap.String("namespace", cfg.Namespace)),
	}, nil
}

// Namespace returns the namespace this session writes to
func (i *Index) Namespace() string {
	return i.namespace
}

// Insert implements classifier.NeighborIndex
func (i *Index) Insert(ctx context.Context, ex classifier.Example) error {
	metadata, err := structpb.NewStruct(map[string]any{
		metadataLabel: int(ex.Label),
		metadataSeq:   ex.Seq,
	})
	if err != nil {
		return fmt.Errorf("failed to build vector metadata: %w", err)
	}

	vectors := []*pinecone.Vector{
		{
			Id:       ex.ID,
			Values:   ex.Vector,
			Metadata: metadata,
		},
	}

	_, err = retry.Do(ctx, i.options("upsert"), func(ctx context.Context) (uint32, error) {
		return i.conn.UpsertVectors(ctx, vectors)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert example %s: %w", ex.ID, err)
	}
	return nil
}

// Nearest implements classifier.NeighborIndex. Recently inserted vectors may not be
// visible yet, in which case fewer than k neighbors are returned. Ties are ordered
// by Seq among the returned matches only.
func (i *Index) Nearest(ctx context.Context, query []float32, k int) ([]classifier.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", classifier.ErrInvalidInput, k)
	}

	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          query,
		TopK:            uint32(k),
		IncludeValues:   false,
		IncludeMetadata: true,
	}

	resp, err := retry.Do(ctx, i.options("query"), func(ctx context.Context) (*pinecone.QueryVectorsResponse, error) {
		return i.conn.QueryByVectorValues(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pinecone: %w", err)
	}

	neighbors := make([]classifier.Neighbor, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match == nil || match.Vector == nil || match.Vector.Metadata == nil {
			continue
		}
		fields := match.Vector.Metadata.GetFields()
		label, okLabel := fields[metadataLabel]
		seq, okSeq := fields[metadataSeq]
		if !okLabel || !okSeq {
			i.logger.Warn("pinecone match missing metadata", zap.String("id", match.Vector.Id))
			continue
		}

		neighbors = append(neighbors, classifier.Neighbor{
			Label:    classifier.Label(label.GetNumberValue()),
			Seq:      uint64(seq.GetNumberValue()),
			Distance: i.distance(match.Score),
		})
	}

	classifier.SortNeighbors(neighbors)
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// distance converts a Pinecone score into a distance where smaller is closer
func (i *Index) distance(score float32) float64 {
	switch i.metric {
	case MetricCosine:
		return 1 - float64(score)
	case MetricDotProduct:
		return -float64(score)
	default:
		return float64(score)
	}
}

// Reset implements classifier.NeighborIndex by deleting every vector in the namespace
func (i *Index) Reset(ctx context.Context) error {
	_, err := retry.Do(ctx, i.options("delete_all"), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, i.conn.DeleteAllVectorsInNamespace(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", i.namespace, err)
	}
	return nil
}

// Close wipes the session namespace and closes the connection
func (i *Index) Close(ctx context.Context) error {
	resetErr := i.Reset(ctx)
	closeErr := i.conn.Close()
	return errors.Join(resetErr, closeErr)
}

func (i *Index) options(operation string) retry.Options {
	return retry.Options{
		Config:       i.retry,
		ErrorChecker: isRetryable,
		Logger:       i.logger,
		Operation:    "pinecone " + operation,
	}
}

// isRetryable reports whether a Pinecone data-plane error is transient
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	}
	return false
}
