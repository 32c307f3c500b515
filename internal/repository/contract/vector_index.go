package contract

import (
	"context"
	"errors"

	"rag-chat-be/internal/entity"
)

var ErrIndexNotFound = errors.New("vector index not found")

type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dotproduct"
)

type IndexSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

type IndexStatus struct {
	Name      string
	Dimension int
	Metric    Metric
	Ready     bool
}

// VectorQuery asks for the TopK nearest chunks. MinScore filters on the
// similarity score (higher is closer) when set.
type VectorQuery struct {
	Vector        []float32
	TopK          int
	MinScore      *float64
	IncludeValues bool
}

type VectorIndex interface {
	// EnsureIndex creates the index when missing and blocks until it reports ready.
	// created is false when the index already existed; nothing is written then.
	EnsureIndex(ctx context.Context, spec IndexSpec) (created bool, err error)
	Describe(ctx context.Context, name string) (*IndexStatus, error)
	Upsert(ctx context.Context, name string, chunks []*entity.DocumentChunk) (int, error)
	// Query returns matches ordered by descending score.
	Query(ctx context.Context, name string, query VectorQuery) ([]*entity.RetrievedDocument, error)
}
