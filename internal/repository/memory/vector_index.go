package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/pkg/utils"

	"github.com/google/uuid"
)

// VectorIndex is a brute-force in-process index for local development and tests.
// Contents are lost on restart.
type VectorIndex struct {
	mu      sync.RWMutex
	indexes map[string]*index
}

type index struct {
	spec   contract.IndexSpec
	chunks map[uuid.UUID]*entity.DocumentChunk
	order  []uuid.UUID
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{indexes: make(map[string]*index)}
}

var _ contract.VectorIndex = (*VectorIndex)(nil)

func (v *VectorIndex) EnsureIndex(ctx context.Context, spec contract.IndexSpec) (bool, error) {
	if spec.Name == "" || spec.Dimension <= 0 {
		return false, fmt.Errorf("invalid index spec %+v", spec)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.indexes[spec.Name]; ok {
		if existing.spec.Dimension != spec.Dimension {
			return false, fmt.Errorf("index %s exists with dimension %d, want %d", spec.Name, existing.spec.Dimension, spec.Dimension)
		}
		return false, nil
	}
	if spec.Metric == "" {
		spec.Metric = contract.MetricCosine
	}
	v.indexes[spec.Name] = &index{
		spec:   spec,
		chunks: make(map[uuid.UUID]*entity.DocumentChunk),
	}
	return true, nil
}

func (v *VectorIndex) Describe(ctx context.Context, name string) (*contract.IndexStatus, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	idx, ok := v.indexes[name]
	if !ok {
		return nil, contract.ErrIndexNotFound
	}
	return &contract.IndexStatus{
		Name:      idx.spec.Name,
		Dimension: idx.spec.Dimension,
		Metric:    idx.spec.Metric,
		Ready:     true,
	}, nil
}

func (v *VectorIndex) Upsert(ctx context.Context, name string, chunks []*entity.DocumentChunk) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	idx, ok := v.indexes[name]
	if !ok {
		return 0, contract.ErrIndexNotFound
	}
	for _, c := range chunks {
		if len(c.Embedding) != idx.spec.Dimension {
			return 0, fmt.Errorf("chunk %s has dimension %d, index %s wants %d", c.Id, len(c.Embedding), name, idx.spec.Dimension)
		}
	}
	for _, c := range chunks {
		if _, exists := idx.chunks[c.Id]; !exists {
			idx.order = append(idx.order, c.Id)
		}
		stored := *c
		idx.chunks[c.Id] = &stored
	}
	return len(chunks), nil
}

func (v *VectorIndex) Query(ctx context.Context, name string, q contract.VectorQuery) ([]*entity.RetrievedDocument, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	idx, ok := v.indexes[name]
	if !ok {
		return nil, contract.ErrIndexNotFound
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 3
	}

	matches := make([]*entity.RetrievedDocument, 0, len(idx.order))
	for _, id := range idx.order {
		c := idx.chunks[id]
		score := similarity(idx.spec.Metric, q.Vector, c.Embedding)
		if q.MinScore != nil && score < *q.MinScore {
			continue
		}
		doc := &entity.RetrievedDocument{
			PageContent: c.Content,
			Metadata:    copyMetadata(c.Metadata),
			Score:       score,
		}
		if q.IncludeValues {
			doc.Embedding = c.Embedding
		}
		matches = append(matches, doc)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of chunks stored in an index.
func (v *VectorIndex) Count(name string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if idx, ok := v.indexes[name]; ok {
		return len(idx.order)
	}
	return 0
}

func similarity(metric contract.Metric, a, b []float32) float64 {
	switch metric {
	case contract.MetricEuclidean:
		return 1 / (1 + utils.EuclideanDistance(a, b))
	case contract.MetricDotProduct:
		return utils.Dot(a, b)
	default:
		return utils.CosineSimilarity(a, b)
	}
}

func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
