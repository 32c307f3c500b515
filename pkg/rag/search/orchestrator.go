package search

import (
	"context"
	"errors"
	"fmt"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/pkg/embedding"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// QueryCache memoises query embeddings. memory.EmbeddingCache implements it.
type QueryCache interface {
	Get(text string) ([]float32, bool)
	Set(text string, vector []float32)
}

// Orchestrator handles vector search against the shared document index
type Orchestrator struct {
	embeddingProvider embedding.EmbeddingProvider
	index             contract.VectorIndex
	indexName         string
	config            Config
	cache             QueryCache
	logger            logger.ILogger
}

// NewOrchestrator creates a new search orchestrator. cache may be nil.
func NewOrchestrator(
	embeddingProvider embedding.EmbeddingProvider,
	index contract.VectorIndex,
	indexName string,
	config Config,
	cache QueryCache,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		embeddingProvider: embeddingProvider,
		index:             index,
		indexName:         indexName,
		config:            config,
		cache:             cache,
		logger:            log,
	}
}

func (o *Orchestrator) Config() Config {
	return o.config
}

// Retrieve returns the chunks relevant to query under the configured policy.
// No match is an empty result, not an error.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) ([]*entity.RetrievedDocument, error) {
	ctx, span := otel.Tracer("rag-chat-be").Start(ctx, "search.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("search.policy", string(o.config.Policy)))

	vector, err := o.embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	q := contract.VectorQuery{Vector: vector, TopK: o.config.K}
	switch o.config.Policy {
	case PolicyScoreThreshold:
		threshold := o.config.ScoreThreshold
		q.MinScore = &threshold
	case PolicyMMR:
		q.TopK = o.config.FetchK
		q.IncludeValues = true
	}

	docs, err := o.index.Query(ctx, o.indexName, q)
	if errors.Is(err, contract.ErrIndexNotFound) {
		o.logger.Warn("SEARCH", "Vector index missing, answering without context", map[string]interface{}{
			"index": o.indexName,
		})
		return []*entity.RetrievedDocument{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if o.config.Policy == PolicyMMR {
		docs = o.rerank(vector, docs)
	}

	span.SetAttributes(attribute.Int("search.results", len(docs)))
	o.logger.Debug("SEARCH", "Retrieved documents", map[string]interface{}{
		"policy":  o.config.Policy,
		"results": len(docs),
	})
	return docs, nil
}

func (o *Orchestrator) embed(ctx context.Context, query string) ([]float32, error) {
	if o.cache != nil {
		if v, ok := o.cache.Get(query); ok {
			return v, nil
		}
	}

	res, err := o.embeddingProvider.Generate(ctx, query, constant.EmbeddingTaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if o.cache != nil {
		o.cache.Set(query, res.Embedding.Values)
	}
	return res.Embedding.Values, nil
}

func (o *Orchestrator) rerank(query []float32, docs []*entity.RetrievedDocument) []*entity.RetrievedDocument {
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		vectors[i] = d.Embedding
	}

	picked := MaximalMarginalRelevance(query, vectors, o.config.K, o.config.LambdaMult)
	out := make([]*entity.RetrievedDocument, len(picked))
	for i, idx := range picked {
		out[i] = docs[idx]
	}
	return out
}
