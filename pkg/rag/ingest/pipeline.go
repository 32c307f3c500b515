package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const defaultEmbedConcurrency = 4

type Summary struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
	Index   string `json:"index"`
	Source  string `json:"source"`
}

// Pipeline loads a file, splits it, embeds every chunk and writes them to the
// vector index in one batch.
type Pipeline struct {
	loader      Loader
	splitter    *utils.RecursiveTextSplitter
	embedder    embedding.EmbeddingProvider
	index       contract.VectorIndex
	spec        contract.IndexSpec
	concurrency int
	logger      logger.ILogger
	now         func() time.Time
}

func NewPipeline(
	loader Loader,
	embedder embedding.EmbeddingProvider,
	index contract.VectorIndex,
	spec contract.IndexSpec,
	log logger.ILogger,
) *Pipeline {
	return &Pipeline{
		loader:      loader,
		splitter:    utils.NewRecursiveTextSplitter(constant.ChunkSize, constant.ChunkOverlap),
		embedder:    embedder,
		index:       index,
		spec:        spec,
		concurrency: defaultEmbedConcurrency,
		logger:      log,
		now:         time.Now,
	}
}

// EnsureIndex creates the destination index if needed. Repeated calls write nothing.
func (p *Pipeline) EnsureIndex(ctx context.Context) (bool, error) {
	created, err := p.index.EnsureIndex(ctx, p.spec)
	if err != nil {
		return false, fmt.Errorf("ensure vector index %s: %w", p.spec.Name, err)
	}
	if created {
		p.logger.Info("INGEST", "Created vector index", map[string]interface{}{
			"index":     p.spec.Name,
			"dimension": p.spec.Dimension,
			"metric":    p.spec.Metric,
		})
	}
	return created, nil
}

func (p *Pipeline) Ingest(ctx context.Context, filePath string) (*Summary, error) {
	ctx, span := otel.Tracer("rag-chat-be").Start(ctx, "ingest.Ingest")
	defer span.End()

	source := filepath.Base(filePath)
	span.SetAttributes(attribute.String("ingest.source", source))

	// Reject before touching the file or the index
	if err := p.loader.Check(filePath); err != nil {
		return nil, err
	}

	text, err := p.loader.Load(ctx, filePath)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	texts := p.splitter.SplitText(text)
	span.SetAttributes(attribute.Int("ingest.chunks", len(texts)))
	if len(texts) == 0 {
		p.logger.Warn("INGEST", "Document has no text", map[string]interface{}{"source": source})
		return p.summary(0, source), nil
	}

	if _, err := p.EnsureIndex(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	chunks, err := p.embedAll(ctx, texts, source)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	stored, err := p.index.Upsert(ctx, p.spec.Name, chunks)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	p.logger.Info("INGEST", "Document ingested", map[string]interface{}{
		"source": source,
		"chunks": stored,
		"index":  p.spec.Name,
	})
	return p.summary(stored, source), nil
}

func (p *Pipeline) summary(chunks int, source string) *Summary {
	return &Summary{
		Message: fmt.Sprintf("Stored %d chunks in vector index <%s>", chunks, p.spec.Name),
		Chunks:  chunks,
		Index:   p.spec.Name,
		Source:  source,
	}
}

// embedAll embeds chunks in parallel; output order matches texts.
func (p *Pipeline) embedAll(ctx context.Context, texts []string, source string) ([]*entity.DocumentChunk, error) {
	chunks := make([]*entity.DocumentChunk, len(texts))
	createdAt := p.now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			res, err := p.embedder.Generate(gctx, text, constant.EmbeddingTaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d of %s: %w", i, source, err)
			}
			chunks[i] = &entity.DocumentChunk{
				Id:        uuid.New(),
				Content:   text,
				Metadata:  map[string]interface{}{constant.DocumentMetadataSource: source},
				Embedding: res.Embedding.Values,
				CreatedAt: createdAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}
