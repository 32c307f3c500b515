package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/memory"
	"rag-chat-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingIndex struct {
	*memory.VectorIndex
	ensureCalls  atomic.Int32
	createdCalls atomic.Int32
	upsertCalls  atomic.Int32
}

func (c *countingIndex) EnsureIndex(ctx context.Context, spec contract.IndexSpec) (bool, error) {
	c.ensureCalls.Add(1)
	created, err := c.VectorIndex.EnsureIndex(ctx, spec)
	if created {
		c.createdCalls.Add(1)
	}
	return created, err
}

func (c *countingIndex) Upsert(ctx context.Context, name string, chunks []*entity.DocumentChunk) (int, error) {
	c.upsertCalls.Add(1)
	return c.VectorIndex.Upsert(ctx, name, chunks)
}

type constEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *constEmbedder) Generate(_ context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return nil, errors.New("quota exceeded")
	}
	if taskType != constant.EmbeddingTaskRetrievalDocument {
		return nil, errors.New("wrong task type " + taskType)
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{
		Values: []float32{float32(len(text)), 1, 0},
	}}, nil
}

var testSpec = contract.IndexSpec{Name: "docs", Dimension: 3, Metric: contract.MetricCosine}

func newTestPipeline() (*Pipeline, *countingIndex, *constEmbedder) {
	idx := &countingIndex{VectorIndex: memory.NewVectorIndex()}
	emb := &constEmbedder{}
	return NewPipeline(NewExtensionLoader(), emb, idx, testSpec, logger.NewNopLogger()), idx, emb
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func longText() string {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString(strings.Repeat("retrieval augmented generation ", 4))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func TestIngestTextFile(t *testing.T) {
	p, idx, _ := newTestPipeline()
	path := writeFile(t, "handbook.txt", longText())

	summary, err := p.Ingest(context.Background(), path)
	require.NoError(t, err)

	assert.Greater(t, summary.Chunks, 1)
	assert.Equal(t, "docs", summary.Index)
	assert.Equal(t, "handbook.txt", summary.Source)
	assert.Contains(t, summary.Message, "docs")
	assert.Equal(t, summary.Chunks, idx.Count("docs"))
	assert.Equal(t, int32(1), idx.upsertCalls.Load())

	docs, err := idx.Query(context.Background(), "docs", contract.VectorQuery{Vector: []float32{1, 1, 0}, TopK: 100})
	require.NoError(t, err)
	for _, d := range docs {
		assert.Equal(t, "handbook.txt", d.Metadata[constant.DocumentMetadataSource])
		assert.LessOrEqual(t, len([]rune(d.PageContent)), constant.ChunkSize)
	}
}

func TestIngestRejectsUnsupportedExtensionBeforeAnyWork(t *testing.T) {
	p, idx, emb := newTestPipeline()
	path := writeFile(t, "slides.pptx", "binary")

	_, err := p.Ingest(context.Background(), path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), ".pptx")

	assert.Zero(t, idx.ensureCalls.Load())
	assert.Zero(t, idx.upsertCalls.Load())
	assert.Zero(t, emb.calls)
}

func TestIngestKnownFormatWithoutExtractor(t *testing.T) {
	p, idx, _ := newTestPipeline()
	path := writeFile(t, "paper.PDF", "%PDF-1.4")

	_, err := p.Ingest(context.Background(), path)
	require.ErrorIs(t, err, ErrExtractorUnavailable)
	assert.Zero(t, idx.ensureCalls.Load())
}

func TestIngestUsesRegisteredExtractor(t *testing.T) {
	idx := &countingIndex{VectorIndex: memory.NewVectorIndex()}
	loader := NewExtensionLoader()
	loader.Register("pdf", func(_ context.Context, path string) (string, error) {
		return "extracted from " + filepath.Base(path), nil
	})
	p := NewPipeline(loader, &constEmbedder{}, idx, testSpec, logger.NewNopLogger())

	summary, err := p.Ingest(context.Background(), writeFile(t, "paper.pdf", "%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Chunks)
}

func TestEnsureIndexIsIdempotent(t *testing.T) {
	p, idx, _ := newTestPipeline()
	ctx := context.Background()

	created, err := p.EnsureIndex(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.EnsureIndex(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	// ingesting twice never recreates the index
	_, err = p.Ingest(ctx, writeFile(t, "a.txt", "alpha"))
	require.NoError(t, err)
	_, err = p.Ingest(ctx, writeFile(t, "b.txt", "beta"))
	require.NoError(t, err)

	assert.Equal(t, int32(4), idx.ensureCalls.Load())
	assert.Equal(t, int32(1), idx.createdCalls.Load())
	assert.Equal(t, 2, idx.Count("docs"))
}

func TestIngestEmptyDocumentWritesNothing(t *testing.T) {
	p, idx, _ := newTestPipeline()

	summary, err := p.Ingest(context.Background(), writeFile(t, "empty.txt", "  \n "))
	require.NoError(t, err)
	assert.Zero(t, summary.Chunks)
	assert.Zero(t, idx.ensureCalls.Load())
	assert.Zero(t, idx.upsertCalls.Load())
}

func TestIngestEmbeddingFailureStoresNothing(t *testing.T) {
	p, idx, emb := newTestPipeline()
	emb.fail = true

	_, err := p.Ingest(context.Background(), writeFile(t, "a.txt", longText()))
	require.Error(t, err)
	assert.Zero(t, idx.upsertCalls.Load())
	assert.Zero(t, idx.Count("docs"))
}
