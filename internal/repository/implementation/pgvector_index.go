package implementation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/mapper"
	"rag-chat-be/internal/model"
	"rag-chat-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Index names become table names, so they are restricted to safe identifiers.
var indexNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,50}$`)

type PgVectorIndex struct {
	db           *gorm.DB
	mapper       *mapper.DocumentChunkMapper
	pollInterval time.Duration
	readyTimeout time.Duration

	metrics sync.Map // index name -> contract.Metric
}

func NewPgVectorIndex(db *gorm.DB) contract.VectorIndex {
	return &PgVectorIndex{
		db:           db,
		mapper:       mapper.NewDocumentChunkMapper(),
		pollInterval: time.Second,
		readyTimeout: 2 * time.Minute,
	}
}

func ValidateIndexName(name string) error {
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("invalid vector index name %q", name)
	}
	return nil
}

func hnswIndexName(name string) string {
	return name + "_embedding_hnsw"
}

func operatorClass(metric contract.Metric) (string, error) {
	switch metric {
	case contract.MetricCosine:
		return "vector_cosine_ops", nil
	case contract.MetricEuclidean:
		return "vector_l2_ops", nil
	case contract.MetricDotProduct:
		return "vector_ip_ops", nil
	}
	return "", fmt.Errorf("unsupported metric %q", metric)
}

// scoreExpression turns the pgvector distance operator into a similarity where
// higher is closer. The single placeholder is the query vector.
func scoreExpression(metric contract.Metric) (score string, distance string) {
	switch metric {
	case contract.MetricEuclidean:
		return "1 / (1 + (embedding <-> ?))", "embedding <-> ?"
	case contract.MetricDotProduct:
		// <#> returns the negative inner product
		return "(embedding <#> ?) * -1", "embedding <#> ?"
	default:
		return "1 - (embedding <=> ?)", "embedding <=> ?"
	}
}

func (r *PgVectorIndex) EnsureIndex(ctx context.Context, spec contract.IndexSpec) (bool, error) {
	if err := ValidateIndexName(spec.Name); err != nil {
		return false, err
	}
	if spec.Dimension <= 0 {
		return false, fmt.Errorf("invalid dimension %d for index %s", spec.Dimension, spec.Name)
	}
	ops, err := operatorClass(spec.Metric)
	if err != nil {
		return false, err
	}

	status, err := r.Describe(ctx, spec.Name)
	switch {
	case err == nil:
		if status.Dimension != spec.Dimension {
			return false, fmt.Errorf("index %s exists with dimension %d, want %d", spec.Name, status.Dimension, spec.Dimension)
		}
		if status.Ready {
			return false, nil
		}
		return false, r.waitUntilReady(ctx, spec.Name)
	case !errors.Is(err, contract.ErrIndexNotFound):
		return false, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return err
		}
		if err := tx.AutoMigrate(&model.VectorIndex{}); err != nil {
			return err
		}
		createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY,
	content text NOT NULL,
	metadata jsonb,
	embedding vector(%d) NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
)`, spec.Name, spec.Dimension)
		if err := tx.Exec(createTable).Error; err != nil {
			return err
		}
		createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)",
			hnswIndexName(spec.Name), spec.Name, ops)
		if err := tx.Exec(createIndex).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.VectorIndex{
			Name:      spec.Name,
			Dimension: spec.Dimension,
			Metric:    string(spec.Metric),
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("create vector index %s: %w", spec.Name, err)
	}
	r.metrics.Store(spec.Name, spec.Metric)

	return true, r.waitUntilReady(ctx, spec.Name)
}

func (r *PgVectorIndex) waitUntilReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, r.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		status, err := r.Describe(ctx, name)
		if err != nil {
			return err
		}
		if status.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("vector index %s not ready: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *PgVectorIndex) Describe(ctx context.Context, name string) (*contract.IndexStatus, error) {
	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(&model.VectorIndex{}) {
		return nil, contract.ErrIndexNotFound
	}

	var m model.VectorIndex
	if err := db.Where("name = ?", name).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrIndexNotFound
		}
		return nil, err
	}

	var ready bool
	err := db.Raw(`SELECT COALESCE(bool_and(i.indisvalid AND i.indisready), false)
FROM pg_index i JOIN pg_class c ON c.oid = i.indexrelid
WHERE c.relname = ?`, hnswIndexName(name)).Scan(&ready).Error
	if err != nil {
		return nil, err
	}

	return &contract.IndexStatus{
		Name:      m.Name,
		Dimension: m.Dimension,
		Metric:    contract.Metric(m.Metric),
		Ready:     ready,
	}, nil
}

func (r *PgVectorIndex) metricFor(ctx context.Context, name string) (contract.Metric, error) {
	if v, ok := r.metrics.Load(name); ok {
		return v.(contract.Metric), nil
	}
	status, err := r.Describe(ctx, name)
	if err != nil {
		return "", err
	}
	r.metrics.Store(name, status.Metric)
	return status.Metric, nil
}

func (r *PgVectorIndex) Upsert(ctx context.Context, name string, chunks []*entity.DocumentChunk) (int, error) {
	if err := ValidateIndexName(name); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	models := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c)
	}

	err := r.db.WithContext(ctx).
		Table(name).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding"}),
		}).
		Create(&models).Error
	if err != nil {
		return 0, fmt.Errorf("upsert into %s: %w", name, err)
	}
	return len(models), nil
}

func (r *PgVectorIndex) Query(ctx context.Context, name string, q contract.VectorQuery) ([]*entity.RetrievedDocument, error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, err
	}
	metric, err := r.metricFor(ctx, name)
	if err != nil {
		return nil, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 3
	}

	type result struct {
		model.DocumentChunk
		Score float64
	}
	var results []result

	queryVector := pgvector.NewVector(q.Vector)
	scoreExpr, distanceExpr := scoreExpression(metric)

	query := r.db.WithContext(ctx).
		Table(name).
		Select("*, "+scoreExpr+" AS score", queryVector)
	if q.MinScore != nil {
		query = query.Where(scoreExpr+" >= ?", queryVector, *q.MinScore)
	}
	err = query.
		Order(gorm.Expr(distanceExpr, queryVector)).
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	docs := make([]*entity.RetrievedDocument, len(results))
	for i := range results {
		docs[i] = r.mapper.ToRetrieved(&results[i].DocumentChunk, results[i].Score, q.IncludeValues)
	}
	return docs, nil
}
