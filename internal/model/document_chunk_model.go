package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// DocumentChunk has no fixed table: every vector index is its own table,
// selected with db.Table(indexName).
type DocumentChunk struct {
	Id        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Content   string            `gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding pgvector.Vector   `gorm:"type:vector"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
}
