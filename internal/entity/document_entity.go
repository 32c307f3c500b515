package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is a slice of an ingested file ready to be written to the vector index.
type DocumentChunk struct {
	Id        uuid.UUID
	Content   string
	Metadata  map[string]interface{}
	Embedding []float32
	CreatedAt time.Time
}

// RetrievedDocument is produced per query and never persisted.
type RetrievedDocument struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata"`
	Score       float64                `json:"score"`
	Embedding   []float32              `json:"-"`
}
