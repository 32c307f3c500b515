package mapper

import (
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToModel(e *entity.DocumentChunk) *model.DocumentChunk {
	if e == nil {
		return nil
	}
	return &model.DocumentChunk{
		Id:        e.Id,
		Content:   e.Content,
		Metadata:  datatypes.JSONMap(e.Metadata),
		Embedding: pgvector.NewVector(e.Embedding),
		CreatedAt: e.CreatedAt,
	}
}

func (m *DocumentChunkMapper) ToRetrieved(mdl *model.DocumentChunk, score float64, includeValues bool) *entity.RetrievedDocument {
	if mdl == nil {
		return nil
	}
	metadata := map[string]interface{}(mdl.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	doc := &entity.RetrievedDocument{
		PageContent: mdl.Content,
		Metadata:    metadata,
		Score:       score,
	}
	if includeValues {
		doc.Embedding = mdl.Embedding.Slice()
	}
	return doc
}
