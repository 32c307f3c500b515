package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/rag/ingest"
	"rag-chat-be/pkg/rag/session"
)

type IIngestionService interface {
	Upload(ctx context.Context, sessionId string, file *multipart.FileHeader) (*dto.UploadResponse, error)
	IngestFile(ctx context.Context, path string) (*dto.UploadResponse, error)
}

type ingestionService struct {
	manager   *session.Manager
	loader    ingest.Loader
	pipeline  *ingest.Pipeline
	uploadDir string
	publisher events.Publisher
	logger    logger.ILogger
}

func NewIngestionService(
	manager *session.Manager,
	loader ingest.Loader,
	pipeline *ingest.Pipeline,
	uploadDir string,
	publisher events.Publisher,
	log logger.ILogger,
) IIngestionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ingestionService{
		manager:   manager,
		loader:    loader,
		pipeline:  pipeline,
		uploadDir: uploadDir,
		publisher: publisher,
		logger:    log,
	}
}

// Upload stores the file under the upload dir and ingests it. The session
// and the file format are checked before anything touches the disk.
func (s *ingestionService) Upload(ctx context.Context, sessionId string, file *multipart.FileHeader) (*dto.UploadResponse, error) {
	if err := s.manager.Require(ctx, sessionId); err != nil {
		return nil, err
	}

	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: empty file name", ingest.ErrUnsupportedFormat)
	}
	if err := s.loader.Check(name); err != nil {
		return nil, err
	}

	dst := filepath.Join(s.uploadDir, name)
	if err := saveUpload(file, dst); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	return s.IngestFile(ctx, dst)
}

func (s *ingestionService) IngestFile(ctx context.Context, path string) (*dto.UploadResponse, error) {
	summary, err := s.pipeline.Ingest(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.DocumentIngested(summary.Source, summary.Index, summary.Chunks)); err != nil {
		s.logger.Warn("INGEST", "Failed to publish ingestion event", map[string]interface{}{
			"source": summary.Source,
			"error":  err.Error(),
		})
	}

	return &dto.UploadResponse{
		Message: summary.Message,
		Chunks:  summary.Chunks,
		Index:   summary.Index,
		Source:  summary.Source,
	}, nil
}

func saveUpload(file *multipart.FileHeader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
