package service

import (
	"context"

	"rag-chat-be/internal/dto"
	"rag-chat-be/pkg/rag/response"
	"rag-chat-be/pkg/rag/session"
)

type IChatService interface {
	Prompt(ctx context.Context, req *dto.PromptRequest) (*dto.PromptResponse, error)
	// Stream assumes the session was already checked; the HTTP status is
	// committed before the first fragment is written.
	Stream(ctx context.Context, req *dto.PromptRequest, emit func(fragment string) error) (*dto.PromptResponse, error)
}

type chatService struct {
	manager   *session.Manager
	generator *response.Generator
}

func NewChatService(manager *session.Manager, generator *response.Generator) IChatService {
	return &chatService{
		manager:   manager,
		generator: generator,
	}
}

func (s *chatService) Prompt(ctx context.Context, req *dto.PromptRequest) (*dto.PromptResponse, error) {
	if err := s.manager.Require(ctx, req.SessionId); err != nil {
		return nil, err
	}

	res, err := s.generator.Respond(ctx, req.SessionId, req.Prompt, req.Timestamp)
	if err != nil {
		return nil, err
	}
	return &dto.PromptResponse{LlmResponse: res.Response, Timestamp: res.Timestamp}, nil
}

func (s *chatService) Stream(ctx context.Context, req *dto.PromptRequest, emit func(fragment string) error) (*dto.PromptResponse, error) {
	res, err := s.generator.Stream(ctx, req.SessionId, req.Prompt, req.Timestamp, emit)
	if err != nil {
		return nil, err
	}
	return &dto.PromptResponse{LlmResponse: res.Response, Timestamp: res.Timestamp}, nil
}
