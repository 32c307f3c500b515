package service

import (
	"context"

	"rag-chat-be/internal/dto"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/session"
)

type ISessionService interface {
	Create(ctx context.Context) (*dto.CreateSessionResponse, error)
	Validate(ctx context.Context, sessionId string) (bool, error)
	Require(ctx context.Context, sessionId string) error
	History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error)
}

type sessionService struct {
	manager *session.Manager
	ledger  *message.Ledger
}

func NewSessionService(manager *session.Manager, ledger *message.Ledger) ISessionService {
	return &sessionService{
		manager: manager,
		ledger:  ledger,
	}
}

func (s *sessionService) Create(ctx context.Context) (*dto.CreateSessionResponse, error) {
	id, err := s.manager.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.CreateSessionResponse{SessionId: id}, nil
}

func (s *sessionService) Validate(ctx context.Context, sessionId string) (bool, error) {
	return s.manager.IsValid(ctx, sessionId)
}

func (s *sessionService) Require(ctx context.Context, sessionId string) error {
	return s.manager.Require(ctx, sessionId)
}

func (s *sessionService) History(ctx context.Context, sessionId string) (*dto.SessionHistoryResponse, error) {
	if err := s.manager.Require(ctx, sessionId); err != nil {
		return nil, err
	}

	msgs, err := s.ledger.List(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionHistoryResponse{
		SessionId: sessionId,
		Messages:  make([]*dto.MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		res.Messages = append(res.Messages, &dto.MessageResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Truncated: m.Truncated,
		})
	}
	return res, nil
}
