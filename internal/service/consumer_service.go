package service

import (
	"context"
	"encoding/json"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/rag/session"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	manager   *session.Manager
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	manager *session.Manager,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		manager:   manager,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage runs the lazy validity check, which cascades the data of an
// expired session. Running it twice for the same id is harmless.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.SweepSessionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("SWEEP", "Failed to unmarshal sweep message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed payloads would never succeed
		return
	}

	valid, err := cs.manager.IsValid(ctx, payload.SessionId)
	if err != nil {
		cs.logger.Warn("SWEEP", "Session check failed", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		msg.Ack() // the next sweep retries
		return
	}

	if !valid {
		cs.logger.Debug("SWEEP", "Swept expired session", map[string]interface{}{
			"session_id": payload.SessionId,
		})
	}
	msg.Ack()
}
