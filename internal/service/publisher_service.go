package service

import (
	"context"
	"encoding/json"

	"rag-chat-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
	// EnqueueSweep lets the session sweeper hand expired-session checks to the consumer.
	EnqueueSweep(ctx context.Context, sessionId string) error
}

type publisherService struct {
	pubSub    *gochannel.GoChannel
	topicName string
}

func NewPublisherService(pubSub *gochannel.GoChannel, topicName string) IPublisherService {
	return &publisherService{
		pubSub:    pubSub,
		topicName: topicName,
	}
}

func (p *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.pubSub.Publish(p.topicName, msg)
}

func (p *publisherService) EnqueueSweep(ctx context.Context, sessionId string) error {
	payload, err := json.Marshal(dto.SweepSessionMessage{SessionId: sessionId})
	if err != nil {
		return err
	}
	return p.Publish(ctx, payload)
}
