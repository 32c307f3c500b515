package service

import (
	"context"
	"testing"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/implementation"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepThroughWatermill(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewNopLogger()
	store := implementation.NewRedisSessionStore(rdb)
	ledger := message.NewLedger(store, time.Hour, log)
	manager := session.NewManager(store, ledger, time.Hour, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	consumer := NewConsumerService(pubSub, constant.SessionSweepTopic, manager, log)
	require.NoError(t, consumer.Consume(ctx))
	publisher := NewPublisherService(pubSub, constant.SessionSweepTopic)

	expired, err := manager.CreateSession(ctx)
	require.NoError(t, err)
	live, err := manager.CreateSession(ctx)
	require.NoError(t, err)
	for _, id := range []string{expired, live} {
		_, err := ledger.Append(ctx, id, constant.ChatMessageRoleUser, "hi", "2024-01-01T10:00:00Z")
		require.NoError(t, err)
	}

	// the status key vanishes while its messages linger
	mr.Del(constant.SessionStatusKey(expired))

	sweeper := session.NewSweeper(store, publisher, time.Minute, log)
	found, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, found)

	assert.Eventually(t, func() bool {
		return !mr.Exists(constant.SessionMessagesKey(expired))
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, mr.Exists(constant.SessionMessagesKey(live)))
	assert.True(t, mr.Exists(constant.SessionStatusKey(live)))
}

func TestConsumerAcksMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewNopLogger()
	store := implementation.NewRedisSessionStore(rdb)
	manager := session.NewManager(store, message.NewLedger(store, time.Hour, log), time.Hour, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	require.NoError(t, NewConsumerService(pubSub, constant.SessionSweepTopic, manager, log).Consume(ctx))
	publisher := NewPublisherService(pubSub, constant.SessionSweepTopic)

	// Publish blocks until the consumer acks
	done := make(chan error, 1)
	go func() { done <- publisher.Publish(ctx, []byte("not json")) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("malformed message was not acked")
	}
}
