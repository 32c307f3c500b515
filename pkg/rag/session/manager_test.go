package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/internal/repository/implementation"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/rag/message"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	store     contract.SessionStore
	ledger    *message.Ledger
	manager   *Manager
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := implementation.NewRedisSessionStore(rdb)
	log := logger.NewNopLogger()
	ledger := message.NewLedger(store, time.Hour, log)
	pub := &recordingPublisher{}
	return &fixture{
		mr:        mr,
		rdb:       rdb,
		store:     store,
		ledger:    ledger,
		manager:   NewManager(store, ledger, time.Hour, pub, log),
		publisher: pub,
	}
}

func TestCreateSessionIsImmediatelyValid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.manager.CreateSession(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	valid, err := f.manager.IsValid(ctx, id)
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Equal(t, constant.SessionStatusActive, mustGet(t, f.mr, constant.SessionStatusKey(id)))
	assert.Equal(t, time.Hour, f.mr.TTL(constant.SessionStatusKey(id)))
	assert.Equal(t, []string{events.TypeSessionCreated}, f.publisher.types())
}

func TestExpiredSessionCascadesMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.manager.CreateSession(ctx)
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, id, constant.ChatMessageRoleUser, "hello", "")
	require.NoError(t, err)
	_, err = f.ledger.Append(ctx, id, constant.ChatMessageRoleAssistant, "hi", "")
	require.NoError(t, err)

	f.mr.FastForward(time.Hour + time.Second)

	valid, err := f.manager.IsValid(ctx, id)
	require.NoError(t, err)
	assert.False(t, valid)

	messages, err := f.ledger.List(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.False(t, f.mr.Exists(constant.SessionMessagesKey(id)))
	assert.False(t, f.mr.Exists(constant.SessionMessageKey(id, "1")))
	assert.False(t, f.mr.Exists(constant.SessionMessageKey(id, "2")))

	// nothing left to cascade the second time
	valid, err = f.manager.IsValid(ctx, id)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, []string{events.TypeSessionCreated, events.TypeSessionExpired}, f.publisher.types())
}

func TestAppendKeepsSessionAlive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.manager.CreateSession(ctx)
	require.NoError(t, err)

	f.mr.FastForward(50 * time.Minute)
	_, err = f.ledger.Append(ctx, id, constant.ChatMessageRoleUser, "still here", "")
	require.NoError(t, err)
	f.mr.FastForward(50 * time.Minute)

	valid, err := f.manager.IsValid(ctx, id)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestUnknownAndEmptySessionsAreInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"", "does-not-exist"} {
		valid, err := f.manager.IsValid(ctx, id)
		require.NoError(t, err)
		assert.False(t, valid)
		assert.ErrorIs(t, f.manager.Require(ctx, id), ErrInvalidSession)
	}
}

func TestConcurrentCascadesAreSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.manager.CreateSession(ctx)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := f.ledger.Append(ctx, id, constant.ChatMessageRoleUser, "m", "")
		require.NoError(t, err)
	}
	f.mr.FastForward(2 * time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			valid, err := f.manager.IsValid(ctx, id)
			if err == nil && valid {
				t.Error("expired session reported valid")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{constant.GlobalMessageIDKey}, f.mr.Keys())
}

func TestCreateSessionSurfacesStoreErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.rdb.Close())

	_, err := f.manager.CreateSession(context.Background())
	assert.Error(t, err)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
