package response

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/implementation"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag/message"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	mu        sync.Mutex
	fragments []string
	failAfter int
	failErr   error

	lastPrompt  string
	lastHistory []llm.Message
}

func newScriptedLLM(fragments ...string) *scriptedLLM {
	return &scriptedLLM{fragments: fragments, failAfter: -1}
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	s.mu.Lock()
	s.lastHistory = history
	s.mu.Unlock()
	return strings.Join(s.fragments, ""), nil
}

func (s *scriptedLLM) Generate(ctx context.Context, p string, _ ...llm.Option) (string, error) {
	s.mu.Lock()
	s.lastPrompt = p
	s.mu.Unlock()
	return strings.Join(s.fragments, ""), nil
}

func (s *scriptedLLM) ChatStream(ctx context.Context, history []llm.Message, _ ...llm.Option) (*llm.Stream, error) {
	s.mu.Lock()
	s.lastHistory = history
	s.mu.Unlock()
	return llm.NewStream(ctx, func(ctx context.Context, emit func(string) error) error {
		for i, f := range s.fragments {
			if i == s.failAfter {
				return s.failErr
			}
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func (s *scriptedLLM) GenerateStream(ctx context.Context, p string, opts ...llm.Option) (*llm.Stream, error) {
	return s.ChatStream(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: p}}, opts...)
}

type staticRetriever struct {
	docs []*entity.RetrievedDocument
	err  error
}

func (r staticRetriever) Retrieve(context.Context, string) ([]*entity.RetrievedDocument, error) {
	return r.docs, r.err
}

func newLedger(t *testing.T) *message.Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return message.NewLedger(implementation.NewRedisSessionStore(rdb), time.Hour, logger.NewNopLogger())
}

func TestRespondWithoutContextPromptsQuestionOnly(t *testing.T) {
	ledger := newLedger(t)
	model := newScriptedLLM("Hi! ", "How can I help?")
	g := NewGenerator(ledger, staticRetriever{}, model, PartialDiscard, logger.NewNopLogger())
	ctx := context.Background()

	res, err := g.Respond(ctx, "s1", "hello", "2024-01-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?", res.Response)
	assert.NotEmpty(t, res.Timestamp)
	assert.Equal(t, "hello", model.lastPrompt)

	msgs, err := ledger.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, constant.ChatMessageRoleUser, msgs[0].Role)
	assert.Equal(t, "2024-01-01T10:00:00Z", msgs[0].Timestamp)
	assert.Equal(t, constant.ChatMessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, res.Response, msgs[1].Content)
}

func TestRespondGroundsOnRetrievedContext(t *testing.T) {
	model := newScriptedLLM("42")
	retriever := staticRetriever{docs: []*entity.RetrievedDocument{{PageContent: "The answer is 42."}}}
	g := NewGenerator(newLedger(t), retriever, model, PartialDiscard, logger.NewNopLogger())

	_, err := g.Respond(context.Background(), "s1", "What is the answer?", "")
	require.NoError(t, err)
	assert.Contains(t, model.lastPrompt, "The answer is 42.")
	assert.Contains(t, model.lastPrompt, "Question: What is the answer?")
}

func TestStreamPersistsExactlyWhatWasEmitted(t *testing.T) {
	ledger := newLedger(t)
	model := newScriptedLLM("Stream", "ing ", "works", ".")
	retriever := staticRetriever{docs: []*entity.RetrievedDocument{{PageContent: "ctx"}}}
	g := NewGenerator(ledger, retriever, model, PartialDiscard, logger.NewNopLogger())
	ctx := context.Background()

	var emitted []string
	res, err := g.Stream(ctx, "s1", "does it?", "", func(f string) error {
		emitted = append(emitted, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stream", "ing ", "works", "."}, emitted)
	assert.Equal(t, strings.Join(emitted, ""), res.Response)

	require.Len(t, model.lastHistory, 2)
	assert.Equal(t, constant.ChatMessageRoleSystem, model.lastHistory[0].Role)
	assert.Contains(t, model.lastHistory[1].Content, "ctx")

	msgs, err := ledger.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, strings.Join(emitted, ""), msgs[1].Content)
	assert.False(t, msgs[1].Truncated)

	// whole-response mode yields the same text
	whole, err := g.Respond(ctx, "s2", "does it?", "")
	require.NoError(t, err)
	assert.Equal(t, res.Response, whole.Response)
}

func TestStreamClientGoneDiscardsPartial(t *testing.T) {
	ledger := newLedger(t)
	g := NewGenerator(ledger, staticRetriever{}, newScriptedLLM("a", "b", "c"), PartialDiscard, logger.NewNopLogger())
	ctx := context.Background()
	gone := errors.New("broken pipe")

	calls := 0
	_, err := g.Stream(ctx, "s1", "q", "", func(string) error {
		calls++
		if calls == 2 {
			return gone
		}
		return nil
	})
	require.ErrorIs(t, err, ErrStreamAborted)
	assert.ErrorIs(t, err, gone)

	msgs, err := ledger.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, constant.ChatMessageRoleUser, msgs[0].Role)
}

func TestStreamModelFailureTruncatePolicy(t *testing.T) {
	ledger := newLedger(t)
	model := newScriptedLLM("partial ", "answer ", "never")
	model.failAfter = 2
	model.failErr = errors.New("upstream 503")
	g := NewGenerator(ledger, staticRetriever{}, model, PartialTruncate, logger.NewNopLogger())
	ctx := context.Background()

	var emitted strings.Builder
	_, err := g.Stream(ctx, "s1", "q", "", func(f string) error {
		emitted.WriteString(f)
		return nil
	})
	require.ErrorIs(t, err, ErrStreamAborted)
	assert.Equal(t, "partial answer ", emitted.String())

	msgs, err := ledger.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Truncated)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "partial answer "))
	assert.True(t, strings.HasSuffix(msgs[1].Content, constant.TruncatedMarker))
}

func TestStreamCancelledContextTruncatePolicyStillStores(t *testing.T) {
	ledger := newLedger(t)
	g := NewGenerator(ledger, staticRetriever{}, newScriptedLLM("one ", "two ", "three"), PartialTruncate, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := g.Stream(ctx, "s1", "q", "", func(string) error {
		cancel()
		return nil
	})
	require.ErrorIs(t, err, ErrStreamAborted)
	assert.ErrorIs(t, err, context.Canceled)

	msgs, err := ledger.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Truncated)
}

func TestRetrievalFailureSurfaces(t *testing.T) {
	g := NewGenerator(newLedger(t), staticRetriever{err: errors.New("index down")}, newScriptedLLM("x"), PartialDiscard, logger.NewNopLogger())

	_, err := g.Respond(context.Background(), "s1", "q", "")
	assert.ErrorContains(t, err, "index down")
}

func TestParsePartialPolicy(t *testing.T) {
	p, err := ParsePartialPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PartialDiscard, p)

	p, err = ParsePartialPolicy("truncate")
	require.NoError(t, err)
	assert.Equal(t, PartialTruncate, p)

	_, err = ParsePartialPolicy("keep")
	assert.Error(t, err)
}
