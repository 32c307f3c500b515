package handler

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/repository/implementation"
	"rag-chat-be/internal/repository/memory"
	"rag-chat-be/internal/service"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/response"
	"rag-chat-be/pkg/rag/search"
	"rag-chat-be/pkg/rag/session"

	"github.com/alicebob/miniredis/v2"
	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fragmentLLM []string

func (f fragmentLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return strings.Join(f, ""), nil
}

func (f fragmentLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return strings.Join(f, ""), nil
}

func (f fragmentLLM) ChatStream(ctx context.Context, _ []llm.Message, _ ...llm.Option) (*llm.Stream, error) {
	return llm.NewStream(ctx, func(ctx context.Context, emit func(string) error) error {
		for _, s := range f {
			if err := emit(s); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func (f fragmentLLM) GenerateStream(ctx context.Context, _ string, opts ...llm.Option) (*llm.Stream, error) {
	return f.ChatStream(ctx, nil, opts...)
}

type constEmbedder struct{}

func (constEmbedder) Generate(context.Context, string, string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0, 0}},
	}, nil
}

type streamFixture struct {
	app     *fiber.App
	manager *session.Manager
	ledger  *message.Ledger
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewNopLogger()
	store := implementation.NewRedisSessionStore(rdb)
	ledger := message.NewLedger(store, time.Hour, log)
	manager := session.NewManager(store, ledger, time.Hour, nil, log)

	orchestrator := search.NewOrchestrator(constEmbedder{}, memory.NewVectorIndex(), "docs", search.DefaultConfig(), nil, log)
	generator := response.NewGenerator(ledger, orchestrator, fragmentLLM{"Hel", "lo"}, response.PartialDiscard, log)

	app := fiber.New(fiber.Config{
		ErrorHandler:          serverutils.ErrorHandler(log),
		DisableStartupMessage: true,
	})
	NewStreamHandler(
		service.NewSessionService(manager, ledger),
		service.NewChatService(manager, generator),
		log,
	).RegisterRoutes(app)

	return &streamFixture{app: app, manager: manager, ledger: ledger}
}

// dial serves the app on a loopback port and opens a websocket to it.
func (f *streamFixture) dial(t *testing.T) *fastws.Conn {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go f.app.Listener(ln)
	t.Cleanup(func() { f.app.Shutdown() })

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/prompt-stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *fastws.Conn) dto.StreamFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame dto.StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestServeWsRequiresUpgrade(t *testing.T) {
	f := newStreamFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/ws/prompt-stream", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestServeWsStreamsFrames(t *testing.T) {
	f := newStreamFixture(t)
	id, err := f.manager.CreateSession(context.Background())
	require.NoError(t, err)

	conn := f.dial(t)

	t.Run("invalid session", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(dto.PromptRequest{
			SessionId: "missing",
			Prompt:    "hi",
			Timestamp: "2024-01-01T10:00:00Z",
		}))
		assert.Equal(t, dto.StreamFrame{Type: dto.StreamFrameError, Detail: "Invalid session"}, readFrame(t, conn))
	})

	t.Run("tokens then done", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(dto.PromptRequest{
			SessionId: id,
			Prompt:    "hi",
			Timestamp: "2024-01-01T10:00:00Z",
		}))

		assert.Equal(t, dto.StreamFrame{Type: dto.StreamFrameToken, Data: "Hel"}, readFrame(t, conn))
		assert.Equal(t, dto.StreamFrame{Type: dto.StreamFrameToken, Data: "lo"}, readFrame(t, conn))

		done := readFrame(t, conn)
		assert.Equal(t, dto.StreamFrameDone, done.Type)
		assert.NotEmpty(t, done.Timestamp)

		msgs, err := f.ledger.List(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, constant.ChatMessageRoleAssistant, msgs[1].Role)
		assert.Equal(t, "Hello", msgs[1].Content)
	})

	t.Run("malformed request", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(fastws.TextMessage, []byte("{not json")))
		frame := readFrame(t, conn)
		assert.Equal(t, dto.StreamFrameError, frame.Type)
		assert.Equal(t, "malformed request", frame.Detail)
	})
}
