package response

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/prompt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrStreamAborted wraps whatever stopped a stream before the model finished.
var ErrStreamAborted = errors.New("stream aborted")

// PartialPolicy decides what happens to an answer cut off mid-stream.
type PartialPolicy string

const (
	PartialDiscard  PartialPolicy = "discard"
	PartialTruncate PartialPolicy = "truncate"
)

func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch PartialPolicy(s) {
	case "", PartialDiscard:
		return PartialDiscard, nil
	case PartialTruncate:
		return PartialTruncate, nil
	}
	return "", fmt.Errorf("unknown stream partial policy %q", s)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]*entity.RetrievedDocument, error)
}

type MessageAppender interface {
	Append(ctx context.Context, sessionID, role, content, timestamp string, opts ...message.AppendOption) (*entity.Message, error)
}

type Result struct {
	Response  string `json:"llmResponse"`
	Timestamp string `json:"timestamp"`
}

// Generator runs the chat pipeline: record the question, retrieve context,
// ask the model, record the answer.
type Generator struct {
	messages    MessageAppender
	retriever   Retriever
	llmProvider llm.LLMProvider
	policy      PartialPolicy
	logger      logger.ILogger
}

func NewGenerator(
	messages MessageAppender,
	retriever Retriever,
	llmProvider llm.LLMProvider,
	policy PartialPolicy,
	log logger.ILogger,
) *Generator {
	if policy == "" {
		policy = PartialDiscard
	}
	return &Generator{
		messages:    messages,
		retriever:   retriever,
		llmProvider: llmProvider,
		policy:      policy,
		logger:      log,
	}
}

// Respond answers prompt in one call and returns the stored assistant message.
func (g *Generator) Respond(ctx context.Context, sessionID, question, timestamp string) (*Result, error) {
	ctx, span := otel.Tracer("rag-chat-be").Start(ctx, "response.Respond")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	docs, err := g.prepare(ctx, sessionID, question, timestamp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	answer, err := g.llmProvider.Generate(ctx, prompt.Grounded(question, docs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}

	stored, err := g.messages.Append(ctx, sessionID, constant.ChatMessageRoleAssistant, answer, "")
	if err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	return &Result{Response: stored.Content, Timestamp: stored.Timestamp}, nil
}

// Stream forwards each model fragment to emit as it arrives and stores the
// full answer once the model is done. If emit fails, ctx ends or the model
// breaks off, the partial answer is handled by the partial policy and the
// returned error wraps ErrStreamAborted.
func (g *Generator) Stream(
	ctx context.Context,
	sessionID, question, timestamp string,
	emit func(fragment string) error,
) (*Result, error) {
	ctx, span := otel.Tracer("rag-chat-be").Start(ctx, "response.Stream")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	docs, err := g.prepare(ctx, sessionID, question, timestamp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stream, err := g.llmProvider.ChatStream(ctx, prompt.ChatMessages(question, docs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("llm stream failed: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	fragments := 0
	var abort error
	for stream.Next() {
		fragment := stream.Text()
		answer.WriteString(fragment)
		fragments++
		if err := emit(fragment); err != nil {
			abort = err
			break
		}
	}
	if abort == nil {
		abort = stream.Err()
	}
	if abort == nil {
		abort = ctx.Err()
	}
	span.SetAttributes(attribute.Int("stream.fragments", fragments))

	if abort != nil {
		abort = fmt.Errorf("%w: %w", ErrStreamAborted, abort)
		span.RecordError(abort)
		span.SetStatus(codes.Error, abort.Error())
		g.handlePartial(ctx, sessionID, answer.String(), abort)
		return nil, abort
	}

	stored, err := g.messages.Append(ctx, sessionID, constant.ChatMessageRoleAssistant, answer.String(), "")
	if err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	return &Result{Response: stored.Content, Timestamp: stored.Timestamp}, nil
}

// prepare stores the user's message and fetches context.
func (g *Generator) prepare(ctx context.Context, sessionID, question, timestamp string) ([]*entity.RetrievedDocument, error) {
	if _, err := g.messages.Append(ctx, sessionID, constant.ChatMessageRoleUser, question, timestamp); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	docs, err := g.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(docs) == 0 {
		g.logger.Debug("GENERATION", "No context retrieved, prompting with question only", map[string]interface{}{
			"session_id": sessionID,
		})
	}
	return docs, nil
}

func (g *Generator) handlePartial(ctx context.Context, sessionID, partial string, cause error) {
	details := map[string]interface{}{
		"session_id":    sessionID,
		"partial_chars": len(partial),
		"policy":        g.policy,
		"error":         cause.Error(),
	}

	if g.policy != PartialTruncate || strings.TrimSpace(partial) == "" {
		g.logger.Warn("GENERATION", "Stream aborted, partial answer discarded", details)
		return
	}

	// The request context is usually already cancelled here
	content := partial + "\n\n" + constant.TruncatedMarker
	if _, err := g.messages.Append(context.WithoutCancel(ctx), sessionID, constant.ChatMessageRoleAssistant, content, "", message.WithTruncated()); err != nil {
		details["store_error"] = err.Error()
		g.logger.Error("GENERATION", "Failed to store truncated answer", details)
		return
	}
	g.logger.Warn("GENERATION", "Stream aborted, partial answer stored as truncated", details)
}
