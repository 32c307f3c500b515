package serverutils

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"testing"

	"rag-chat-be/pkg/rag/ingest"
	"rag-chat-be/pkg/rag/message"
	"rag-chat-be/pkg/rag/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		detail string
	}{
		{"invalid session", fmt.Errorf("prompt: %w", session.ErrInvalidSession), 400, "Invalid session"},
		{"unsupported format", fmt.Errorf("%w: %q", ingest.ErrUnsupportedFormat, ".exe"), 400, `unsupported file type: ".exe"`},
		{"missing extractor", ingest.ErrExtractorUnavailable, 400, ingest.ErrExtractorUnavailable.Error()},
		{"bad timestamp", fmt.Errorf("store user message: %w", message.ErrInvalidTimestamp), 422, "store user message: " + message.ErrInvalidTimestamp.Error()},
		{"fiber error", fiber.NewError(fiber.StatusNotFound, "gone"), 404, "gone"},
		{"anything else", errors.New("redis down"), 500, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, detail := StatusFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.detail, detail)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Name string `validate:"required"`
		Age  int    `validate:"gte=0"`
	}

	assert.NoError(t, ValidateRequest(req{Name: "a"}))

	err := ValidateRequest(req{Age: -1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	code, _ := StatusFor(err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
}

func TestWriteSSEData(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, WriteSSEData(w, "one"))
	require.NoError(t, WriteSSEData(w, "two\nlines"))
	require.NoError(t, WriteSSEEvent(w, "error", "boom"))

	assert.Equal(t, "data: one\n\ndata: two\ndata: lines\n\nevent: error\ndata: boom\n\n", buf.String())
}
