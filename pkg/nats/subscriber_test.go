package nats

import (
	"encoding/json"
	"testing"
	"time"

	"rag-chat-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	ev := events.SessionExpired("abc", 4)
	data, err := json.Marshal(envelope{Type: ev.Type, Data: ev.Data, OccurredAt: ev.OccurredAt})
	require.NoError(t, err)

	decoded, err := decode("events.session.expired", data)
	require.NoError(t, err)
	assert.Equal(t, events.TypeSessionExpired, decoded.EventType())
	assert.Equal(t, "abc", decoded.Payload()["session_id"])
	assert.EqualValues(t, 4, decoded.Payload()["removed_messages"])
	assert.WithinDuration(t, ev.OccurredAt, decoded.Timestamp(), time.Millisecond)
}

func TestDecodeFallsBackToSubject(t *testing.T) {
	decoded, err := decode("events.document.ingested", []byte(`{"data":{"chunks":2}}`))
	require.NoError(t, err)
	assert.Equal(t, events.TypeDocumentIngested, decoded.EventType())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode("events.x", []byte("not json"))
	assert.Error(t, err)
}
