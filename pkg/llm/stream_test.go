package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamYieldsFragmentsInOrder(t *testing.T) {
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		for _, f := range []string{"Hel", "", "lo", " world"} {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	})

	var got []string
	for s.Next() {
		got = append(got, s.Text())
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"Hel", "lo", " world"}, got)
	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrStreamClosed)
}

func TestStreamSurfacesProducerError(t *testing.T) {
	boom := errors.New("upstream reset")
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		_ = emit("partial")
		return boom
	})

	text, err := Collect(s)
	assert.Equal(t, "partial", text)
	assert.ErrorIs(t, err, boom)
}

func TestStreamCloseStopsBlockedProducer(t *testing.T) {
	stopped := make(chan error, 1)
	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) error) error {
		for {
			if err := emit("tick"); err != nil {
				stopped <- err
				return err
			}
		}
	})

	require.True(t, s.Next())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, <-stopped, context.Canceled)
	assert.False(t, s.Next())
}

func TestReadSSE(t *testing.T) {
	body := ": keep-alive\n\n" +
		"data: {\"a\":1}\n\n" +
		"event: message\n" +
		"data: {\"a\":2}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"a\":3}\n\n"

	var got []string
	err := ReadSSE(strings.NewReader(body), func(data string) error {
		got = append(got, data)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, got)
}
