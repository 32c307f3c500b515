package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrStreamClosed is returned when Close is called on a stream twice.
var ErrStreamClosed = errors.New("stream closed")

// ProduceFunc pushes fragments through emit until the upstream is exhausted.
// emit fails once the stream's context is done.
type ProduceFunc func(ctx context.Context, emit func(fragment string) error) error

// Stream is a pull iterator over text fragments produced by a background goroutine.
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc

	fragments chan string
	current   string

	mu     sync.Mutex
	err    error
	closed bool
}

// NewStream starts produce in its own goroutine. Cancelling ctx or calling
// Close stops it.
func NewStream(ctx context.Context, produce ProduceFunc) *Stream {
	c, cancel := context.WithCancel(ctx)
	s := &Stream{
		ctx:       c,
		cancel:    cancel,
		fragments: make(chan string),
	}

	go func() {
		defer close(s.fragments)
		err := produce(c, s.emit)
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()

	return s
}

func (s *Stream) emit(fragment string) error {
	if fragment == "" {
		return nil
	}
	select {
	case s.fragments <- fragment:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Next blocks until a fragment is available. It returns false once the
// producer has finished, successfully or not.
func (s *Stream) Next() bool {
	fragment, ok := <-s.fragments
	if !ok {
		s.current = ""
		return false
	}
	s.current = fragment
	return true
}

// Text returns the fragment read by the last successful Next.
func (s *Stream) Text() string {
	return s.current
}

// Err returns the producer's terminal error. Only meaningful after Next returned false.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the producer and waits for it to exit.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	for range s.fragments {
	}
	return nil
}

// Collect drains the stream into a single string and closes it.
func Collect(s *Stream) (string, error) {
	defer s.Close()

	var sb strings.Builder
	for s.Next() {
		sb.WriteString(s.Text())
	}
	return sb.String(), s.Err()
}

// FromText wraps an already complete answer as a single fragment stream.
func FromText(ctx context.Context, text string) *Stream {
	return NewStream(ctx, func(ctx context.Context, emit func(string) error) error {
		return emit(text)
	})
}
