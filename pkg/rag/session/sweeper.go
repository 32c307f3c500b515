package session

import (
	"context"
	"fmt"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
)

// SweepQueue hands a session id to whoever runs the validity check.
type SweepQueue interface {
	EnqueueSweep(ctx context.Context, sessionID string) error
}

// Sweeper finds sessions that still own a message index and queues a validity
// check for each, so expired sessions nobody reads again are cleaned up too.
type Sweeper struct {
	store    contract.SessionStore
	queue    SweepQueue
	interval time.Duration
	logger   logger.ILogger
}

func NewSweeper(store contract.SessionStore, queue SweepQueue, interval time.Duration, log logger.ILogger) *Sweeper {
	return &Sweeper{
		store:    store,
		queue:    queue,
		interval: interval,
		logger:   log,
	}
}

// SweepOnce queues every session id that has a message index and returns how many were queued.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	keys, err := s.store.Scan(ctx, constant.SessionMessagesPattern())
	if err != nil {
		return 0, fmt.Errorf("scan message indexes: %w", err)
	}

	// SCAN may return a key more than once
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		id, ok := constant.SessionIDFromMessagesKey(key)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := s.queue.EnqueueSweep(ctx, id); err != nil {
			return len(seen) - 1, fmt.Errorf("queue sweep for %s: %w", id, err)
		}
	}
	return len(seen), nil
}

// Run sweeps on every tick until ctx is done. A non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("SWEEPER", "Session sweep disabled", nil)
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			queued, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("SWEEPER", "Session sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			s.logger.Debug("SWEEPER", "Session sweep queued", map[string]interface{}{
				"sessions": queued,
			})
		}
	}
}
