package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/rag/message"

	"github.com/google/uuid"
)

// ErrInvalidSession is returned by Require for unknown or expired sessions.
var ErrInvalidSession = errors.New("invalid session")

// Manager owns the session status key. Message data lives in the Ledger and
// is cascaded away the first time an expired session is checked.
type Manager struct {
	store     contract.SessionStore
	ledger    *message.Ledger
	ttl       time.Duration
	publisher events.Publisher
	logger    logger.ILogger
}

func NewManager(
	store contract.SessionStore,
	ledger *message.Ledger,
	ttl time.Duration,
	publisher events.Publisher,
	log logger.ILogger,
) *Manager {
	if ttl <= 0 {
		ttl = constant.DefaultSessionTTL
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		store:     store,
		ledger:    ledger,
		ttl:       ttl,
		publisher: publisher,
		logger:    log,
	}
}

// CreateSession registers a new active session and returns its id.
func (m *Manager) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := m.store.Set(ctx, constant.SessionStatusKey(id), constant.SessionStatusActive, m.ttl); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	m.publish(ctx, events.SessionCreated(id))
	m.logger.Info("SESSION", "Session created", map[string]interface{}{"session_id": id})
	return id, nil
}

// IsValid reports whether the session is still active. A missing status key
// means the session expired: its leftovers are deleted before returning false.
// This read mutates the store.
func (m *Manager) IsValid(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	statusKey := constant.SessionStatusKey(sessionID)
	exists, err := m.store.Exists(ctx, statusKey)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	if exists {
		return true, nil
	}

	if err := m.store.Delete(ctx, statusKey); err != nil {
		return false, fmt.Errorf("delete session status: %w", err)
	}
	removed, err := m.ledger.DeleteAll(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("cascade session messages: %w", err)
	}

	if removed > 0 {
		m.logger.Info("SESSION", "Expired session cleaned up", map[string]interface{}{
			"session_id":       sessionID,
			"removed_messages": removed,
		})
		m.publish(ctx, events.SessionExpired(sessionID, removed))
	}
	return false, nil
}

// Require is IsValid for callers that want an error instead of a bool.
func (m *Manager) Require(ctx context.Context, sessionID string) error {
	valid, err := m.IsValid(ctx, sessionID)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidSession
	}
	return nil
}

// publish never fails the caller; the bus is best effort.
func (m *Manager) publish(ctx context.Context, event events.Event) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("SESSION", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
