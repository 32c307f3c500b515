package constant

import (
	"fmt"
	"strings"
	"time"
)

const (
	SessionStatusActive = "active"
	DefaultSessionTTL   = 3600 * time.Second

	// Key namespace shared by the session manager and the message ledger.
	// It is the only durable contract across restarts; do not change it.
	SessionKeyPrefix   = "chat_session"
	GlobalMessageIDKey = "global:message_id"

	MessageFieldRole      = "role"
	MessageFieldContent   = "content"
	MessageFieldTimestamp = "timestamp"
	MessageFieldTruncated = "truncated"

	// Watermill topic carrying one job per session the sweeper found.
	SessionSweepTopic = "SESSION_SWEEP"
)

func SessionStatusKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:status", SessionKeyPrefix, sessionID)
}

func SessionMessagesKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:messages", SessionKeyPrefix, sessionID)
}

func SessionMessageKey(sessionID string, messageID string) string {
	return fmt.Sprintf("%s:%s:message:%s", SessionKeyPrefix, sessionID, messageID)
}

// SessionMessagesPattern matches every per-session ordered index.
func SessionMessagesPattern() string {
	return SessionKeyPrefix + ":*:messages"
}

// SessionIDFromMessagesKey is the inverse of SessionMessagesKey.
func SessionIDFromMessagesKey(key string) (string, bool) {
	prefix := SessionKeyPrefix + ":"
	suffix := ":messages"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
	if id == "" {
		return "", false
	}
	return id, true
}
