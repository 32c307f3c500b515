package message

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/contract"
)

// TimestampLayout is what Append writes when the caller supplies no timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Accepted caller layouts. Zone-less values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Ledger stores chat messages per session: one hash per message and a sorted
// set per session scored by the message timestamp.
type Ledger struct {
	store  contract.SessionStore
	ttl    time.Duration
	logger logger.ILogger
	now    func() time.Time
}

func NewLedger(store contract.SessionStore, ttl time.Duration, log logger.ILogger) *Ledger {
	if ttl <= 0 {
		ttl = constant.DefaultSessionTTL
	}
	return &Ledger{
		store:  store,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

type appendOptions struct {
	truncated bool
}

type AppendOption func(*appendOptions)

// WithTruncated flags the message as an incomplete model answer.
func WithTruncated() AppendOption {
	return func(o *appendOptions) {
		o.truncated = true
	}
}

// ParseTimestamp converts a stored or caller supplied timestamp to time.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}

// Score is the sorted-set score for t: epoch seconds with sub-second fraction.
func Score(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Append stores one message and slides the session TTL. An empty timestamp
// means now. Ordering inside the session follows the timestamp, not call order.
func (l *Ledger) Append(ctx context.Context, sessionID, role, content, timestamp string, opts ...AppendOption) (*entity.Message, error) {
	var o appendOptions
	for _, opt := range opts {
		opt(&o)
	}

	var at time.Time
	if timestamp == "" {
		at = l.now().UTC()
		timestamp = at.Format(TimestampLayout)
	} else {
		parsed, err := ParseTimestamp(timestamp)
		if err != nil {
			return nil, err
		}
		at = parsed
	}

	id, err := l.store.Incr(ctx, constant.GlobalMessageIDKey)
	if err != nil {
		return nil, fmt.Errorf("allocate message id: %w", err)
	}
	messageID := strconv.FormatInt(id, 10)

	fields := map[string]string{
		constant.MessageFieldRole:      role,
		constant.MessageFieldContent:   content,
		constant.MessageFieldTimestamp: timestamp,
	}
	if o.truncated {
		fields[constant.MessageFieldTruncated] = "1"
	}

	if err := l.store.HSet(ctx, constant.SessionMessageKey(sessionID, messageID), fields); err != nil {
		return nil, fmt.Errorf("write message %s: %w", messageID, err)
	}
	if err := l.store.ZAdd(ctx, constant.SessionMessagesKey(sessionID), messageID, Score(at)); err != nil {
		return nil, fmt.Errorf("index message %s: %w", messageID, err)
	}
	if err := l.store.Expire(ctx, constant.SessionStatusKey(sessionID), l.ttl); err != nil {
		return nil, fmt.Errorf("refresh session ttl: %w", err)
	}

	return &entity.Message{
		Id:        id,
		SessionId: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: timestamp,
		Truncated: o.truncated,
	}, nil
}

// List returns the session's messages ascending by timestamp, equal
// timestamps in append order. Index entries whose record is already gone
// are skipped.
func (l *Ledger) List(ctx context.Context, sessionID string) ([]*entity.Message, error) {
	entries, err := l.store.ZRangeWithScores(ctx, constant.SessionMessagesKey(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read message index: %w", err)
	}
	sortByScoreThenID(entries)

	messages := make([]*entity.Message, 0, len(entries))
	for _, entry := range entries {
		messageID := entry.Member
		fields, err := l.store.HGetAll(ctx, constant.SessionMessageKey(sessionID, messageID))
		if err != nil {
			return nil, fmt.Errorf("read message %s: %w", messageID, err)
		}
		if len(fields) == 0 {
			l.logger.Debug("LEDGER", "Skipping dangling message id", map[string]interface{}{
				"session_id": sessionID,
				"message_id": messageID,
			})
			continue
		}

		id, _ := strconv.ParseInt(messageID, 10, 64)
		truncated := fields[constant.MessageFieldTruncated]
		messages = append(messages, &entity.Message{
			Id:        id,
			SessionId: sessionID,
			Role:      fields[constant.MessageFieldRole],
			Content:   fields[constant.MessageFieldContent],
			Timestamp: fields[constant.MessageFieldTimestamp],
			Truncated: truncated == "1" || truncated == "true",
		})
	}
	return messages, nil
}

// Redis breaks score ties by comparing members as strings, which puts "10"
// before "2". Ids are allocated in append order, so compare them as numbers.
func sortByScoreThenID(entries []contract.ScoredMember) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		a, errA := strconv.ParseInt(entries[i].Member, 10, 64)
		b, errB := strconv.ParseInt(entries[j].Member, 10, 64)
		if errA != nil || errB != nil {
			return entries[i].Member < entries[j].Member
		}
		return a < b
	})
}

// DeleteAll removes the message records first and the index last. Every
// delete is idempotent, so concurrent calls for one session are safe.
// Returns the number of indexed ids that were removed.
func (l *Ledger) DeleteAll(ctx context.Context, sessionID string) (int, error) {
	indexKey := constant.SessionMessagesKey(sessionID)
	ids, err := l.store.ZRange(ctx, indexKey, 0, -1)
	if err != nil {
		return 0, fmt.Errorf("read message index: %w", err)
	}

	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, messageID := range ids {
			keys[i] = constant.SessionMessageKey(sessionID, messageID)
		}
		if err := l.store.Delete(ctx, keys...); err != nil {
			return 0, fmt.Errorf("delete message records: %w", err)
		}
	}

	if err := l.store.Delete(ctx, indexKey); err != nil {
		return 0, fmt.Errorf("delete message index: %w", err)
	}
	return len(ids), nil
}
