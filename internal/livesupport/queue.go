package livesupport

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

// DefaultEntryTTL is how long an unclaimed queue entry is retained.
const DefaultEntryTTL = 24 * time.Hour

const queueKey = "live_support:queue"

func queueMetaKey(conversationID string) string {
	return fmt.Sprintf("live_support:queue:%s", conversationID)
}

// Entry is the metadata stored for a conversation waiting for an agent.
type Entry struct {
	ConversationID string `json:"conversation_id"`
	VisitorID      string `json:"visitor_id"`
	LastMessage    string `json:"last_message"`
	SourceGroupID  string `json:"source_group_id"`
	Channel        string `json:"channel"`
	QueuedAt       string `json:"queued_at"`
}

// Queue is the redis-backed wait line for escalated conversations: a sorted
// set ordered by enqueue time plus one metadata hash per entry.
type Queue struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	tracer trace.Tracer
}

// NewQueue creates the escalation queue.
func NewQueue(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *Queue {
	if rdb == nil {
		panic("livesupport: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{
		redis:  rdb,
		ttl:    ttl,
		logger: logger,
		tracer: otel.Tracer("chatbot.internal.livesupport"),
	}
}

// Add enqueues a conversation. Re-adding refreshes the metadata and the
// score, moving the entry to the back of the queue: the latest escalation
// wins.
func (q *Queue) Add(ctx context.Context, e Entry) error {
	ctx, span := q.tracer.Start(ctx, "livesupport.queue_add")
	defer span.End()

	now := time.Now()
	if e.Channel == "" {
		e.Channel = "widget"
	}
	if err := q.redis.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(now.UnixMilli()) / 1000,
		Member: e.ConversationID,
	}).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("livesupport: failed to enqueue: %w", err)
	}

	meta := queueMetaKey(e.ConversationID)
	if err := q.redis.HSet(ctx, meta, map[string]any{
		"conversation_id": e.ConversationID,
		"visitor_id":      e.VisitorID,
		"last_message":    truncate(e.LastMessage, previewLimit),
		"source_group_id": e.SourceGroupID,
		"channel":         e.Channel,
		"queued_at":       fmt.Sprintf("%d", now.Unix()),
	}).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("livesupport: failed to store queue metadata: %w", err)
	}
	if err := q.redis.Expire(ctx, meta, q.ttl).Err(); err != nil {
		return fmt.Errorf("livesupport: failed to set queue metadata ttl: %w", err)
	}

	q.logger.Info("conversation queued", "conversation_id", e.ConversationID, "channel", e.Channel)
	return nil
}

// Remove deletes the conversation from both queue structures. Safe to call
// when absent.
func (q *Queue) Remove(ctx context.Context, conversationID string) error {
	if err := q.redis.ZRem(ctx, queueKey, conversationID).Err(); err != nil {
		return fmt.Errorf("livesupport: failed to dequeue: %w", err)
	}
	if err := q.redis.Del(ctx, queueMetaKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("livesupport: failed to delete queue metadata: %w", err)
	}
	return nil
}

// Waiting returns queued conversations in enqueue order. Entries whose
// metadata expired are pruned from the sorted set during the scan, so a
// stale pointer never surfaces twice.
func (q *Queue) Waiting(ctx context.Context) ([]Entry, error) {
	ctx, span := q.tracer.Start(ctx, "livesupport.queue_waiting")
	defer span.End()

	ids, err := q.redis.ZRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("livesupport: failed to scan queue: %w", err)
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		data, err := q.redis.HGetAll(ctx, queueMetaKey(id)).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("livesupport: failed to load queue metadata: %w", err)
		}
		if len(data) == 0 {
			// Metadata expired; self-heal the orphaned pointer.
			if err := q.redis.ZRem(ctx, queueKey, id).Err(); err != nil {
				q.logger.Warn("stale queue entry cleanup failed", "conversation_id", id, "error", err)
			}
			continue
		}
		entries = append(entries, Entry{
			ConversationID: data["conversation_id"],
			VisitorID:      data["visitor_id"],
			LastMessage:    data["last_message"],
			SourceGroupID:  data["source_group_id"],
			Channel:        data["channel"],
			QueuedAt:       data["queued_at"],
		})
	}
	return entries, nil
}

// Count returns the number of waiting conversations.
func (q *Queue) Count(ctx context.Context) (int64, error) {
	count, err := q.redis.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("livesupport: failed to count queue: %w", err)
	}
	return count, nil
}
