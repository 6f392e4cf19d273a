// Package session manages authenticated customer sessions: the binding of an
// anonymous visitor id to a verified ERP partner, created after one-time-code
// verification. Presence of a session is the authorization gate for every
// identity-requiring operation.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

// DefaultTTL is the sliding expiry for customer sessions.
const DefaultTTL = 2 * time.Hour

// Session is a verified customer identity bound to a visitor id.
type Session struct {
	PartnerID       int       `json:"partner_id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	VerifiedAt      time.Time `json:"verified_at"`
	VisitorID       string    `json:"visitor_id"`
	PricelistID     int       `json:"pricelist_id,omitempty"`
	PricelistName   string    `json:"pricelist_name,omitempty"`
	DiscountPercent float64   `json:"discount_percent,omitempty"`
}

// Store persists customer sessions in redis, one per visitor id.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	tracer trace.Tracer
}

// NewStore creates a session store.
func NewStore(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *Store {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		redis:  rdb,
		ttl:    ttl,
		logger: logger,
		tracer: otel.Tracer("chatbot.internal.session"),
	}
}

func sessionKey(visitorID string) string {
	return fmt.Sprintf("customer_session:%s", visitorID)
}

// Create stores a new session after successful verification, replacing any
// existing session for the visitor.
func (s *Store) Create(ctx context.Context, sess Session) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.create")
	defer span.End()

	if sess.VerifiedAt.IsZero() {
		sess.VerifiedAt = time.Now().UTC()
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.VisitorID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to persist session: %w", err)
	}

	s.logger.Info("customer session created",
		"visitor_id", sess.VisitorID,
		"partner_id", sess.PartnerID,
		"name", sess.Name,
	)
	return &sess, nil
}

// Get returns the active session for a visitor, or nil when absent/expired.
func (s *Store) Get(ctx context.Context, visitorID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(visitorID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	return &sess, nil
}

// Extend refreshes the TTL on activity. Returns false when no session exists.
func (s *Store) Extend(ctx context.Context, visitorID string) (bool, error) {
	ok, err := s.redis.Expire(ctx, sessionKey(visitorID), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("session: failed to extend session: %w", err)
	}
	return ok, nil
}

// Destroy removes the session (logout). Returns whether one existed.
func (s *Store) Destroy(ctx context.Context, visitorID string) (bool, error) {
	deleted, err := s.redis.Del(ctx, sessionKey(visitorID)).Result()
	if err != nil {
		return false, fmt.Errorf("session: failed to destroy session: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("customer session destroyed", "visitor_id", visitorID)
	}
	return deleted > 0, nil
}

// IsAuthenticated reports whether the visitor has a live session.
func (s *Store) IsAuthenticated(ctx context.Context, visitorID string) (bool, error) {
	n, err := s.redis.Exists(ctx, sessionKey(visitorID)).Result()
	if err != nil {
		return false, fmt.Errorf("session: failed to check session: %w", err)
	}
	return n > 0, nil
}
