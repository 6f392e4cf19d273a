package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

// DefaultTTL is how long an untouched flow survives before abandonment
// expiry removes it.
const DefaultTTL = 30 * time.Minute

// ErrNoHandler indicates a start request for a flow type with no registered
// handler. This is a wiring defect, not a runtime condition.
var ErrNoHandler = fmt.Errorf("flow: no handler registered")

var cancelWords = map[string]struct{}{
	"iptal": {}, "vazgec": {}, "vazgeç": {}, "cancel": {}, "kapat": {},
}

var restartWords = map[string]struct{}{
	"bastan": {}, "baştan": {}, "yeniden": {}, "restart": {},
}

// Manager is the single authority over which flow is active for a
// conversation and the only writer of flow state.
type Manager struct {
	redis    *redis.Client
	ttl      time.Duration
	handlers map[Type]Handler
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewManager creates a flow manager backed by redis.
func NewManager(rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *Manager {
	if rdb == nil {
		panic("flow: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		redis:    rdb,
		ttl:      ttl,
		handlers: make(map[Type]Handler),
		logger:   logger,
		tracer:   otel.Tracer("chatbot.internal.flow"),
	}
}

// Register adds a handler for its flow type.
func (m *Manager) Register(h Handler) {
	m.handlers[h.Type()] = h
}

func flowKey(conversationID string) string {
	return fmt.Sprintf("flow:%s", conversationID)
}

// ActiveFlow returns the active flow for a conversation, or nil if none
// exists or the previous one expired.
func (m *Manager) ActiveFlow(ctx context.Context, conversationID string) (*Flow, error) {
	ctx, span := m.tracer.Start(ctx, "flow.active")
	defer span.End()

	data, err := m.redis.Get(ctx, flowKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("flow: failed to load flow: %w", err)
	}

	var f Flow
	if err := json.Unmarshal(data, &f); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("flow: failed to decode flow: %w", err)
	}
	if f.Data == nil {
		f.Data = make(map[string]any)
	}
	f.ConversationID = conversationID
	return &f, nil
}

// Start begins a new flow for the conversation. Callers check for an active
// flow first; a concurrent start simply overwrites (last writer wins).
func (m *Manager) Start(ctx context.Context, conversationID string, t Type, initialData map[string]any) (*Flow, error) {
	handler, ok := m.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, t)
	}

	if initialData == nil {
		initialData = make(map[string]any)
	}
	f := &Flow{
		Type:           t,
		Step:           handler.InitialStep(),
		Data:           initialData,
		ConversationID: conversationID,
	}
	if err := m.save(ctx, conversationID, f); err != nil {
		return nil, err
	}

	m.logger.Info("flow started", "flow_type", t, "conversation_id", conversationID)
	return f, nil
}

// ProcessStep advances the active flow by one turn. A nil result means no
// flow is active and the caller should continue with ordinary intent
// handling. Cancel and restart keywords are intercepted here so every flow
// gets the same escape hatches without handler involvement.
func (m *Manager) ProcessStep(ctx context.Context, conversationID, userMessage, visitorID string) (*StepResult, error) {
	ctx, span := m.tracer.Start(ctx, "flow.process_step")
	defer span.End()

	f, err := m.ActiveFlow(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}

	lower := strings.ToLower(strings.TrimSpace(userMessage))
	if _, ok := cancelWords[lower]; ok {
		if err := m.Cancel(ctx, conversationID); err != nil {
			return nil, err
		}
		return &StepResult{Message: msgFlowCancelled, Cancelled: true}, nil
	}

	handler, ok := m.handlers[f.Type]
	if _, restart := restartWords[lower]; restart && ok {
		f.Step = handler.InitialStep()
		f.Data = make(map[string]any)
		if err := m.save(ctx, conversationID, f); err != nil {
			return nil, err
		}
		return &StepResult{Message: msgFlowRestarted}, nil
	}

	if !ok {
		// Deployed without the handler this stored flow needs.
		if err := m.Cancel(ctx, conversationID); err != nil {
			return nil, err
		}
		m.logger.Error("flow handler missing", "flow_type", f.Type, "conversation_id", conversationID)
		return &StepResult{Message: msgHandlerMissing, Cancelled: true}, nil
	}

	result, err := handler.ProcessStep(ctx, f, userMessage, visitorID)
	if err != nil {
		span.RecordError(err)
		m.logger.Error("flow step failed", "flow_type", f.Type, "step", f.Step, "error", err)
		if cerr := m.Cancel(ctx, conversationID); cerr != nil {
			return nil, cerr
		}
		return &StepResult{Message: msgGenericFailure, Cancelled: true}, nil
	}

	if result.Completed || result.Cancelled {
		if err := m.Cancel(ctx, conversationID); err != nil {
			return nil, err
		}
	} else if err := m.save(ctx, conversationID, f); err != nil {
		return nil, err
	}

	return &result, nil
}

// Cancel deletes the active flow. Idempotent.
func (m *Manager) Cancel(ctx context.Context, conversationID string) error {
	if err := m.redis.Del(ctx, flowKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("flow: failed to delete flow: %w", err)
	}
	m.logger.Info("flow cancelled", "conversation_id", conversationID)
	return nil
}

func (m *Manager) save(ctx context.Context, conversationID string, f *Flow) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("flow: failed to marshal flow: %w", err)
	}
	if err := m.redis.Set(ctx, flowKey(conversationID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("flow: failed to persist flow: %w", err)
	}
	return nil
}
