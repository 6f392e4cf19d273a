// Package conversation persists conversations, their message history, and
// the agent roster in postgres. The live-support surface and the chat
// orchestrator both read and mutate conversation state through this store;
// redis holds only transient coordination state (flows, sessions, queue).
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation: not found")

// Conversation states.
const (
	StatusActive   = "active"
	StatusWaiting  = "waiting"
	StatusAssigned = "assigned"
	StatusClosed   = "closed"
)

// Conversation modes: who answers the customer.
const (
	ModeAI    = "ai"
	ModeHuman = "human"
)

// Conversation is one customer dialogue, AI- or human-handled.
type Conversation struct {
	ID              uuid.UUID
	VisitorID       string
	Channel         string
	SourceGroupID   *uuid.UUID
	Status          string
	Mode            string
	AssignedAgentID *uuid.UUID
	EscalatedAt     *time.Time
	FirstResponseAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message is one turn in a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	Intent         string
	SenderType     string
	AgentID        *uuid.UUID
	CreatedAt      time.Time
}

// HistoryEntry is the reduced shape handed to response builders.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent is one member of the live-support roster.
type Agent struct {
	ID       uuid.UUID
	FullName string
	Role     string
	Status   string
}

// PgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the postgres-backed conversation repository.
type Store struct {
	pool PgxPool
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &Store{pool: pool}
}

const conversationColumns = `id, visitor_id, channel, source_group_id, status, mode, assigned_agent_id, escalated_at, first_response_at, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.ID,
		&c.VisitorID,
		&c.Channel,
		&c.SourceGroupID,
		&c.Status,
		&c.Mode,
		&c.AssignedAgentID,
		&c.EscalatedAt,
		&c.FirstResponseAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversation: scan failed: %w", err)
	}
	return &c, nil
}

// Get fetches one conversation by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(s.pool.QueryRow(ctx, query, id))
}

// GetOrCreate returns the conversation with the given id, or creates a fresh
// one when the id is empty or unknown. New conversations start in AI mode.
func (s *Store) GetOrCreate(ctx context.Context, id, visitorID, channel string, sourceGroupID *uuid.UUID) (*Conversation, error) {
	if id != "" {
		convID, err := uuid.Parse(id)
		if err == nil {
			conv, err := s.Get(ctx, convID)
			if err == nil {
				return conv, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
	}

	if channel == "" {
		channel = "widget"
	}
	query := `
		INSERT INTO conversations (id, visitor_id, channel, source_group_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + conversationColumns
	return scanConversation(s.pool.QueryRow(ctx, query, uuid.New(), visitorID, channel, sourceGroupID))
}

// SaveMessage appends one message to a conversation and bumps its
// updated_at.
func (s *Store) SaveMessage(ctx context.Context, m Message) (*Message, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.SenderType == "" {
		m.SenderType = "ai"
	}
	query := `
		INSERT INTO messages (id, conversation_id, role, content, intent, sender_type, agent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	if err := s.pool.QueryRow(ctx, query,
		m.ID,
		m.ConversationID,
		m.Role,
		m.Content,
		m.Intent,
		m.SenderType,
		m.AgentID,
	).Scan(&m.CreatedAt); err != nil {
		return nil, fmt.Errorf("conversation: insert message failed: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, m.ConversationID,
	); err != nil {
		return nil, fmt.Errorf("conversation: touch failed: %w", err)
	}
	return &m, nil
}

// History returns the most recent turns in chronological order, reduced to
// role and content.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT role, content FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: history query failed: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Role, &e.Content); err != nil {
			return nil, fmt.Errorf("conversation: history scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: history rows failed: %w", err)
	}

	// DESC query for the LIMIT; callers want oldest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Messages returns the full transcript in chronological order.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, conversation_id, role, content, COALESCE(intent, ''), sender_type, agent_id, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: messages query failed: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Intent, &m.SenderType, &m.AgentID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: message scan failed: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: message rows failed: %w", err)
	}
	return msgs, nil
}

// OnlineAgents lists active agents currently marked online and eligible to
// take conversations.
func (s *Store) OnlineAgents(ctx context.Context) ([]Agent, error) {
	query := `
		SELECT id, full_name, role, agent_status FROM agents
		WHERE is_active = true AND agent_status = 'online' AND role IN ('admin', 'agent', 'manager')
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("conversation: agent query failed: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.FullName, &a.Role, &a.Status); err != nil {
			return nil, fmt.Errorf("conversation: agent scan failed: %w", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: agent rows failed: %w", err)
	}
	return agents, nil
}

// AssignedCount returns how many human-mode conversations the agent
// currently holds.
func (s *Store) AssignedCount(ctx context.Context, agentID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM conversations
		WHERE assigned_agent_id = $1 AND mode = 'human' AND status = 'assigned'`
	var count int
	if err := s.pool.QueryRow(ctx, query, agentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("conversation: assigned count failed: %w", err)
	}
	return count, nil
}

// Assign hands the conversation to an agent in a single statement: status,
// mode, and assignee move together, and first_response_at is stamped once.
func (s *Store) Assign(ctx context.Context, conversationID, agentID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET status = 'assigned', mode = 'human', assigned_agent_id = $2,
		    first_response_at = COALESCE(first_response_at, now()), updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, conversationID, agentID)
	if err != nil {
		return fmt.Errorf("conversation: assign failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkWaiting records the escalation moment and flips the conversation into
// the wait state.
func (s *Store) MarkWaiting(ctx context.Context, conversationID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET status = 'waiting', escalated_at = COALESCE(escalated_at, now()), updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: mark waiting failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Release returns the conversation to AI handling and clears the assignee.
func (s *Store) Release(ctx context.Context, conversationID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET status = 'active', mode = 'ai', assigned_agent_id = NULL, updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: release failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close terminates the conversation and clears the assignee.
func (s *Store) Close(ctx context.Context, conversationID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET status = 'closed', mode = 'ai', assigned_agent_id = NULL, updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: close failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignedTo lists the human-mode conversations an agent currently holds,
// most recently touched first.
func (s *Store) AssignedTo(ctx context.Context, agentID uuid.UUID) ([]Conversation, error) {
	query := `
		SELECT ` + conversationColumns + ` FROM conversations
		WHERE assigned_agent_id = $1 AND mode = 'human'
		ORDER BY updated_at DESC`
	rows, err := s.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("conversation: assigned query failed: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(
			&c.ID, &c.VisitorID, &c.Channel, &c.SourceGroupID, &c.Status, &c.Mode,
			&c.AssignedAgentID, &c.EscalatedAt, &c.FirstResponseAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: assigned scan failed: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: assigned rows failed: %w", err)
	}
	return convs, nil
}
