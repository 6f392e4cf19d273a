package livesupport

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/idfine/chatbot-platform/internal/conversation"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// AgentDirectory is the slice of the conversation store auto-assignment
// needs.
type AgentDirectory interface {
	OnlineAgents(ctx context.Context) ([]conversation.Agent, error)
	AssignedCount(ctx context.Context, agentID uuid.UUID) (int, error)
	Assign(ctx context.Context, conversationID, agentID uuid.UUID) error
}

// Assignment identifies the agent a conversation was handed to.
type Assignment struct {
	AgentID   uuid.UUID `json:"agent_id"`
	AgentName string    `json:"agent_name"`
}

// Assigner picks the least-loaded online agent for an escalated
// conversation. The selection is recomputed fresh on every escalation: no
// persistent round-robin cursor, so agent churn cannot strand state.
type Assigner struct {
	agents AgentDirectory
	queue  *Queue
	logger *logging.Logger
}

// NewAssigner creates an auto-assigner.
func NewAssigner(agents AgentDirectory, queue *Queue, logger *logging.Logger) *Assigner {
	if agents == nil {
		panic("livesupport: agent directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Assigner{agents: agents, queue: queue, logger: logger}
}

// TryAutoAssign assigns the conversation to the online agent holding the
// fewest human-mode conversations; ties go to the first agent encountered.
// Returns nil when no eligible agent is online. On success the queue entry
// is removed.
func (a *Assigner) TryAutoAssign(ctx context.Context, conversationID uuid.UUID) (*Assignment, error) {
	agents, err := a.agents.OnlineAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("livesupport: failed to list agents: %w", err)
	}
	if len(agents) == 0 {
		return nil, nil
	}

	best := agents[0]
	bestCount := -1
	for _, agent := range agents {
		count, err := a.agents.AssignedCount(ctx, agent.ID)
		if err != nil {
			return nil, fmt.Errorf("livesupport: failed to count assignments: %w", err)
		}
		if bestCount < 0 || count < bestCount {
			best = agent
			bestCount = count
		}
	}

	if err := a.agents.Assign(ctx, conversationID, best.ID); err != nil {
		return nil, err
	}

	if a.queue != nil {
		if err := a.queue.Remove(ctx, conversationID.String()); err != nil {
			a.logger.Warn("queue cleanup after auto-assign failed",
				"conversation_id", conversationID, "error", err)
		}
	}

	a.logger.Info("conversation auto-assigned",
		"conversation_id", conversationID,
		"agent_id", best.ID,
		"agent_name", best.FullName,
	)
	return &Assignment{AgentID: best.ID, AgentName: best.FullName}, nil
}
