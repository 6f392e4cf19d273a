package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// scriptedHandler advances through fixed steps and records the messages it
// was given. err, when set, is returned from every ProcessStep call.
type scriptedHandler struct {
	flowType Type
	steps    []string
	seen     []string
	err      error
}

func (h *scriptedHandler) Type() Type          { return h.flowType }
func (h *scriptedHandler) InitialStep() string { return h.steps[0] }

func (h *scriptedHandler) ProcessStep(_ context.Context, f *Flow, userMessage, _ string) (StepResult, error) {
	if h.err != nil {
		return StepResult{}, h.err
	}
	h.seen = append(h.seen, userMessage)
	for i, step := range h.steps {
		if step != f.Step {
			continue
		}
		if i == len(h.steps)-1 {
			return StepResult{Message: "done", Completed: true}, nil
		}
		f.Step = h.steps[i+1]
		f.Data["last"] = userMessage
		return StepResult{Message: "next: " + h.steps[i+1]}, nil
	}
	return brokenStep(), nil
}

func newTestManager(t *testing.T, handlers ...Handler) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr, client := setupTestRedis(t)
	m := NewManager(client, time.Minute, nil)
	for _, h := range handlers {
		m.Register(h)
	}
	return mr, m
}

func TestManager_StartAndActiveFlow(t *testing.T) {
	h := &scriptedHandler{flowType: TypeTicketCreate, steps: []string{"await_subject", "await_description"}}
	_, m := newTestManager(t, h)
	ctx := context.Background()

	f, err := m.Start(ctx, "conv-1", TypeTicketCreate, map[string]any{"seed": "x"})
	require.NoError(t, err)
	assert.Equal(t, "await_subject", f.Step)

	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, TypeTicketCreate, got.Type)
	assert.Equal(t, "await_subject", got.Step)
	assert.Equal(t, "x", got.String("seed"))
	assert.Equal(t, "conv-1", got.ConversationID)
}

func TestManager_ActiveFlowNone(t *testing.T) {
	_, m := newTestManager(t)

	got, err := m.ActiveFlow(context.Background(), "conv-none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManager_StartUnregisteredType(t *testing.T) {
	_, m := newTestManager(t)

	_, err := m.Start(context.Background(), "conv-1", TypeVerify, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoHandler))
}

func TestManager_StartOverwritesActiveFlow(t *testing.T) {
	ticket := &scriptedHandler{flowType: TypeTicketCreate, steps: []string{"await_subject", "await_description"}}
	order := &scriptedHandler{flowType: TypeOrderCreate, steps: []string{"await_items", "await_confirm"}}
	_, m := newTestManager(t, ticket, order)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeTicketCreate, nil)
	require.NoError(t, err)
	_, err = m.Start(ctx, "conv-1", TypeOrderCreate, nil)
	require.NoError(t, err)

	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, TypeOrderCreate, got.Type)
	assert.Equal(t, "await_items", got.Step)
}

func TestManager_ProcessStepNoActiveFlow(t *testing.T) {
	_, m := newTestManager(t)

	result, err := m.ProcessStep(context.Background(), "conv-1", "merhaba", "visitor-1")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestManager_ProcessStepAdvances(t *testing.T) {
	h := &scriptedHandler{flowType: TypeTicketCreate, steps: []string{"await_subject", "await_description", "await_confirm"}}
	_, m := newTestManager(t, h)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeTicketCreate, nil)
	require.NoError(t, err)

	result, err := m.ProcessStep(ctx, "conv-1", "kargo gecikti", "visitor-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "next: await_description", result.Message)
	assert.False(t, result.Completed)

	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "await_description", got.Step)
	assert.Equal(t, "kargo gecikti", got.String("last"))
}

func TestManager_ProcessStepCompletionDeletesFlow(t *testing.T) {
	h := &scriptedHandler{flowType: TypeTicketCreate, steps: []string{"await_subject"}}
	_, m := newTestManager(t, h)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeTicketCreate, nil)
	require.NoError(t, err)

	result, err := m.ProcessStep(ctx, "conv-1", "bitir", "visitor-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Completed)

	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManager_CancelWordsUniversal(t *testing.T) {
	words := []string{"iptal", "vazgec", "vazgeç", "cancel", "kapat", "  IPTAL  "}
	for _, word := range words {
		t.Run(word, func(t *testing.T) {
			h := &scriptedHandler{flowType: TypeOrderCreate, steps: []string{"await_items", "await_confirm"}}
			_, m := newTestManager(t, h)
			ctx := context.Background()

			_, err := m.Start(ctx, "conv-1", TypeOrderCreate, nil)
			require.NoError(t, err)

			result, err := m.ProcessStep(ctx, "conv-1", word, "visitor-1")
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.Cancelled)
			assert.Equal(t, msgFlowCancelled, result.Message)
			// The handler never sees the cancel word.
			assert.Empty(t, h.seen)

			got, err := m.ActiveFlow(ctx, "conv-1")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestManager_RestartResetsStepAndData(t *testing.T) {
	h := &scriptedHandler{flowType: TypeOrderCreate, steps: []string{"await_items", "await_notes", "await_confirm"}}
	_, m := newTestManager(t, h)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeOrderCreate, nil)
	require.NoError(t, err)
	_, err = m.ProcessStep(ctx, "conv-1", "2x pompa", "visitor-1")
	require.NoError(t, err)

	result, err := m.ProcessStep(ctx, "conv-1", "bastan", "visitor-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, msgFlowRestarted, result.Message)
	assert.False(t, result.Cancelled)

	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "await_items", got.Step)
	assert.Empty(t, got.Data)
}

func TestManager_HandlerErrorCancelsWithGenericMessage(t *testing.T) {
	h := &scriptedHandler{
		flowType: TypeTicketCreate,
		steps:    []string{"await_subject"},
		err:      errors.New("erp unreachable"),
	}
	_, m := newTestManager(t, h)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeTicketCreate, nil)
	require.NoError(t, err)

	result, err := m.ProcessStep(ctx, "conv-1", "kargo", "visitor-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Cancelled)
	assert.Equal(t, msgGenericFailure, result.Message)

	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManager_AbandonedFlowExpires(t *testing.T) {
	h := &scriptedHandler{flowType: TypeTicketCreate, steps: []string{"await_subject", "await_description"}}
	mr, m := newTestManager(t, h)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeTicketCreate, nil)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	result, err := m.ProcessStep(ctx, "conv-1", "merhaba", "visitor-1")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestManager_ProcessStepRefreshesTTL(t *testing.T) {
	h := &scriptedHandler{flowType: TypeTicketCreate, steps: []string{"await_subject", "await_description", "await_confirm"}}
	mr, m := newTestManager(t, h)
	ctx := context.Background()

	_, err := m.Start(ctx, "conv-1", TypeTicketCreate, nil)
	require.NoError(t, err)

	mr.FastForward(45 * time.Second)
	_, err = m.ProcessStep(ctx, "conv-1", "kargo", "visitor-1")
	require.NoError(t, err)

	// Past the original deadline, inside the refreshed one.
	mr.FastForward(45 * time.Second)
	got, err := m.ActiveFlow(ctx, "conv-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFlow_DataHelpers(t *testing.T) {
	f := &Flow{Data: map[string]any{
		"s":     "text",
		"i":     float64(7), // as decoded from JSON
		"pi":    3.5,
		"other": true,
	}}

	assert.Equal(t, "text", f.String("s"))
	assert.Equal(t, "", f.String("missing"))
	assert.Equal(t, 7, f.Int("i"))
	assert.Equal(t, 0, f.Int("missing"))
	assert.Equal(t, 3.5, f.Float("pi"))

	type dealer struct {
		Name string `json:"name"`
		City string `json:"city"`
	}
	var out []dealer
	ok := Decode([]any{
		map[string]any{"name": "Bayi A", "city": "Ankara"},
		map[string]any{"name": "Bayi B", "city": "Izmir"},
	}, &out)
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "Bayi A", out[0].Name)
	assert.Equal(t, "Izmir", out[1].City)
}
