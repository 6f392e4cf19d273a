// Package chat implements the conversation orchestrator: one entry point
// that routes each customer message through the active flow, the intent
// classifier, the identity gate, and the ERP-backed context handlers before
// the responder composes the final reply.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/idfine/chatbot-platform/internal/catalog"
	"github.com/idfine/chatbot-platform/internal/conversation"
	"github.com/idfine/chatbot-platform/internal/flow"
	"github.com/idfine/chatbot-platform/internal/intent"
	"github.com/idfine/chatbot-platform/internal/session"
	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Reply is the outcome of one processed message.
type Reply struct {
	ConversationID string
	Text           string
	Intent         intent.Intent
	Actions        []Action
}

// Options wires the orchestrator's collaborators. Store is required; every
// other dependency degrades gracefully when absent.
type Options struct {
	Store        ConversationStore
	Flows        FlowEngine
	Sessions     SessionStore
	Customers    CustomerData
	Products     ProductSearcher
	Generator    Generator
	CatalogURLTR string
	CatalogURLEN string
	Logger       *logging.Logger
}

// Orchestrator processes customer messages. Turns within one conversation
// are serialized so a slow ERP call cannot interleave flow state.
type Orchestrator struct {
	store     ConversationStore
	flows     FlowEngine
	sessions  SessionStore
	customers CustomerData
	products  ProductSearcher
	generator Generator
	catalogTR string
	catalogEN string
	logger    *logging.Logger
	tracer    trace.Tracer

	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

// New creates the orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Store == nil {
		panic("chat: conversation store cannot be nil")
	}
	if opts.Generator == nil {
		opts.Generator = TemplateGenerator{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Orchestrator{
		store:     opts.Store,
		flows:     opts.Flows,
		sessions:  opts.Sessions,
		customers: opts.Customers,
		products:  opts.Products,
		generator: opts.Generator,
		catalogTR: opts.CatalogURLTR,
		catalogEN: opts.CatalogURLEN,
		logger:    opts.Logger,
		tracer:    otel.Tracer("chatbot.internal.chat"),
		locks:     make(map[string]*convLock),
	}
}

// lockTurn serializes processing per conversation. Unknown conversation ids
// fall back to the visitor id so a visitor's first messages still arrive in
// order.
func (o *Orchestrator) lockTurn(conversationID, visitorID string) func() {
	key := conversationID
	if key == "" {
		key = visitorID
	}

	o.mu.Lock()
	l, ok := o.locks[key]
	if !ok {
		l = &convLock{}
		o.locks[key] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, key)
		}
		o.mu.Unlock()
	}
}

// HandleMessage processes one customer message and returns the reply.
// conversationID may be empty or unknown; a fresh conversation is created
// then.
func (o *Orchestrator) HandleMessage(ctx context.Context, conversationID, visitorID, channel, sourceGroupID, text string) (*Reply, error) {
	ctx, span := o.tracer.Start(ctx, "chat.handle_message")
	defer span.End()

	unlock := o.lockTurn(conversationID, visitorID)
	defer unlock()

	var sgID *uuid.UUID
	if parsed, err := uuid.Parse(sourceGroupID); err == nil {
		sgID = &parsed
	}

	conv, err := o.store.GetOrCreate(ctx, conversationID, visitorID, channel, sgID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	convID := conv.ID.String()

	if _, err := o.store.SaveMessage(ctx, conversation.Message{
		ConversationID: conv.ID,
		Role:           "user",
		Content:        text,
		SenderType:     "user",
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Step 1: an active multi-step flow consumes the message first. A
	// silent cancel means the input read like an ordinary question; it
	// falls through to intent handling.
	if o.flows != nil {
		result, err := o.flows.ProcessStep(ctx, convID, text, visitorID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if result != nil && !(result.Cancelled && result.Message == "") {
			return o.finishFlowTurn(ctx, conv, text, visitorID, result)
		}
	}

	// Step 2: classify.
	classified := intent.Classify(text)
	in := classified.Intent

	// Greetings and farewells never touch a backend.
	if classified.Greeting {
		reply := pickResponse(greetingResponses, classified.Lang)
		if isFarewell(text) {
			reply = pickResponse(farewellResponses, classified.Lang)
		}
		return o.saveReply(ctx, conv, reply, intent.GeneralInfo, nil)
	}

	switch in {
	case intent.CustomerAuth:
		return o.saveReply(ctx, conv, o.startVerifyFlow(ctx, convID, in), in, nil)
	case intent.CustomerLogout:
		return o.saveReply(ctx, conv, o.handleLogout(ctx, visitorID), in, nil)
	}

	// Guests never see prices; they are offered the dealer finder and the
	// quotation flow instead.
	if in == intent.PriceInquiry && o.currentSession(ctx, visitorID) == nil {
		return o.saveReply(ctx, conv, priceGuestMsg, in, priceGuestActions)
	}

	if in == intent.CatalogRequest {
		return o.saveReply(ctx, conv, buildCatalogResponse(text, o.catalogTR, o.catalogEN), in, nil)
	}

	// Complaint and dealer lookup run without identity verification.
	if in == intent.Complaint || in == intent.FindDealer {
		if msg := o.maybeStartFlow(ctx, convID, in, visitorID); msg != "" {
			return o.saveReply(ctx, conv, msg, in, nil)
		}
	}

	if in.RequiresCustomerAuth() {
		sess := o.currentSession(ctx, visitorID)
		if sess == nil {
			return o.saveReply(ctx, conv, o.startVerifyFlow(ctx, convID, in), in, nil)
		}

		if o.sessions != nil {
			if _, err := o.sessions.Extend(ctx, visitorID); err != nil {
				o.logger.Warn("session extend failed", "visitor_id", visitorID, "error", err)
			}
		}

		if msg := o.maybeStartFlow(ctx, convID, in, visitorID); msg != "" {
			return o.saveReply(ctx, conv, msg, in, nil)
		}

		if data := o.customerContext(ctx, in, text, sess.PartnerID); data != "" {
			answer, err := o.generator.Generate(ctx, GenerateRequest{
				Message:      text,
				Intent:       in,
				History:      o.history(ctx, conv.ID),
				CustomerData: data,
			})
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			return o.saveReply(ctx, conv, answer, in, nil)
		}
	}

	if in == intent.OutOfScope {
		return o.saveReply(ctx, conv, msgOutOfScope, in, nil)
	}

	// Standard path: product context from the synced catalog plus the
	// responder.
	answer, err := o.generator.Generate(ctx, GenerateRequest{
		Message:     text,
		Intent:      in,
		History:     o.history(ctx, conv.ID),
		ProductData: o.productContext(ctx, in, text, visitorID),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return o.saveReply(ctx, conv, answer, in, nil)
}

// finishFlowTurn saves the flow reply and, when identity verification just
// completed on behalf of another intent, resumes that intent in the same
// turn.
func (o *Orchestrator) finishFlowTurn(ctx context.Context, conv *conversation.Conversation, text, visitorID string, result *flow.StepResult) (*Reply, error) {
	reply, err := o.saveReply(ctx, conv, result.Message, intent.CustomerAuth, nil)
	if err != nil {
		return nil, err
	}
	if !result.Completed {
		return reply, nil
	}

	original, _ := result.Data["original_intent"].(string)
	if original == "" {
		return reply, nil
	}
	in := intent.Intent(original)
	convID := conv.ID.String()

	if msg := o.maybeStartFlow(ctx, convID, in, visitorID); msg != "" {
		followUp, err := o.saveReply(ctx, conv, msg, in, nil)
		if err != nil {
			return nil, err
		}
		reply.Text += "\n\n" + followUp.Text
		return reply, nil
	}

	partnerID := intFromData(result.Data["partner_id"])
	data := o.customerContext(ctx, in, text, partnerID)
	if data == "" {
		return reply, nil
	}
	answer, err := o.generator.Generate(ctx, GenerateRequest{
		Message:      text,
		Intent:       in,
		History:      o.history(ctx, conv.ID),
		CustomerData: data,
	})
	if err != nil {
		o.logger.Error("resumed intent failed", "intent", in, "error", err)
		return reply, nil
	}
	if _, err := o.saveReply(ctx, conv, answer, in, nil); err != nil {
		return nil, err
	}
	reply.Text += "\n\n" + answer
	return reply, nil
}

// startVerifyFlow opens the identity verification flow, remembering which
// intent asked for it.
func (o *Orchestrator) startVerifyFlow(ctx context.Context, conversationID string, original intent.Intent) string {
	if o.flows == nil {
		return msgVerifyUnavailable
	}
	initial := map[string]any{}
	if original != intent.CustomerAuth {
		initial["original_intent"] = string(original)
	}
	if _, err := o.flows.Start(ctx, conversationID, flow.TypeVerify, initial); err != nil {
		o.logger.Error("verify flow start failed", "conversation_id", conversationID, "error", err)
		return msgVerifyUnavailable
	}
	return msgVerifyIntro
}

func (o *Orchestrator) handleLogout(ctx context.Context, visitorID string) string {
	if o.sessions != nil && visitorID != "" {
		destroyed, err := o.sessions.Destroy(ctx, visitorID)
		if err != nil {
			o.logger.Error("logout failed", "visitor_id", visitorID, "error", err)
		} else if destroyed {
			return msgLogoutDone
		}
	}
	return msgNoActiveSession
}

// maybeStartFlow starts the flow mapped to the intent, if any, and returns
// its intro prompt. The dealer finder processes its first step immediately
// so the city list appears without an extra turn.
func (o *Orchestrator) maybeStartFlow(ctx context.Context, conversationID string, in intent.Intent, visitorID string) string {
	flowType, ok := flowIntents[in]
	if !ok || o.flows == nil {
		return ""
	}

	if _, err := o.flows.Start(ctx, conversationID, flowType, nil); err != nil {
		o.logger.Error("flow start failed", "flow_type", flowType, "error", err)
		return ""
	}

	if flowType == flow.TypeFindDealer {
		result, err := o.flows.ProcessStep(ctx, conversationID, "", visitorID)
		if err == nil && result != nil && result.Message != "" {
			return result.Message
		}
		if err != nil {
			o.logger.Error("dealer flow first step failed", "error", err)
		}
	}

	if prompt, ok := flowPrompts[flowType]; ok {
		return prompt
	}
	return msgFlowStartedFallback
}

func (o *Orchestrator) currentSession(ctx context.Context, visitorID string) *session.Session {
	if o.sessions == nil || visitorID == "" {
		return nil
	}
	sess, err := o.sessions.Get(ctx, visitorID)
	if err != nil {
		o.logger.Error("session lookup failed", "visitor_id", visitorID, "error", err)
		return nil
	}
	return sess
}

// productContext searches the synced catalog for price, stock and product
// questions. Guests see the listing without prices.
func (o *Orchestrator) productContext(ctx context.Context, in intent.Intent, text, visitorID string) string {
	switch in {
	case intent.PriceInquiry, intent.StockCheck, intent.ProductInfo, intent.Hybrid:
	default:
		return ""
	}
	if o.products == nil {
		return ""
	}

	products, err := o.products.Search(ctx, text, 10)
	if err != nil {
		o.logger.Warn("product search failed", "error", err)
		return ""
	}
	guest := o.currentSession(ctx, visitorID) == nil
	return formatProductContext(products, guest)
}

func formatProductContext(products []catalog.Product, guest bool) string {
	if len(products) == 0 {
		return ""
	}
	lines := []string{"Urun Bilgileri:"}
	for _, p := range products {
		line := "- " + p.Code + " | " + p.Name
		if p.Collection != "" {
			line += " | Koleksiyon: " + p.Collection
		}
		if !guest && p.ListPrice > 0 {
			line += " | Liste Fiyati: " + formatAmount(p.ListPrice) + " TRY"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (o *Orchestrator) history(ctx context.Context, conversationID uuid.UUID) []conversation.HistoryEntry {
	entries, err := o.store.History(ctx, conversationID, 10)
	if err != nil {
		o.logger.Warn("history load failed", "conversation_id", conversationID, "error", err)
		return nil
	}
	return entries
}

func (o *Orchestrator) saveReply(ctx context.Context, conv *conversation.Conversation, text string, in intent.Intent, actions []Action) (*Reply, error) {
	if _, err := o.store.SaveMessage(ctx, conversation.Message{
		ConversationID: conv.ID,
		Role:           "assistant",
		Content:        text,
		Intent:         string(in),
		SenderType:     "ai",
	}); err != nil {
		return nil, err
	}
	return &Reply{
		ConversationID: conv.ID.String(),
		Text:           text,
		Intent:         in,
		Actions:        actions,
	}, nil
}

// intFromData reads an int that may have round-tripped through JSON.
func intFromData(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
