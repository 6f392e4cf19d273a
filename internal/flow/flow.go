// Package flow implements the multi-step conversation flow engine: a
// redis-backed manager that owns flow lifecycle and cancel/restart
// interception, and one handler per flow kind.
package flow

import (
	"context"
	"encoding/json"
	"regexp"
)

// Type identifies a flow variant.
type Type string

const (
	TypeVerify          Type = "verify"
	TypeOrderCreate     Type = "order_create"
	TypeOrderCancel     Type = "order_cancel"
	TypeTicketCreate    Type = "ticket_create"
	TypeComplaint       Type = "complaint"
	TypeFindDealer      Type = "find_dealer"
	TypeAddressUpdate   Type = "address_update"
	TypeQuotationCreate Type = "quotation_create"
)

// Flow is the persisted state of one active multi-step interaction.
// At most one flow is active per conversation at any time.
type Flow struct {
	Type           Type           `json:"flow_type"`
	Step           string         `json:"step"`
	Data           map[string]any `json:"data"`
	ConversationID string         `json:"-"`
}

// StepResult is what a single step returns to the manager.
type StepResult struct {
	Message   string
	Completed bool
	Cancelled bool
	Data      map[string]any
}

// Handler processes the steps of one flow variant. ProcessStep dispatches on
// flow.Step, mutates flow in place, and returns the reply for this turn.
// Returning an error cancels the flow with a generic message; expected
// business failures should instead return a Cancelled result with
// user-facing text.
type Handler interface {
	Type() Type
	InitialStep() string
	ProcessStep(ctx context.Context, flow *Flow, userMessage, visitorID string) (StepResult, error)
}

// String returns the data value under key if it is a string.
func (f *Flow) String(key string) string {
	s, _ := f.Data[key].(string)
	return s
}

// Int returns the data value under key as an int. JSON round trips store
// numbers as float64, so both forms are accepted.
func (f *Flow) Int(key string) int {
	switch v := f.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the data value under key as a float64.
func (f *Flow) Float(key string) float64 {
	switch v := f.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Decode re-decodes a structured data value (slices, nested objects) into
// dst. Values written by a handler survive the redis round trip as generic
// JSON types; this recovers the concrete shape.
func Decode(v any, dst any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	codeRe  = regexp.MustCompile(`\d{6}`)
	phoneRe = regexp.MustCompile(`^[\d\s\-\+\(\)]{7,20}$`)
)

func isExactEmail(s string) bool {
	m := emailRe.FindString(s)
	return m == s && m != ""
}

// affirmative and negative are the fixed confirmation vocabulary shared by
// every confirm step.
func affirmative(text string) bool {
	switch text {
	case "evet", "yes", "e", "ok", "tamam", "onay", "onayla":
		return true
	}
	return false
}

func negative(text string) bool {
	switch text {
	case "hayir", "hayır", "no", "h":
		return true
	}
	return false
}

const (
	msgStepBroken      = "Bir hata olustu. Lutfen tekrar deneyin."
	msgSessionExpired  = "Oturum suresi dolmus. Lutfen tekrar giris yapin."
	msgConfirmYesOrNo  = "Lutfen **evet** veya **hayir** yazin."
	msgGenericFailure  = "Islem sirasinda bir hata olustu. Lutfen daha sonra tekrar deneyin."
	msgFlowCancelled   = "Islem iptal edildi. Size baska nasil yardimci olabilirim?"
	msgFlowRestarted   = "Islem bastan basladi."
	msgHandlerMissing  = "Bir hata olustu. Islem iptal edildi."
)

// brokenStep is the fallback for an unknown step name: the stored state is
// unusable, cancel so the user is not stuck.
func brokenStep() StepResult {
	return StepResult{Message: msgStepBroken, Cancelled: true}
}
