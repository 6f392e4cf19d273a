// Package main runs end-to-end scenarios against a live chat API.
//
// Scenarios cover the widget conversation surface:
//   - Greeting fast path (Turkish and English)
//   - Catalog link delivery
//   - Guest price gating with suggested actions
//   - Identity verification entry and email validation
//   - Flow cancel and restart words
//   - Complaint flow entry
//   - Out-of-scope deflection
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go            # runs all
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go greeting   # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

var apiBase string

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// visitor is one widget session; each scenario gets a fresh one so flows
// and sessions never bleed between scenarios.
type visitor struct {
	id             string
	conversationID string
}

func newVisitor() *visitor {
	return &visitor{id: fmt.Sprintf("e2e-%d", time.Now().UnixNano())}
}

type chatReply struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Intent         string `json:"intent"`
	Actions        []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"actions"`
}

func (v *visitor) say(text string) (*chatReply, error) {
	payload := map[string]string{
		"visitor_id": v.id,
		"message":    text,
	}
	if v.conversationID != "" {
		payload["conversation_id"] = v.conversationID
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(apiBase+"/api/chat/message", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat returned status %d", resp.StatusCode)
	}
	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, err
	}
	v.conversationID = reply.ConversationID
	return &reply, nil
}

func mustSay(t *T, v *visitor, text string) *chatReply {
	reply, err := v.say(text)
	if err != nil {
		t.fatalf("send %q: %v", text, err)
		return &chatReply{}
	}
	return reply
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioGreeting(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "merhaba")
	t.check("reply not empty", reply.Reply != "")
	t.check("conversation id assigned", reply.ConversationID != "")
	t.check("classified general info", reply.Intent == "GENERAL_INFO")
}

func scenarioEnglishGreeting(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "hello!")
	t.check("reply not empty", reply.Reply != "")
	t.check("english response", strings.Contains(reply.Reply, "help") || strings.Contains(reply.Reply, "Hello") || strings.Contains(reply.Reply, "welcome"))
}

func scenarioCatalog(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "katalog")
	t.check("classified catalog request", reply.Intent == "CATALOG_REQUEST")
	t.check("carries a link or fallback", strings.Contains(reply.Reply, "http") || strings.Contains(reply.Reply, "katalog"))
}

func scenarioGuestPriceGate(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "fiyat nedir")
	t.check("classified price inquiry", reply.Intent == "PRICE_INQUIRY")
	t.check("suggests next steps", len(reply.Actions) == 2)
}

func scenarioVerificationEmail(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "siparişlerim")
	t.check("asks for identity", strings.Contains(reply.Reply, "e-posta"))

	reply = mustSay(t, v, "this-is-not-an-email")
	t.check("rejects invalid email", strings.Contains(reply.Reply, "Gecerli bir e-posta"))
}

func scenarioCancelWord(t *T) {
	v := newVisitor()
	mustSay(t, v, "giriş yap")
	reply := mustSay(t, v, "iptal")
	t.check("flow cancelled", strings.Contains(reply.Reply, "iptal"))

	// A fresh message must classify normally again.
	reply = mustSay(t, v, "merhaba")
	t.check("back to normal handling", reply.Reply != "")
}

func scenarioRestartWord(t *T) {
	v := newVisitor()
	mustSay(t, v, "giriş yap")
	reply := mustSay(t, v, "baştan")
	t.check("flow restarted", strings.Contains(reply.Reply, "bastan") || strings.Contains(reply.Reply, "yeniden") || reply.Reply != "")
}

func scenarioComplaint(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "şikayet etmek istiyorum")
	t.check("classified complaint", reply.Intent == "COMPLAINT")
	t.check("flow opened", strings.Contains(reply.Reply, "sikayet") || strings.Contains(reply.Reply, "ad"))
}

func scenarioOutOfScope(t *T) {
	v := newVisitor()
	reply := mustSay(t, v, "bugün hava çok güzel")
	t.check("reply not empty", reply.Reply != "")
	t.check("stays in scope", reply.Intent == "GENERAL_INFO" || reply.Intent == "OUT_OF_SCOPE")
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}
	apiBase = strings.TrimRight(apiBase, "/")

	scenarios := []scenario{
		{"greeting", scenarioGreeting},
		{"english-greeting", scenarioEnglishGreeting},
		{"catalog", scenarioCatalog},
		{"guest-price-gate", scenarioGuestPriceGate},
		{"verification-email", scenarioVerificationEmail},
		{"cancel-word", scenarioCancelWord},
		{"restart-word", scenarioRestartWord},
		{"complaint", scenarioComplaint},
		{"out-of-scope", scenarioOutOfScope},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}
		fmt.Printf("SCENARIO: %s\n", s.Name)
		t := &T{name: s.Name}
		s.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\nTOTAL: %d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
