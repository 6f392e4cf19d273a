// Package odoo talks to the Odoo ERP over its JSON-RPC endpoint: partner
// lookup and maintenance, sale orders and quotations, helpdesk tickets,
// dealer directory queries and CRM leads. A thin redis cache fronts the
// read paths that tolerate staleness.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

const defaultTimeout = 20 * time.Second

// Config holds the ERP connection settings. API keys authenticate with the
// reserved "__api_key__" login, matching Odoo 17/18 behaviour.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
	APIKey   string
	Timeout  time.Duration
}

// Client is a JSON-RPC client for a single Odoo database. The authenticated
// uid is cached after the first call; a Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger

	requestID atomic.Int64

	mu  sync.Mutex
	uid int
}

// NewClient creates an ERP client.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) text() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

func (c *Client) credential() string {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey
	}
	return c.cfg.Password
}

func (c *Client) login() string {
	if c.cfg.APIKey != "" {
		return "__api_key__"
	}
	return c.cfg.Username
}

func (c *Client) rpc(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
	})
	if err != nil {
		return nil, fmt.Errorf("odoo: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.URL, "/")+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("odoo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odoo: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("odoo: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, fmt.Errorf("odoo: status %d: %s", resp.StatusCode, msg)
	}

	var out rpcResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("odoo: unmarshal response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("odoo: rpc error: %s", out.Error.text())
	}
	return out.Result, nil
}

// authenticate resolves and caches the uid for subsequent object calls.
func (c *Client) authenticate(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	raw, err := c.rpc(ctx, "common", "authenticate", []any{
		c.cfg.Database, c.login(), c.credential(), map[string]any{},
	})
	if err != nil {
		return 0, err
	}

	var uid int
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		return 0, fmt.Errorf("odoo: authentication failed for %s@%s", c.login(), c.cfg.Database)
	}
	c.uid = uid
	c.logger.Info("odoo authenticated", "uid", uid, "database", c.cfg.Database)
	return uid, nil
}

// Call invokes model.method through execute_kw and decodes the result into
// out (pass nil to discard it).
func (c *Client) Call(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	raw, err := c.rpc(ctx, "object", "execute_kw", []any{
		c.cfg.Database, uid, c.credential(), model, method, args, kwargs,
	})
	if err != nil {
		return fmt.Errorf("odoo: %s.%s: %w", model, method, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("odoo: %s.%s: decode result: %w", model, method, err)
	}
	return nil
}
