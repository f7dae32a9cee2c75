// Package walletrpc implements the dex boundary against a wallet daemon
// speaking JSON-RPC over a websocket. The wallet owns keys and signing; this
// client only issues wallet-level calls and parses their results.
package walletrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bts-wall-bot/internal/config"
	"bts-wall-bot/internal/dex"
	"bts-wall-bot/internal/strategy"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Client struct {
	url            string
	timeout        time.Duration
	reconnectDelay time.Duration
	account        string
	markets        []strategy.Market
	log            *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   uint64
	nextDial time.Time

	assetMu        sync.Mutex
	assetsBySymbol map[string]*assetMeta
	assetsByID     map[string]*assetMeta
}

type assetMeta struct {
	ID             string
	Symbol         string
	Precision      int
	BitassetDataID string
	BackingAsset   string
}

func New(cfg config.RPCConfig, markets []strategy.Market, log *zap.Logger) *Client {
	return &Client{
		url:            cfg.URL,
		timeout:        cfg.Timeout,
		reconnectDelay: cfg.ReconnectDelay,
		account:        cfg.Account,
		markets:        markets,
		log:            log,
		assetsBySymbol: make(map[string]*assetMeta),
		assetsByID:     make(map[string]*assetMeta),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	// throttle redials after a transport failure
	if wait := time.Until(c.nextDial); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial wallet %s: %w", c.url, err)
	}
	conn.SetReadLimit(1 << 22)
	c.conn = conn
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "shutdown")
	c.conn = nil
	return err
}

type rpcRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}

// call issues one request and waits for its response. Calls are serialized;
// the wallet processes them in order anyway and the tick model never needs
// concurrent requests. A transport failure drops the connection so the next
// call redials.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	c.nextID++
	req := rpcRequest{ID: c.nextID, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.conn.Write(callCtx, websocket.MessageText, payload); err != nil {
		c.resetLocked()
		return fmt.Errorf("%s: %w", method, err)
	}
	for {
		_, data, err := c.conn.Read(callCtx)
		if err != nil {
			c.resetLocked()
			return fmt.Errorf("%s: %w", method, err)
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.ID != req.ID {
			// stale response from an earlier timed-out call
			continue
		}
		if resp.Error != nil {
			if strings.Contains(strings.ToLower(resp.Error.Message), "insufficient") {
				return fmt.Errorf("%s: %s: %w", method, resp.Error.Message, dex.ErrInsufficientFunds)
			}
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	}
}

func (c *Client) resetLocked() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
	c.nextDial = time.Now().Add(c.reconnectDelay)
}

// Unlock unlocks the wallet if it is locked. The password never leaves this
// call.
func (c *Client) Unlock(ctx context.Context, password string) error {
	var locked bool
	if err := c.call(ctx, "is_locked", nil, &locked); err != nil {
		return err
	}
	if !locked {
		return nil
	}
	if password == "" {
		return errors.New("wallet is locked and no password is set")
	}
	return c.call(ctx, "unlock", []any{password}, nil)
}

// ListMyAccounts returns the names of accounts whose keys the wallet holds.
func (c *Client) ListMyAccounts(ctx context.Context) ([]string, error) {
	var accounts []struct {
		Name string `json:"name"`
	}
	if err := c.call(ctx, "list_my_accounts", nil, &accounts); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Name)
	}
	return names, nil
}

// BrainKey is a freshly generated key triple from the wallet.
type BrainKey struct {
	BrainPrivKey string `json:"brain_priv_key"`
	WifPrivKey   string `json:"wif_priv_key"`
	PubKey       string `json:"pub_key"`
}

func (c *Client) SuggestBrainKey(ctx context.Context) (BrainKey, error) {
	var key BrainKey
	err := c.call(ctx, "suggest_brain_key", nil, &key)
	return key, err
}

func (c *Client) ImportKey(ctx context.Context, account, wif string) error {
	var ok bool
	if err := c.call(ctx, "import_key", []any{account, wif}, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("wallet rejected key import for account %s", account)
	}
	return nil
}

func (c *Client) Account() string {
	return c.account
}
