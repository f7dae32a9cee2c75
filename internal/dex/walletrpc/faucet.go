package walletrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RegisterAccount asks a faucet to create and fund the registration of a new
// account owned by publicKey. The faucet answers 201 on success.
func RegisterAccount(ctx context.Context, client *http.Client, faucetURL, account, publicKey, referrer string) error {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	payload := map[string]any{
		"account": map[string]string{
			"name":       account,
			"owner_key":  publicKey,
			"active_key": publicKey,
			"memo_key":   publicKey,
			"refcode":    referrer,
			"referrer":   referrer,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := strings.TrimRight(faucetURL, "/") + "/api/v1/accounts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bts-wall-bot/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("faucet registration failed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
