package walletrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bts-wall-bot/internal/strategy"
)

// broadcastResult is the transaction the wallet signed and broadcast. The
// created order id shows up in operation_results when the node returns the
// processed transaction.
type broadcastResult struct {
	ID               string            `json:"id"`
	OperationResults []json.RawMessage `json:"operation_results"`
}

func (r broadcastResult) createdObjectID() string {
	for _, raw := range r.OperationResults {
		// operation results are [type, value] variants; type 1 carries an
		// object id
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			continue
		}
		var id string
		if err := json.Unmarshal(pair[1], &id); err == nil && id != "" {
			return id
		}
	}
	return r.ID
}

// Sell places an ask: amount of the quote asset offered at price base per
// quote.
func (c *Client) Sell(ctx context.Context, m strategy.Market, price, amount float64, expiration time.Duration) (string, error) {
	quote, err := c.assetMeta(ctx, m.Quote)
	if err != nil {
		return "", err
	}
	base, err := c.assetMeta(ctx, m.Base)
	if err != nil {
		return "", err
	}
	var result broadcastResult
	err = c.call(ctx, "sell_asset", []any{
		c.account,
		formatAmount(amount, quote.Precision), m.Quote,
		formatAmount(amount*price, base.Precision), m.Base,
		int(expiration.Seconds()), false, true,
	}, &result)
	if err != nil {
		return "", fmt.Errorf("sell %s: %w", m, err)
	}
	return result.createdObjectID(), nil
}

// Buy places a bid: base-asset funds offered for amount of the quote asset
// at price base per quote. Wallet-side there is only sell_asset; a buy sells
// the base asset.
func (c *Client) Buy(ctx context.Context, m strategy.Market, price, amount float64, expiration time.Duration) (string, error) {
	quote, err := c.assetMeta(ctx, m.Quote)
	if err != nil {
		return "", err
	}
	base, err := c.assetMeta(ctx, m.Base)
	if err != nil {
		return "", err
	}
	var result broadcastResult
	err = c.call(ctx, "sell_asset", []any{
		c.account,
		formatAmount(amount*price, base.Precision), m.Base,
		formatAmount(amount, quote.Precision), m.Quote,
		int(expiration.Seconds()), false, true,
	}, &result)
	if err != nil {
		return "", fmt.Errorf("buy %s: %w", m, err)
	}
	return result.createdObjectID(), nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.call(ctx, "cancel_order", []any{orderID, true}, nil); err != nil {
		return fmt.Errorf("cancel %s: %w", orderID, err)
	}
	return nil
}

// Borrow opens a debt position: amount of symbol against collateral sized
// from the feed price and the configured collateral ratio.
func (c *Client) Borrow(ctx context.Context, amount float64, symbol string, ratio float64) error {
	return c.adjustPosition(ctx, amount, symbol, ratio)
}

// AdjustDebt changes an existing position by delta; the wallet treats
// borrow_asset amounts as deltas against an open position. Collateral moves
// proportionally at the configured ratio.
func (c *Client) AdjustDebt(ctx context.Context, delta float64, symbol string, ratio float64) error {
	return c.adjustPosition(ctx, delta, symbol, ratio)
}

func (c *Client) adjustPosition(ctx context.Context, amount float64, symbol string, ratio float64) error {
	info, err := c.Asset(ctx, symbol)
	if err != nil {
		return err
	}
	if !info.Synthetic {
		return fmt.Errorf("%s is not a synthetic asset and cannot be borrowed", symbol)
	}
	backing, err := c.assetMeta(ctx, info.BackingAsset)
	if err != nil {
		return err
	}
	price, err := c.settlementPrice(ctx, strategy.Market{Quote: symbol, Base: info.BackingAsset})
	if err != nil {
		return err
	}
	if price <= 0 {
		return &strategy.MissingMarketDataError{Market: symbol + ":" + info.BackingAsset}
	}
	collateral := amount * price * ratio
	if err := c.call(ctx, "borrow_asset", []any{
		c.account,
		formatAmount(amount, info.Precision), symbol,
		formatAmount(collateral, backing.Precision), true,
	}, nil); err != nil {
		return fmt.Errorf("borrow %s: %w", symbol, err)
	}
	return nil
}
