// Package dex defines the boundary the strategy engine trades through. The
// engine consumes snapshots and emits commands; everything behind this
// interface is transport.
package dex

import (
	"context"
	"errors"
	"time"

	"bts-wall-bot/internal/strategy"
)

// ErrInsufficientFunds marks order placements rejected for lack of balance.
// Not worth retrying until the next tick refreshes balances.
var ErrInsufficientFunds = errors.New("insufficient funds")

type Client interface {
	// Snapshot queries, side-effect free, called once per active tick.
	Ticker(ctx context.Context) (strategy.Ticker, error)
	OpenOrders(ctx context.Context) (map[string][]strategy.OpenOrder, error)
	DebtPositions(ctx context.Context) (map[string]strategy.DebtPosition, error)
	Balances(ctx context.Context) (strategy.Balances, error)

	// Commands. Amounts are in quote-asset units for both sides.
	Sell(ctx context.Context, market strategy.Market, price, amount float64, expiration time.Duration) (string, error)
	Buy(ctx context.Context, market strategy.Market, price, amount float64, expiration time.Duration) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	Borrow(ctx context.Context, amount float64, symbol string, ratio float64) error
	AdjustDebt(ctx context.Context, delta float64, symbol string, ratio float64) error

	// Asset resolves chain metadata, used once at startup for market
	// validation.
	Asset(ctx context.Context, symbol string) (strategy.AssetInfo, error)
}
