package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bts-wall-bot/internal/dex"
	"bts-wall-bot/internal/state"
	"bts-wall-bot/internal/strategy"

	"go.uber.org/zap"
)

// Trader is the slice of the dex boundary the executor drives.
type Trader interface {
	Sell(ctx context.Context, market strategy.Market, price, amount float64, expiration time.Duration) (string, error)
	Buy(ctx context.Context, market strategy.Market, price, amount float64, expiration time.Duration) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	Borrow(ctx context.Context, amount float64, symbol string, ratio float64) error
	AdjustDebt(ctx context.Context, delta float64, symbol string, ratio float64) error
}

// CancelResult is the outcome of one cancellation in a best-effort batch.
type CancelResult struct {
	OrderID string
	Err     error
}

type Executor struct {
	trader  Trader
	journal *state.Journal
	log     *zap.Logger

	maxAttempts int
	baseBackoff time.Duration
}

func New(trader Trader, journal *state.Journal, log *zap.Logger) *Executor {
	return &Executor{
		trader:      trader,
		journal:     journal,
		log:         log,
		maxAttempts: 5,
		baseBackoff: 200 * time.Millisecond,
	}
}

// PlaceOrder routes one wall order to the venue, retrying transient
// transport failures. An insufficient-funds rejection is final until the
// next tick refreshes balances.
func (e *Executor) PlaceOrder(ctx context.Context, m strategy.Market, intent strategy.OrderIntent, expiration time.Duration) (string, error) {
	var orderID string
	err := e.retry(ctx, func() error {
		var err error
		if intent.Side == strategy.SideSell {
			orderID, err = e.trader.Sell(ctx, m, intent.Price, intent.Amount, expiration)
		} else {
			orderID, err = e.trader.Buy(ctx, m, intent.Price, intent.Amount, expiration)
		}
		return err
	})
	e.record(ctx, state.CommandRecord{
		Kind:    "place_" + string(intent.Side),
		Market:  m.String(),
		Price:   intent.Price,
		Amount:  intent.Amount,
		OrderID: orderID,
		Error:   errString(err),
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// CancelAll tears down every open order in a market. Individual failures do
// not stop the batch; the caller gets one result per order.
func (e *Executor) CancelAll(ctx context.Context, m strategy.Market, orders []strategy.OpenOrder) []CancelResult {
	results := make([]CancelResult, 0, len(orders))
	for _, o := range orders {
		err := e.retry(ctx, func() error {
			return e.trader.CancelOrder(ctx, o.ID)
		})
		e.record(ctx, state.CommandRecord{
			Kind:    "cancel",
			Market:  m.String(),
			OrderID: o.ID,
			Error:   errString(err),
		})
		results = append(results, CancelResult{OrderID: o.ID, Err: err})
	}
	return results
}

func (e *Executor) Borrow(ctx context.Context, symbol string, amount, ratio float64) error {
	err := e.retry(ctx, func() error {
		return e.trader.Borrow(ctx, amount, symbol, ratio)
	})
	e.record(ctx, state.CommandRecord{
		Kind:   "borrow",
		Symbol: symbol,
		Amount: amount,
		Error:  errString(err),
	})
	return err
}

func (e *Executor) AdjustDebt(ctx context.Context, symbol string, delta, ratio float64) error {
	err := e.retry(ctx, func() error {
		return e.trader.AdjustDebt(ctx, delta, symbol, ratio)
	})
	e.record(ctx, state.CommandRecord{
		Kind:   "adjust_debt",
		Symbol: symbol,
		Amount: delta,
		Error:  errString(err),
	})
	return err
}

func (e *Executor) retry(ctx context.Context, fn func() error) error {
	backoff := e.baseBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, dex.ErrInsufficientFunds) {
			return err
		}
		if attempt == e.maxAttempts {
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (e *Executor) record(ctx context.Context, rec state.CommandRecord) {
	if err := e.journal.Append(ctx, rec); err != nil && e.log != nil {
		e.log.Warn("journal append failed", zap.Error(err))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
