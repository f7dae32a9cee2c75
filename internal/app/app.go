package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"bts-wall-bot/internal/alerts"
	"bts-wall-bot/internal/config"
	"bts-wall-bot/internal/dex"
	"bts-wall-bot/internal/dex/walletrpc"
	"bts-wall-bot/internal/exec"
	"bts-wall-bot/internal/metrics"
	"bts-wall-bot/internal/state"
	"bts-wall-bot/internal/state/sqlite"
	"bts-wall-bot/internal/strategy"
	"bts-wall-bot/internal/timescale"

	"go.uber.org/zap"
)

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	settings strategy.Settings
	store    *sqlite.Store
	wallet   *walletrpc.Client
	dex      dex.Client
	executor *exec.Executor
	metrics  *metrics.Metrics
	prom     *metrics.Prometheus
	alerts   *alerts.Telegram
	ts       *timescale.Writer
	sched    *strategy.Scheduler
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	settings, err := strategy.NewSettings(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	journal := state.NewJournal(store)
	wallet := walletrpc.New(cfg.RPC, settings.Markets, log)
	executor := exec.New(wallet, journal, log)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}
	ts, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &App{
		cfg:      cfg,
		log:      log,
		settings: settings,
		store:    store,
		wallet:   wallet,
		dex:      wallet,
		executor: executor,
		metrics:  m,
		prom:     prom,
		alerts:   alerts.NewTelegram(cfg.Telegram, log),
		ts:       ts,
		sched:    strategy.NewScheduler(settings.SkipBlocks),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.wallet.Close()
	if a.ts != nil {
		defer a.ts.Close()
	}

	if err := a.wallet.Connect(ctx); err != nil {
		return err
	}
	if password := os.Getenv("WALLET_PASSWORD"); password != "" {
		if err := a.wallet.Unlock(ctx, password); err != nil {
			return err
		}
	} else {
		a.log.Warn("WALLET_PASSWORD not set, assuming the wallet is already unlocked")
	}

	registered, err := a.ensureAccount(ctx)
	if err != nil {
		return err
	}
	if !registered {
		// A fresh account has no funds to trade with yet. Stop here so the
		// operator can fund it and restart.
		return nil
	}

	if err := strategy.ValidateMarkets(ctx, a.dex, a.settings); err != nil {
		return err
	}

	if a.prom != nil {
		a.serveMetrics(ctx)
	}
	a.ts.Start(ctx)

	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap.Debt) == 0 {
		if err := a.bootstrapDebt(ctx, snap); err != nil {
			return err
		}
	}

	// The strategy runs once immediately so a restart repairs the walls
	// without waiting out a full skip window.
	tick, _ := a.sched.Next()
	if err := a.activeTick(ctx, tick); err != nil {
		a.log.Warn("bootstrap tick failed", zap.Error(err))
	}

	ticker := time.NewTicker(a.cfg.Strategy.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick, active := a.sched.Next()
			if !active {
				continue
			}
			if err := a.activeTick(ctx, tick); err != nil {
				a.log.Warn("tick failed", zap.Int64("tick", tick), zap.Error(err))
			}
		}
	}
}

// ensureAccount checks that the configured account lives in the wallet. When
// it does not, a fresh keypair is registered through the faucet and imported;
// the returned bool reports whether the account already existed.
func (a *App) ensureAccount(ctx context.Context) (bool, error) {
	accounts, err := a.wallet.ListMyAccounts(ctx)
	if err != nil {
		return false, err
	}
	account := a.wallet.Account()
	for _, name := range accounts {
		if name == account {
			return true, nil
		}
	}
	if a.cfg.Faucet.URL == "" {
		return false, fmt.Errorf("account %s is not in the wallet and no faucet is configured", account)
	}
	key, err := a.wallet.SuggestBrainKey(ctx)
	if err != nil {
		return false, err
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if err := walletrpc.RegisterAccount(ctx, httpClient, a.cfg.Faucet.URL, account, key.PubKey, a.cfg.Faucet.Referrer); err != nil {
		return false, err
	}
	if err := a.wallet.ImportKey(ctx, account, key.WifPrivKey); err != nil {
		return false, err
	}
	a.log.Info("registered account through faucet, write down the brain key and fund the account before restarting",
		zap.String("account", account),
		zap.String("brain_key", key.BrainPrivKey),
	)
	return false, nil
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.log.Info("metrics server listening", zap.String("address", a.cfg.Metrics.Address), zap.String("path", a.cfg.Metrics.Path))
}

func (a *App) snapshot(ctx context.Context) (strategy.Snapshot, error) {
	ticker, err := a.dex.Ticker(ctx)
	if err != nil {
		return strategy.Snapshot{}, err
	}
	orders, err := a.dex.OpenOrders(ctx)
	if err != nil {
		return strategy.Snapshot{}, err
	}
	debt, err := a.dex.DebtPositions(ctx)
	if err != nil {
		return strategy.Snapshot{}, err
	}
	balances, err := a.dex.Balances(ctx)
	if err != nil {
		return strategy.Snapshot{}, err
	}
	return strategy.Snapshot{
		Ticker:     ticker,
		OpenOrders: orders,
		Debt:       debt,
		Balances:   balances,
	}, nil
}

// bootstrapDebt opens the initial margin positions when the account has no
// debt at all.
func (a *App) bootstrapDebt(ctx context.Context, snap strategy.Snapshot) error {
	intents, err := strategy.PlanDebt(a.settings, snap)
	if err != nil {
		return err
	}
	for _, intent := range intents {
		if intent.Amount <= 0 {
			continue
		}
		if err := a.executor.Borrow(ctx, intent.Symbol, intent.Amount, a.settings.Ratio); err != nil {
			return err
		}
		a.metrics.DebtBorrows.Inc()
		a.log.Info("borrowed synthetic asset", zap.String("symbol", intent.Symbol), zap.Float64("amount", intent.Amount))
	}
	return nil
}

func (a *App) activeTick(ctx context.Context, tick int64) error {
	a.metrics.TicksActive.Inc()
	snap, err := a.snapshot(ctx)
	if err != nil {
		return err
	}

	borrowed := false
	for _, m := range a.settings.Markets {
		plan, err := strategy.PlanMarket(a.settings, m, snap)
		if err != nil {
			a.log.Warn("market plan failed", zap.String("market", m.String()), zap.Error(err))
			continue
		}
		if plan.Borrow != nil {
			if plan.Borrow.Amount > 0 {
				if err := a.executor.Borrow(ctx, plan.Borrow.Symbol, plan.Borrow.Amount, a.settings.Ratio); err != nil {
					a.log.Warn("borrow failed", zap.String("symbol", plan.Borrow.Symbol), zap.Error(err))
					continue
				}
				a.metrics.DebtBorrows.Inc()
				borrowed = true
			}
			continue
		}
		a.applyPlan(ctx, m, plan, snap, tick)
	}

	if !borrowed {
		a.rebalanceDebt(ctx, snap)
	}
	a.recordDebt(snap, tick)
	return nil
}

func (a *App) applyPlan(ctx context.Context, m strategy.Market, plan strategy.MarketPlan, snap strategy.Snapshot, tick int64) {
	if plan.CancelAll {
		open := snap.OpenOrders[m.String()]
		for _, res := range a.executor.CancelAll(ctx, m, open) {
			if res.Err != nil {
				a.metrics.CancelsFailed.Inc()
				a.log.Warn("cancel failed", zap.String("order_id", res.OrderID), zap.Error(res.Err))
				continue
			}
			a.metrics.OrdersCancelled.Inc()
		}
		a.metrics.WallsReplaced.Inc()
		a.alerts.Notify(ctx, "Replacing wall in %s", m.String())
	}
	for _, intent := range plan.Orders {
		orderID, err := a.executor.PlaceOrder(ctx, m, intent, a.settings.Expiration)
		if err != nil {
			a.metrics.OrdersFailed.Inc()
			a.log.Warn("order placement failed",
				zap.String("market", m.String()),
				zap.String("side", string(intent.Side)),
				zap.Error(err),
			)
			continue
		}
		a.metrics.OrdersPlaced.Inc()
		a.log.Info("placed wall order",
			zap.String("market", m.String()),
			zap.String("side", string(intent.Side)),
			zap.Float64("price", intent.Price),
			zap.Float64("amount", intent.Amount),
			zap.String("order_id", orderID),
		)
	}
	a.recordWall(m, plan, snap, tick)
}

// rebalanceDebt nudges existing positions toward the desired allocation. It
// never runs on a tick that opened a new position, so the next snapshot sees
// the full debt book first.
func (a *App) rebalanceDebt(ctx context.Context, snap strategy.Snapshot) {
	intents, err := strategy.PlanDebt(a.settings, snap)
	if err != nil {
		var inconsistent *strategy.InconsistentDebtStateError
		if errors.As(err, &inconsistent) {
			a.metrics.DebtInconsistent.Inc()
			a.log.Warn("debt book is inconsistent, no adjustments issued", zap.Error(err))
			a.alerts.Notify(ctx, "Debt book inconsistent: %v", err)
			return
		}
		a.log.Warn("debt plan failed", zap.Error(err))
		return
	}
	for _, intent := range intents {
		if !intent.Adjust {
			if intent.Amount <= 0 {
				continue
			}
			if err := a.executor.Borrow(ctx, intent.Symbol, intent.Amount, a.settings.Ratio); err != nil {
				a.log.Warn("borrow failed", zap.String("symbol", intent.Symbol), zap.Error(err))
				continue
			}
			a.metrics.DebtBorrows.Inc()
			continue
		}
		if err := a.executor.AdjustDebt(ctx, intent.Symbol, intent.Amount, a.settings.Ratio); err != nil {
			a.log.Warn("debt adjustment failed", zap.String("symbol", intent.Symbol), zap.Error(err))
			continue
		}
		a.metrics.DebtAdjustments.Inc()
		a.log.Info("adjusted debt position", zap.String("symbol", intent.Symbol), zap.Float64("delta", intent.Amount))
	}
}

func (a *App) recordWall(m strategy.Market, plan strategy.MarketPlan, snap strategy.Snapshot, tick int64) {
	if a.ts == nil {
		return
	}
	base, err := strategy.BasePrice(a.settings, m, snap.Ticker)
	if err != nil {
		return
	}
	buy, sell := strategy.WallPrices(base, a.settings.SpreadPct)
	a.ts.EnqueueWall(timescale.WallSnapshot{
		Time:            time.Now().UTC(),
		Tick:            tick,
		Market:          m.String(),
		SettlementPrice: snap.Ticker[m.String()].SettlementPrice,
		BasePrice:       base,
		BuyPrice:        buy,
		SellPrice:       sell,
		OpenOrders:      len(snap.OpenOrders[m.String()]),
		Replaced:        plan.CancelAll,
	})
}

func (a *App) recordDebt(snap strategy.Snapshot, tick int64) {
	if a.ts == nil {
		return
	}
	desired, err := strategy.DebtAllocation(a.settings, snap)
	if err != nil {
		return
	}
	backing := strategy.TotalBacking(a.settings, snap)
	now := time.Now().UTC()
	for _, m := range a.settings.Markets {
		pos := snap.Debt[m.Quote]
		a.ts.EnqueueDebt(timescale.DebtSnapshot{
			Time:       now,
			Tick:       tick,
			Symbol:     m.Quote,
			Debt:       pos.Debt,
			Collateral: pos.Collateral,
			Backing:    backing,
			Desired:    desired[m.Quote],
		})
	}
}
