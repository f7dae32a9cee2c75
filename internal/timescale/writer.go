package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bts-wall-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// WallSnapshot is one market's wall state at the end of an active tick.
type WallSnapshot struct {
	Time            time.Time
	Tick            int64
	Market          string
	SettlementPrice float64
	BasePrice       float64
	BuyPrice        float64
	SellPrice       float64
	OpenOrders      int
	Replaced        bool
}

// DebtSnapshot is one synthetic asset's margin position at the end of an
// active tick.
type DebtSnapshot struct {
	Time       time.Time
	Tick       int64
	Symbol     string
	Debt       float64
	Collateral float64
	Backing    float64
	Desired    float64
}

type Writer struct {
	db       *sql.DB
	log      *zap.Logger
	schema   string
	walls    chan WallSnapshot
	debts    chan DebtSnapshot
	started  atomic.Bool
	dropWall atomic.Uint64
	dropDebt atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		walls:  make(chan WallSnapshot, queueSize),
		debts:  make(chan DebtSnapshot, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueWall(snapshot WallSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.walls <- snapshot:
		return
	default:
		if w.dropWall.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale wall queue full")
		}
	}
}

func (w *Writer) EnqueueDebt(snapshot DebtSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.debts <- snapshot:
		return
	default:
		if w.dropDebt.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale debt queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-w.walls:
			w.writeWall(ctx, snap)
		case snap := <-w.debts:
			w.writeDebt(ctx, snap)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		tick BIGINT NOT NULL,
		market TEXT NOT NULL,
		settlement_price DOUBLE PRECISION NOT NULL,
		base_price DOUBLE PRECISION NOT NULL,
		buy_price DOUBLE PRECISION NOT NULL,
		sell_price DOUBLE PRECISION NOT NULL,
		open_orders INTEGER NOT NULL,
		replaced BOOLEAN NOT NULL
	)`, w.table("wall_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		tick BIGINT NOT NULL,
		symbol TEXT NOT NULL,
		debt DOUBLE PRECISION NOT NULL,
		collateral DOUBLE PRECISION NOT NULL,
		backing DOUBLE PRECISION NOT NULL,
		desired DOUBLE PRECISION NOT NULL
	)`, w.table("debt_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("wall_snapshots"))); err != nil && w.log != nil {
		w.log.Warn("timescale wall_snapshots hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("debt_snapshots"))); err != nil && w.log != nil {
		w.log.Warn("timescale debt_snapshots hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeWall(ctx context.Context, snap WallSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, tick, market, settlement_price, base_price, buy_price, sell_price, open_orders, replaced
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9
	)`, w.table("wall_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.Tick,
		snap.Market,
		snap.SettlementPrice,
		snap.BasePrice,
		snap.BuyPrice,
		snap.SellPrice,
		snap.OpenOrders,
		snap.Replaced,
	); err != nil && w.log != nil {
		w.log.Warn("timescale wall insert failed", zap.Error(err))
	}
}

func (w *Writer) writeDebt(ctx context.Context, snap DebtSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, tick, symbol, debt, collateral, backing, desired
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	)`, w.table("debt_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.Tick,
		snap.Symbol,
		snap.Debt,
		snap.Collateral,
		snap.Backing,
		snap.Desired,
	); err != nil && w.log != nil {
		w.log.Warn("timescale debt insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
