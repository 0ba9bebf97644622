package tradelog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"options-trading-engine/internal/logging"
	"options-trading-engine/internal/market"
)

// Store is the Postgres-backed journal. It keeps the same trade shape
// as the file journal so callers can switch between the two.
type Store struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// StoreConfig holds the database connection settings
type StoreConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewStore connects to Postgres and ensures the trades table exists
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{pool: pool, logger: logging.WithComponent("tradelog.store")}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Info("Trade store connected", "database", cfg.Database)
	return s, nil
}

// Close releases the connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS option_trades (
			trade_id VARCHAR(40) PRIMARY KEY,
			log_time TIMESTAMPTZ NOT NULL,
			index_name VARCHAR(20) NOT NULL,
			signal VARCHAR(10) NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			entry_price DECIMAL(12, 2) NOT NULL,
			exit_time TIMESTAMPTZ,
			exit_price DECIMAL(12, 2),
			quantity INTEGER NOT NULL,
			strike DECIMAL(12, 2) NOT NULL,
			expiry VARCHAR(20) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'OPEN',
			pnl DECIMAL(14, 2),
			stop_loss DECIMAL(12, 2),
			target DECIMAL(12, 2),
			confidence DECIMAL(5, 2),
			notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_option_trades_index ON option_trades(index_name)`,
		`CREATE INDEX IF NOT EXISTS idx_option_trades_status ON option_trades(status)`,
		`CREATE INDEX IF NOT EXISTS idx_option_trades_entry_time ON option_trades(entry_time)`,
	}

	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("running trade store migration: %w", err)
		}
	}
	return nil
}

// Log inserts a new trade and returns its ID
func (s *Store) Log(ctx context.Context, t *Trade) (string, error) {
	if err := validate(t); err != nil {
		return "", err
	}

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM option_trades`).Scan(&count); err != nil {
		return "", fmt.Errorf("counting trades: %w", err)
	}

	t.ID = fmt.Sprintf("TRADE_%d_%s", count+1, time.Now().Format("20060102150405"))
	t.LogTime = time.Now()
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.ExitTime != nil && t.ExitPrice > 0 {
		t.PnL = direction(t.Signal) * (t.ExitPrice - t.EntryPrice) * float64(t.Quantity)
		t.Status = StatusClosed
	}

	query := `
		INSERT INTO option_trades (trade_id, log_time, index_name, signal, entry_time, entry_price,
			exit_time, exit_price, quantity, strike, expiry, status, pnl, stop_loss, target, confidence, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.pool.Exec(ctx, query,
		t.ID, t.LogTime, string(t.Index), string(t.Signal), t.EntryTime, t.EntryPrice,
		t.ExitTime, t.ExitPrice, t.Quantity, t.Strike, t.Expiry, string(t.Status),
		t.PnL, t.StopLoss, t.Target, t.Confidence, t.Notes,
	)
	if err != nil {
		return "", fmt.Errorf("inserting trade: %w", err)
	}
	return t.ID, nil
}

// Mirror upserts a trade under its existing journal ID. Used when the
// file journal is the system of record and Postgres keeps a queryable copy.
func (s *Store) Mirror(ctx context.Context, t *Trade) error {
	if t.ID == "" {
		return fmt.Errorf("trade has no id")
	}

	query := `
		INSERT INTO option_trades (trade_id, log_time, index_name, signal, entry_time, entry_price,
			exit_time, exit_price, quantity, strike, expiry, status, pnl, stop_loss, target, confidence, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (trade_id) DO UPDATE SET
			exit_time = EXCLUDED.exit_time,
			exit_price = EXCLUDED.exit_price,
			status = EXCLUDED.status,
			pnl = EXCLUDED.pnl,
			stop_loss = EXCLUDED.stop_loss,
			target = EXCLUDED.target,
			notes = EXCLUDED.notes
	`
	_, err := s.pool.Exec(ctx, query,
		t.ID, t.LogTime, string(t.Index), string(t.Signal), t.EntryTime, t.EntryPrice,
		t.ExitTime, t.ExitPrice, t.Quantity, t.Strike, t.Expiry, string(t.Status),
		t.PnL, t.StopLoss, t.Target, t.Confidence, t.Notes,
	)
	if err != nil {
		return fmt.Errorf("mirroring trade: %w", err)
	}
	return nil
}

// CloseTrade marks a trade closed at a price and time and computes its pnl
func (s *Store) CloseTrade(ctx context.Context, id string, exitPrice float64, exitTime time.Time) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pnl := direction(t.Signal) * (exitPrice - t.EntryPrice) * float64(t.Quantity)
	query := `
		UPDATE option_trades
		SET exit_price = $2, exit_time = $3, pnl = $4, status = $5
		WHERE trade_id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, exitPrice, exitTime, pnl, string(StatusClosed)); err != nil {
		return fmt.Errorf("closing trade: %w", err)
	}
	return nil
}

const tradeColumns = `trade_id, log_time, index_name, signal, entry_time, entry_price,
	exit_time, exit_price, quantity, strike, expiry, status, pnl, stop_loss, target, confidence, notes`

// Get retrieves one trade by ID
func (s *Store) Get(ctx context.Context, id string) (*Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM option_trades WHERE trade_id = $1`, id)
	t, err := scanTrade(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("trade not found: %s", id)
	}
	return t, err
}

// Open returns all open trades, oldest first
func (s *Store) Open(ctx context.Context) ([]*Trade, error) {
	return s.query(ctx,
		`SELECT `+tradeColumns+` FROM option_trades WHERE status = 'OPEN' ORDER BY entry_time`)
}

// ByIndex returns all trades for one index, oldest first
func (s *Store) ByIndex(ctx context.Context, index market.Index) ([]*Trade, error) {
	return s.query(ctx,
		`SELECT `+tradeColumns+` FROM option_trades WHERE index_name = $1 ORDER BY entry_time`,
		string(index))
}

// ByDateRange returns trades entered between start and end, end
// inclusive to the whole day.
func (s *Store) ByDateRange(ctx context.Context, start, end time.Time) ([]*Trade, error) {
	if end.IsZero() {
		end = time.Now()
	}
	return s.query(ctx,
		`SELECT `+tradeColumns+` FROM option_trades
		 WHERE entry_time >= $1 AND entry_time < $2 ORDER BY entry_time`,
		truncateDay(start), truncateDay(end).AddDate(0, 0, 1))
}

// All returns every trade, oldest first
func (s *Store) All(ctx context.Context) ([]*Trade, error) {
	return s.query(ctx, `SELECT `+tradeColumns+` FROM option_trades ORDER BY entry_time`)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]*Trade, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanTrade(row pgx.Row) (*Trade, error) {
	t := &Trade{}
	var index, signal, status string
	var exitPrice, pnl, stopLoss, target, confidence *float64
	var notes *string

	err := row.Scan(
		&t.ID, &t.LogTime, &index, &signal, &t.EntryTime, &t.EntryPrice,
		&t.ExitTime, &exitPrice, &t.Quantity, &t.Strike, &t.Expiry, &status,
		&pnl, &stopLoss, &target, &confidence, &notes,
	)
	if err != nil {
		return nil, err
	}

	t.Index = market.Index(index)
	t.Signal = market.Signal(signal)
	t.Status = Status(status)
	if exitPrice != nil {
		t.ExitPrice = *exitPrice
	}
	if pnl != nil {
		t.PnL = *pnl
	}
	if stopLoss != nil {
		t.StopLoss = *stopLoss
	}
	if target != nil {
		t.Target = *target
	}
	if confidence != nil {
		t.Confidence = *confidence
	}
	if notes != nil {
		t.Notes = *notes
	}
	return t, nil
}
