package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// Repository implements ports.PositionRepository and ports.TradeResultRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

var (
	_ ports.PositionRepository    = (*Repository)(nil)
	_ ports.TradeResultRepository = (*Repository)(nil)
)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/ytcbot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

// initializeSchema creates tables if they don't exist. Times are stored as Unix milliseconds (UTC).
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		setup_type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		initial_stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		size REAL NOT NULL,
		value REAL NOT NULL,
		risk_reward REAL NOT NULL DEFAULT 0,
		entry_time INTEGER NOT NULL,
		entry_order_id TEXT NOT NULL DEFAULT '',
		breakeven_applied INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trade_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		setup_type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		size REAL NOT NULL,
		gross_pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		entry_time INTEGER NOT NULL,
		exit_time INTEGER NOT NULL,
		exit_order_id TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_symbol ON positions (symbol) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS idx_trade_results_symbol_exit_time ON trade_results (symbol, exit_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- PositionRepository Implementation ---

// Create saves a new position and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (trade_id, symbol, direction, setup_type, entry_price, stop_loss, initial_stop_loss,
	                       take_profit, size, value, risk_reward, entry_time, entry_order_id, breakeven_applied, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.TradeID, pos.Symbol, pos.Direction, pos.SetupType, pos.EntryPrice, pos.StopLoss, pos.InitialStopLoss,
		pos.TakeProfit, pos.Size, pos.Value, pos.RiskRewardRatio, toMillis(pos.EntryTime), pos.EntryOrderID,
		pos.BreakevenApplied, pos.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position %s: %w: %w", pos.TradeID, classify(err, ports.ErrQueryFailed), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.TradeID, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "tradeID": pos.TradeID, "symbol": pos.Symbol})
	return id, nil
}

// Update persists the mutable fields of a position (stop, breakeven flag, status).
func (r *Repository) Update(ctx context.Context, pos *domain.Position) error {
	const query = `
	UPDATE positions
	SET stop_loss = ?, take_profit = ?, breakeven_applied = ?, status = ?
	WHERE trade_id = ?`

	result, err := r.db.ExecContext(ctx, query, pos.StopLoss, pos.TakeProfit, pos.BreakevenApplied, pos.Status, pos.TradeID)
	if err != nil {
		return fmt.Errorf("failed to update position %s: %w: %w", pos.TradeID, classify(err, ports.ErrUpdateFailed), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update position %s: %w", pos.TradeID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position %s not found for update: %w", pos.TradeID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"tradeID": pos.TradeID, "stopLoss": pos.StopLoss, "status": pos.Status})
	return nil
}

const positionColumns = `id, trade_id, symbol, direction, setup_type, entry_price, stop_loss, initial_stop_loss,
	       take_profit, size, value, risk_reward, entry_time, entry_order_id, breakeven_applied, status`

// FindOpenBySymbol retrieves the currently open position for a given symbol, if any.
func (r *Repository) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE symbol = ? AND status = ?`
	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, symbol, domain.StatusOpen))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open position for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return pos, nil
}

// FindByTradeID retrieves a position by its trade ID.
func (r *Repository) FindByTradeID(ctx context.Context, tradeID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE trade_id = ?`
	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, tradeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query position %s: %w: %w", tradeID, ports.ErrQueryFailed, err)
	}
	return pos, nil
}

// --- TradeResultRepository Implementation ---

// SaveResult appends a trade result to the journal and returns its assigned ID.
func (r *Repository) SaveResult(ctx context.Context, res *domain.TradeResult) (int64, error) {
	const query = `
	INSERT INTO trade_results (trade_id, symbol, direction, setup_type, entry_price, exit_price, size,
	                           gross_pnl, pnl_percent, exit_reason, entry_time, exit_time, exit_order_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		res.TradeID, res.Symbol, res.Direction, res.SetupType, res.EntryPrice, res.ExitPrice, res.Size,
		res.GrossPnL, res.PnLPercent, res.ExitReason, toMillis(res.EntryTime), toMillis(res.ExitTime), res.ExitOrderID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade result %s: %w: %w", res.TradeID, classify(err, ports.ErrQueryFailed), err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade result %s: %w", res.TradeID, err)
	}
	res.ID = id
	r.logger.Debug(ctx, "Trade result saved", map[string]interface{}{"resultID": id, "tradeID": res.TradeID, "pnl": res.GrossPnL})
	return id, nil
}

// FindResultsBySymbol retrieves the most recent results for a symbol, newest first.
func (r *Repository) FindResultsBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error) {
	const query = `
	SELECT id, trade_id, symbol, direction, setup_type, entry_price, exit_price, size,
	       gross_pnl, pnl_percent, exit_reason, entry_time, exit_time, exit_order_id
	FROM trade_results
	WHERE symbol = ? ORDER BY exit_time DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade results for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	results := make([]*domain.TradeResult, 0)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade result: %w", err)
		}
		results = append(results, res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade result rows: %w", err)
	}
	return results, nil
}

// CountTodayBySymbol counts trades closed since midnight UTC for a given symbol.
func (r *Repository) CountTodayBySymbol(ctx context.Context, symbol string) (int, error) {
	const query = `SELECT COUNT(*) FROM trade_results WHERE symbol = ? AND exit_time >= ? AND exit_time < ?`
	start := r.now().UTC().Truncate(24 * time.Hour)
	var count int
	err := r.db.QueryRowContext(ctx, query, symbol, toMillis(start), toMillis(start.Add(24*time.Hour))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades today for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var direction, setupType, status string
	var entryMillis int64
	err := s.Scan(
		&p.ID, &p.TradeID, &p.Symbol, &direction, &setupType, &p.EntryPrice, &p.StopLoss, &p.InitialStopLoss,
		&p.TakeProfit, &p.Size, &p.Value, &p.RiskRewardRatio, &entryMillis, &p.EntryOrderID, &p.BreakevenApplied, &status)
	if err != nil {
		return nil, err
	}
	p.Direction = domain.Direction(direction)
	p.SetupType = domain.SetupType(setupType)
	p.Status = domain.PositionStatus(status)
	p.EntryTime = fromMillis(entryMillis)
	return p, nil
}

func scanResult(s scanner) (*domain.TradeResult, error) {
	res := &domain.TradeResult{}
	var direction, setupType, reason string
	var entryMillis, exitMillis int64
	err := s.Scan(
		&res.ID, &res.TradeID, &res.Symbol, &direction, &setupType, &res.EntryPrice, &res.ExitPrice, &res.Size,
		&res.GrossPnL, &res.PnLPercent, &reason, &entryMillis, &exitMillis, &res.ExitOrderID)
	if err != nil {
		return nil, err
	}
	res.Direction = domain.Direction(direction)
	res.SetupType = domain.SetupType(setupType)
	res.ExitReason = domain.ExitReason(reason)
	res.EntryTime = fromMillis(entryMillis)
	res.ExitTime = fromMillis(exitMillis)
	return res, nil
}

// classify maps SQLite constraint violations to ErrDuplicateEntry.
func classify(err error, fallback error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return ports.ErrDuplicateEntry
	}
	return fallback
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
