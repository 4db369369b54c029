package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.PositionRepository and ports.OrderRepository
// using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the database and initialises the schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/forex_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the bot loop and queries.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The Go driver benefits from a single connection; SQLite serialises
	// writers internally anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pair TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL,
		status TEXT NOT NULL,
		pnl REAL DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT NOT NULL UNIQUE,
		position_id INTEGER NULL,
		pair TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity TEXT NOT NULL,
		requested_price REAL NOT NULL,
		fill_price REAL DEFAULT NULL,
		status TEXT NOT NULL,
		submitted_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP DEFAULT NULL,
		reason TEXT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_positions_pair_status ON positions (pair, status);
	CREATE INDEX IF NOT EXISTS idx_orders_pair_status ON orders (pair, status);
	CREATE INDEX IF NOT EXISTS idx_orders_resolved_at ON orders (resolved_at);
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

// --- PositionRepository implementation ---

// CreatePosition saves a new position and returns its assigned ID.
func (r *Repository) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (pair, direction, quantity, entry_price, opened_at, status)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		pos.Pair.String(), string(pos.Direction), pos.Quantity.String(), pos.EntryPrice, pos.OpenedAt, string(pos.Status))
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for %s: %w", pos.Pair, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s: %w", pos.Pair, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "pair": pos.Pair.String()})
	return id, nil
}

// UpdatePosition modifies an existing position based on its ID.
func (r *Repository) UpdatePosition(ctx context.Context, pos *domain.Position) error {
	result, err := r.db.ExecContext(ctx, updatePositionQuery, positionUpdateArgs(pos)...)
	if err != nil {
		return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position ID %d: %w", pos.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Position updated", map[string]interface{}{"positionID": pos.ID, "status": string(pos.Status)})
	return nil
}

const updatePositionQuery = `
	UPDATE positions
	SET pair = ?, direction = ?, quantity = ?, entry_price = ?, exit_price = ?,
	    opened_at = ?, closed_at = ?, status = ?, pnl = ?
	WHERE id = ?`

func positionUpdateArgs(pos *domain.Position) []interface{} {
	var closedAt sql.NullTime
	if !pos.ClosedAt.IsZero() {
		closedAt = sql.NullTime{Time: pos.ClosedAt, Valid: true}
	}
	return []interface{}{
		pos.Pair.String(), string(pos.Direction), pos.Quantity.String(), pos.EntryPrice, pos.ExitPrice,
		pos.OpenedAt, closedAt, string(pos.Status), pos.PNL,
		pos.ID,
	}
}

// FindOpenByPair retrieves the open positions for a pair, newest first.
func (r *Repository) FindOpenByPair(ctx context.Context, pair domain.CurrencyPair) ([]*domain.Position, error) {
	const query = selectPosition + ` WHERE pair = ? AND status = ? ORDER BY opened_at DESC`

	rows, err := r.db.QueryContext(ctx, query, pair.String(), string(domain.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions for %s: %w", pair, err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// FindAllPositions retrieves all positions, ordered by open time descending.
func (r *Repository) FindAllPositions(ctx context.Context) ([]*domain.Position, error) {
	const query = selectPosition + ` ORDER BY opened_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// TotalPNL sums the PNL of all closed positions.
func (r *Repository) TotalPNL(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(pnl), 0) FROM positions WHERE status = ?`
	var total float64
	if err := r.db.QueryRowContext(ctx, query, string(domain.StatusClosed)).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to calculate total PNL: %w", err)
	}
	return total, nil
}

// --- OrderRepository implementation ---

// CreateOrder saves a new pending order and returns its assigned ID.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) (int64, error) {
	const query = `
	INSERT INTO orders (client_id, pair, side, quantity, requested_price, status, submitted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		order.ClientID, order.Pair.String(), string(order.Side), order.Quantity.String(),
		order.RequestedPrice, string(order.Status), order.SubmittedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order %s: %w", order.ClientID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order %s: %w", order.ClientID, err)
	}
	order.ID = id
	r.logger.Debug(ctx, "Order created", map[string]interface{}{"orderID": id, "clientID": order.ClientID})
	return id, nil
}

// ResolveOrder applies a terminal status to a pending order. The status
// guard in the WHERE clause makes the transition race-free: a second resolve
// affects zero rows and fails with ErrAlreadyResolved.
func (r *Repository) ResolveOrder(ctx context.Context, order *domain.Order) error {
	result, err := r.db.ExecContext(ctx, resolveOrderQuery, orderResolveArgs(order)...)
	if err != nil {
		return fmt.Errorf("failed to resolve order ID %d: %w", order.ID, err)
	}
	return checkResolved(result, order.ID)
}

const resolveOrderQuery = `
	UPDATE orders
	SET position_id = ?, fill_price = ?, status = ?, resolved_at = ?, reason = ?
	WHERE id = ? AND status = ?`

func orderResolveArgs(order *domain.Order) []interface{} {
	var positionID sql.NullInt64
	if order.PositionID != nil {
		positionID = sql.NullInt64{Int64: *order.PositionID, Valid: true}
	}
	var resolvedAt sql.NullTime
	if !order.ResolvedAt.IsZero() {
		resolvedAt = sql.NullTime{Time: order.ResolvedAt, Valid: true}
	}
	return []interface{}{
		positionID, order.FillPrice, string(order.Status), resolvedAt, order.Reason,
		order.ID, string(domain.OrderPending),
	}
}

func checkResolved(result sql.Result, orderID int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for order ID %d: %w", orderID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order ID %d is not pending: %w", orderID, ports.ErrAlreadyResolved)
	}
	return nil
}

// ReconcileFill resolves a filled order and creates or updates the matching
// position in one transaction, so a crash can never leave a fill recorded
// without its position or vice versa.
func (r *Repository) ReconcileFill(ctx context.Context, order *domain.Order, pos *domain.Position) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin reconcile transaction: %v", ports.ErrDBConnection, err)
	}
	defer tx.Rollback()

	if pos.ID == 0 {
		const insert = `
		INSERT INTO positions (pair, direction, quantity, entry_price, opened_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`
		result, err := tx.ExecContext(ctx, insert,
			pos.Pair.String(), string(pos.Direction), pos.Quantity.String(), pos.EntryPrice, pos.OpenedAt, string(pos.Status))
		if err != nil {
			return fmt.Errorf("failed to insert position for order ID %d: %w", order.ID, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get position ID for order ID %d: %w", order.ID, err)
		}
		pos.ID = id
	} else {
		result, err := tx.ExecContext(ctx, updatePositionQuery, positionUpdateArgs(pos)...)
		if err != nil {
			return fmt.Errorf("failed to update position ID %d: %w", pos.ID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for position ID %d: %w", pos.ID, err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("position ID %d not found for update: %w", pos.ID, ports.ErrNotFound)
		}
	}

	order.PositionID = &pos.ID
	result, err := tx.ExecContext(ctx, resolveOrderQuery, orderResolveArgs(order)...)
	if err != nil {
		return fmt.Errorf("failed to resolve order ID %d: %w", order.ID, err)
	}
	if err := checkResolved(result, order.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit reconcile transaction: %v", ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Fill reconciled", map[string]interface{}{
		"orderID": order.ID, "positionID": pos.ID, "posStatus": string(pos.Status),
	})
	return nil
}

// FindOrderByID retrieves an order by its unique ID. Returns nil, nil if not
// found.
func (r *Repository) FindOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	const query = selectOrder + ` WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order by ID %d: %w", id, err)
	}
	return order, nil
}

// CountTodayByPair counts orders filled today for a pair. Timestamps are
// stored in UTC, so the calendar day boundary is evaluated in UTC on both
// sides.
func (r *Repository) CountTodayByPair(ctx context.Context, pair domain.CurrencyPair) (int, error) {
	const query = `
	SELECT COUNT(*) FROM orders
	WHERE pair = ? AND status = ? AND date(resolved_at) = date('now')`
	var count int
	err := r.db.QueryRowContext(ctx, query, pair.String(), string(domain.OrderFilled)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's orders for %s: %w", pair, err)
	}
	return count, nil
}

// --- Scan helpers ---

const selectPosition = `
	SELECT id, pair, direction, quantity, entry_price, COALESCE(exit_price, 0),
	       opened_at, closed_at, status, COALESCE(pnl, 0)
	FROM positions`

const selectOrder = `
	SELECT id, client_id, position_id, pair, side, quantity, requested_price,
	       COALESCE(fill_price, 0), status, submitted_at, resolved_at, COALESCE(reason, '')
	FROM orders`

// scanner is compatible with both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var pair, direction, quantity, status string
	var closedAt sql.NullTime
	err := s.Scan(&p.ID, &pair, &direction, &quantity, &p.EntryPrice, &p.ExitPrice,
		&p.OpenedAt, &closedAt, &status, &p.PNL)
	if err != nil {
		return nil, err
	}
	p.Pair, err = domain.ParsePair(pair)
	if err != nil {
		return nil, fmt.Errorf("stored pair is invalid: %w", err)
	}
	p.Quantity, err = decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("stored quantity is invalid: %w", err)
	}
	p.Direction = domain.OrderSide(direction)
	p.Status = domain.PositionStatus(status)
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	return p, nil
}

func collectPositions(rows *sql.Rows) ([]*domain.Position, error) {
	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

func scanOrder(s scanner) (*domain.Order, error) {
	o := &domain.Order{}
	var pair, side, quantity, status string
	var positionID sql.NullInt64
	var resolvedAt sql.NullTime
	err := s.Scan(&o.ID, &o.ClientID, &positionID, &pair, &side, &quantity, &o.RequestedPrice,
		&o.FillPrice, &status, &o.SubmittedAt, &resolvedAt, &o.Reason)
	if err != nil {
		return nil, err
	}
	o.Pair, err = domain.ParsePair(pair)
	if err != nil {
		return nil, fmt.Errorf("stored pair is invalid: %w", err)
	}
	o.Quantity, err = decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("stored quantity is invalid: %w", err)
	}
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	if positionID.Valid {
		o.PositionID = &positionID.Int64
	}
	if resolvedAt.Valid {
		o.ResolvedAt = resolvedAt.Time
	}
	return o, nil
}
