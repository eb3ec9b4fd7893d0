/*
Package sqlite provides a SQLite-backed implementation of stock.Store.

PURPOSE:
  Durable default store: the append-only movement log, the sales log and the
  catalog definitions in one database file. A full replay of the movements
  table reproduces every balance.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on movements or sales
  - Triggers abort any UPDATE or DELETE that reaches those tables anyway
  - seq is the primary key; a duplicate means another writer got there first
    and surfaces as stock.ErrConcurrentModification

KEY TABLES:
  movements:     Immutable ledger, ordered by seq
  sales:         Immutable sales log
  ingredients:   Catalog definitions (no quantity column, by construction)
  menus:         Menu items, recipe as JSON
  batch_recipes: Batch recipes, recipe as JSON

ENCODING:
  Decimals are TEXT (exact). Timestamps are fixed-width ISO-8601 UTC with
  nanoseconds so that string comparison orders them.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases on one handle. Scans read one page per query and
  close the rows before yielding, so a consumer that commits while ranging
  over a scan cannot starve the pool.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/kitchen.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  kitchen, err := stock.Open(ctx, store)

SEE ALSO:
  - stock/store.go: Interface definitions
  - stock/store/memory.go: In-memory implementation for testing
  - store/postgres: Multi-process deployment
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/kitchen-stock/stock"
)

// timeFormat is RFC3339 with a fixed-width fraction.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// pageSize bounds the rows read per scan query.
const pageSize = 500

// Store implements stock.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS movements (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		ingredient_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		at TEXT NOT NULL,
		note TEXT,
		reference TEXT
	);

	-- Per-ingredient history (hot path for movementHistory)
	CREATE INDEX IF NOT EXISTS idx_movements_ingredient_seq
		ON movements(ingredient_id, seq);
	CREATE INDEX IF NOT EXISTS idx_movements_at
		ON movements(at);
	CREATE INDEX IF NOT EXISTS idx_movements_kind_at
		ON movements(kind, at);
	CREATE INDEX IF NOT EXISTS idx_movements_reference
		ON movements(reference) WHERE reference IS NOT NULL;

	CREATE TRIGGER IF NOT EXISTS movements_no_update
		BEFORE UPDATE ON movements
		BEGIN SELECT RAISE(ABORT, 'movements are append-only'); END;
	CREATE TRIGGER IF NOT EXISTS movements_no_delete
		BEFORE DELETE ON movements
		BEGIN SELECT RAISE(ABORT, 'movements are append-only'); END;

	-- Sales log (append-only)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		menu_id TEXT NOT NULL,
		menu_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_at
		ON sales(at);
	CREATE INDEX IF NOT EXISTS idx_sales_menu
		ON sales(menu_id, at);

	CREATE TRIGGER IF NOT EXISTS sales_no_update
		BEFORE UPDATE ON sales
		BEGIN SELECT RAISE(ABORT, 'sales are append-only'); END;
	CREATE TRIGGER IF NOT EXISTS sales_no_delete
		BEFORE DELETE ON sales
		BEGIN SELECT RAISE(ABORT, 'sales are append-only'); END;

	-- Catalog
	CREATE TABLE IF NOT EXISTS ingredients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		unit TEXT,
		min_threshold TEXT NOT NULL,
		kind TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS menus (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		recipe_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batch_recipes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target_id TEXT NOT NULL,
		yield TEXT NOT NULL,
		recipe_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batch_recipes_target
		ON batch_recipes(target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// MOVEMENT STORE
// =============================================================================

// AppendMovements adds movements atomically.
func (s *Store) AppendMovements(ctx context.Context, ms []stock.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := appendMovements(ctx, sqlTx, ms); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func appendMovements(ctx context.Context, db querier, ms []stock.Movement) error {
	query := `
		INSERT INTO movements
		(seq, id, ingredient_id, kind, amount, balance_after, at, note, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, m := range ms {
		_, err := db.ExecContext(ctx, query,
			m.Seq,
			m.ID,
			m.IngredientID,
			m.Kind,
			m.Amount.String(),
			m.BalanceAfter.String(),
			m.At.UTC().Format(timeFormat),
			nullString(m.Note),
			nullString(m.Reference),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: movement seq %d already written", stock.ErrConcurrentModification, m.Seq)
			}
			return fmt.Errorf("failed to append movement: %w", err)
		}
	}
	return nil
}

// LastSequence returns the highest seq, 0 for an empty ledger.
func (s *Store) LastSequence(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastSequence(ctx, s.db)
}

func lastSequence(ctx context.Context, db querier) (int64, error) {
	var seq sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(seq) FROM movements").Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return seq.Int64, nil
}

// ScanMovements pages through matching movements in seq order.
func (s *Store) ScanMovements(ctx context.Context, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return scanMovements(filter, func(after int64) ([]stock.Movement, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return movementPage(ctx, s.db, filter, after)
	})
}

func scanMovements(filter stock.MovementFilter, page func(after int64) ([]stock.Movement, error)) iter.Seq2[stock.Movement, error] {
	return func(yield func(stock.Movement, error) bool) {
		cursor := filter.AfterSeq
		for {
			ms, err := page(cursor)
			if err != nil {
				yield(stock.Movement{}, err)
				return
			}
			for _, m := range ms {
				if !yield(m, nil) {
					return
				}
			}
			if len(ms) < pageSize {
				return
			}
			cursor = ms[len(ms)-1].Seq
		}
	}
}

func movementPage(ctx context.Context, db querier, filter stock.MovementFilter, after int64) ([]stock.Movement, error) {
	where := []string{"seq > ?"}
	args := []any{after}
	if filter.IngredientID != "" {
		where = append(where, "ingredient_id = ?")
		args = append(args, filter.IngredientID)
	}
	if len(filter.Kinds) > 0 {
		marks := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			marks[i] = "?"
			args = append(args, k)
		}
		where = append(where, "kind IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.Range.From.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, filter.Range.From.UTC().Format(timeFormat))
	}
	if !filter.Range.To.IsZero() {
		where = append(where, "at <= ?")
		args = append(args, filter.Range.To.UTC().Format(timeFormat))
	}
	args = append(args, pageSize)

	query := `
		SELECT seq, id, ingredient_id, kind, amount, balance_after, at, note, reference
		FROM movements
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []stock.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovement(rows *sql.Rows) (stock.Movement, error) {
	var (
		m            stock.Movement
		amount       string
		balanceAfter string
		at           string
		note         sql.NullString
		reference    sql.NullString
	)
	err := rows.Scan(&m.Seq, &m.ID, &m.IngredientID, &m.Kind, &amount, &balanceAfter, &at, &note, &reference)
	if err != nil {
		return m, fmt.Errorf("failed to scan movement: %w", err)
	}
	if m.Amount, err = decimal.NewFromString(amount); err != nil {
		return m, fmt.Errorf("movement %d: bad amount %q: %w", m.Seq, amount, err)
	}
	if m.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return m, fmt.Errorf("movement %d: bad balance_after %q: %w", m.Seq, balanceAfter, err)
	}
	if m.At, err = time.Parse(timeFormat, at); err != nil {
		return m, fmt.Errorf("movement %d: bad timestamp %q: %w", m.Seq, at, err)
	}
	m.Note = note.String
	m.Reference = reference.String
	return m, nil
}

// =============================================================================
// SALES STORE
// =============================================================================

func (s *Store) AppendSale(ctx context.Context, sale stock.SaleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendSale(ctx, s.db, sale)
}

func appendSale(ctx context.Context, db querier, sale stock.SaleEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sales (id, menu_id, menu_name, quantity, at) VALUES (?, ?, ?, ?, ?)`,
		sale.ID, sale.MenuID, sale.MenuName, sale.Quantity, sale.At.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to append sale: %w", err)
	}
	return nil
}

// ScanSales yields matching sales oldest first. The sales log is small
// enough to read in one query.
func (s *Store) ScanSales(ctx context.Context, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return func(yield func(stock.SaleEntry, error) bool) {
		s.mu.RLock()
		sales, err := querySales(ctx, s.db, filter)
		s.mu.RUnlock()
		yieldSales(sales, err, yield)
	}
}

func yieldSales(sales []stock.SaleEntry, err error, yield func(stock.SaleEntry, error) bool) {
	if err != nil {
		yield(stock.SaleEntry{}, err)
		return
	}
	for _, sale := range sales {
		if !yield(sale, nil) {
			return
		}
	}
}

func querySales(ctx context.Context, db querier, filter stock.SaleFilter) ([]stock.SaleEntry, error) {
	where := []string{"1 = 1"}
	var args []any
	if filter.MenuID != "" {
		where = append(where, "menu_id = ?")
		args = append(args, filter.MenuID)
	}
	if !filter.Range.From.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, filter.Range.From.UTC().Format(timeFormat))
	}
	if !filter.Range.To.IsZero() {
		where = append(where, "at <= ?")
		args = append(args, filter.Range.To.UTC().Format(timeFormat))
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, menu_id, menu_name, quantity, at
		FROM sales
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY at ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []stock.SaleEntry
	for rows.Next() {
		var (
			sale stock.SaleEntry
			at   string
		)
		if err := rows.Scan(&sale.ID, &sale.MenuID, &sale.MenuName, &sale.Quantity, &at); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if sale.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("sale %s: bad timestamp %q: %w", sale.ID, at, err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

// =============================================================================
// CATALOG STORE
// =============================================================================

// recipeLine is the JSON shape of a stored recipe line.
type recipeLine struct {
	IngredientID string          `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

func encodeRecipe(r stock.Recipe) (string, error) {
	lines := make([]recipeLine, len(r))
	for i, l := range r {
		lines[i] = recipeLine{IngredientID: string(l.IngredientID), Amount: l.Amount}
	}
	b, err := json.Marshal(lines)
	return string(b), err
}

func decodeRecipe(s string) (stock.Recipe, error) {
	var lines []recipeLine
	if err := json.Unmarshal([]byte(s), &lines); err != nil {
		return nil, err
	}
	r := make(stock.Recipe, len(lines))
	for i, l := range lines {
		r[i] = stock.RecipeLine{IngredientID: stock.IngredientID(l.IngredientID), Amount: l.Amount}
	}
	return r, nil
}

func now() string { return time.Now().UTC().Format(timeFormat) }

func (s *Store) SaveIngredient(ctx context.Context, ing stock.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveIngredient(ctx, s.db, ing)
}

func saveIngredient(ctx context.Context, db querier, ing stock.Ingredient) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ingredients (id, name, category, unit, min_threshold, kind, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			unit = excluded.unit,
			min_threshold = excluded.min_threshold,
			kind = excluded.kind,
			updated_at = excluded.updated_at
	`, ing.ID, ing.Name, ing.Category, ing.Unit, ing.MinThreshold.String(), ing.Kind, now())
	if err != nil {
		return fmt.Errorf("failed to save ingredient: %w", err)
	}
	return nil
}

func (s *Store) DeleteIngredient(ctx context.Context, id stock.IngredientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "ingredients", string(id))
}

func (s *Store) ListIngredients(ctx context.Context) ([]stock.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listIngredients(ctx, s.db)
}

func listIngredients(ctx context.Context, db querier) ([]stock.Ingredient, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, category, unit, min_threshold, kind
		FROM ingredients
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	var out []stock.Ingredient
	for rows.Next() {
		var (
			ing      stock.Ingredient
			category sql.NullString
			unit     sql.NullString
			minimum  string
		)
		if err := rows.Scan(&ing.ID, &ing.Name, &category, &unit, &minimum, &ing.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		if ing.MinThreshold, err = decimal.NewFromString(minimum); err != nil {
			return nil, fmt.Errorf("ingredient %s: bad min_threshold %q: %w", ing.ID, minimum, err)
		}
		ing.Category = category.String
		ing.Unit = unit.String
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (s *Store) SaveMenu(ctx context.Context, m stock.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveMenu(ctx, s.db, m)
}

func saveMenu(ctx context.Context, db querier, m stock.MenuItem) error {
	recipe, err := encodeRecipe(m.Recipe)
	if err != nil {
		return fmt.Errorf("failed to encode recipe: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO menus (id, name, price, recipe_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			recipe_json = excluded.recipe_json,
			updated_at = excluded.updated_at
	`, m.ID, m.Name, m.Price.String(), recipe, now())
	if err != nil {
		return fmt.Errorf("failed to save menu: %w", err)
	}
	return nil
}

func (s *Store) DeleteMenu(ctx context.Context, id stock.MenuID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "menus", string(id))
}

func (s *Store) ListMenus(ctx context.Context) ([]stock.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listMenus(ctx, s.db)
}

func listMenus(ctx context.Context, db querier) ([]stock.MenuItem, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, price, recipe_json FROM menus ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menus: %w", err)
	}
	defer rows.Close()

	var out []stock.MenuItem
	for rows.Next() {
		var (
			m      stock.MenuItem
			price  string
			recipe string
		)
		if err := rows.Scan(&m.ID, &m.Name, &price, &recipe); err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		if m.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("menu %s: bad price %q: %w", m.ID, price, err)
		}
		if m.Recipe, err = decodeRecipe(recipe); err != nil {
			return nil, fmt.Errorf("menu %s: bad recipe: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveBatch(ctx context.Context, b stock.BatchRecipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveBatch(ctx, s.db, b)
}

func saveBatch(ctx context.Context, db querier, b stock.BatchRecipe) error {
	recipe, err := encodeRecipe(b.Recipe)
	if err != nil {
		return fmt.Errorf("failed to encode recipe: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO batch_recipes (id, name, target_id, yield, recipe_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target_id = excluded.target_id,
			yield = excluded.yield,
			recipe_json = excluded.recipe_json,
			updated_at = excluded.updated_at
	`, b.ID, b.Name, b.TargetID, b.Yield.String(), recipe, now())
	if err != nil {
		return fmt.Errorf("failed to save batch recipe: %w", err)
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id stock.BatchID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "batch_recipes", string(id))
}

func (s *Store) ListBatches(ctx context.Context) ([]stock.BatchRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBatches(ctx, s.db)
}

func listBatches(ctx context.Context, db querier) ([]stock.BatchRecipe, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, target_id, yield, recipe_json FROM batch_recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch recipes: %w", err)
	}
	defer rows.Close()

	var out []stock.BatchRecipe
	for rows.Next() {
		var (
			b      stock.BatchRecipe
			yield  string
			recipe string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.TargetID, &yield, &recipe); err != nil {
			return nil, fmt.Errorf("failed to scan batch recipe: %w", err)
		}
		if b.Yield, err = decimal.NewFromString(yield); err != nil {
			return nil, fmt.Errorf("batch %s: bad yield %q: %w", b.ID, yield, err)
		}
		if b.Recipe, err = decodeRecipe(recipe); err != nil {
			return nil, fmt.Errorf("batch %s: bad recipe: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// deleteRow removes a catalog row. Only catalog tables are passed in.
func deleteRow(ctx context.Context, db querier, table, id string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(stock.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction. The parent's lock is
// already held by WithTx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendMovements(ctx context.Context, ms []stock.Movement) error {
	return appendMovements(ctx, ts.tx, ms)
}

func (ts *txStore) LastSequence(ctx context.Context) (int64, error) {
	return lastSequence(ctx, ts.tx)
}

func (ts *txStore) ScanMovements(ctx context.Context, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return scanMovements(filter, func(after int64) ([]stock.Movement, error) {
		return movementPage(ctx, ts.tx, filter, after)
	})
}

func (ts *txStore) AppendSale(ctx context.Context, sale stock.SaleEntry) error {
	return appendSale(ctx, ts.tx, sale)
}

func (ts *txStore) ScanSales(ctx context.Context, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return func(yield func(stock.SaleEntry, error) bool) {
		sales, err := querySales(ctx, ts.tx, filter)
		yieldSales(sales, err, yield)
	}
}

func (ts *txStore) SaveIngredient(ctx context.Context, ing stock.Ingredient) error {
	return saveIngredient(ctx, ts.tx, ing)
}

func (ts *txStore) DeleteIngredient(ctx context.Context, id stock.IngredientID) error {
	return deleteRow(ctx, ts.tx, "ingredients", string(id))
}

func (ts *txStore) ListIngredients(ctx context.Context) ([]stock.Ingredient, error) {
	return listIngredients(ctx, ts.tx)
}

func (ts *txStore) SaveMenu(ctx context.Context, m stock.MenuItem) error {
	return saveMenu(ctx, ts.tx, m)
}

func (ts *txStore) DeleteMenu(ctx context.Context, id stock.MenuID) error {
	return deleteRow(ctx, ts.tx, "menus", string(id))
}

func (ts *txStore) ListMenus(ctx context.Context) ([]stock.MenuItem, error) {
	return listMenus(ctx, ts.tx)
}

func (ts *txStore) SaveBatch(ctx context.Context, b stock.BatchRecipe) error {
	return saveBatch(ctx, ts.tx, b)
}

func (ts *txStore) DeleteBatch(ctx context.Context, id stock.BatchID) error {
	return deleteRow(ctx, ts.tx, "batch_recipes", string(id))
}

func (ts *txStore) ListBatches(ctx context.Context) ([]stock.BatchRecipe, error) {
	return listBatches(ctx, ts.tx)
}

// WithTx flattens nested transactions into the open one.
func (ts *txStore) WithTx(_ context.Context, fn func(stock.Store) error) error {
	return fn(ts)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
