/*
Package postgres provides a PostgreSQL-backed implementation of stock.Store
on a pgx connection pool.

PURPOSE:
  Remote store for deployments where the database outlives or is shared by
  the service process. Same schema shape as store/sqlite plus one table the
  embedded store does not need: stock_balances.

CHECK-THEN-ACT WITHOUT A PROCESS LOCK:
  Every WithTx runs at SERIALIZABLE isolation. AppendMovements additionally
  performs a compare-and-swap per movement on stock_balances:

    UPDATE stock_balances
    SET balance = <balance_after>, version = version + 1
    WHERE ingredient_id = $1 AND balance = <balance_after - delta>

  Zero rows affected means another writer moved the balance since this
  process read it. That, a serialization failure (40001) and a duplicate seq
  (23505) all surface as stock.ErrConcurrentModification so the coordinator
  re-resolves against fresh state.

ENCODING:
  Decimals go over the wire as text and are cast to NUMERIC in SQL; reads
  select ::text so no precision is lost on the way back. Recipes are JSONB.
  Movement and sale times are BIGINT unix nanoseconds: TIMESTAMPTZ keeps
  microseconds only, and the ledger stamps nanoseconds.

SEE ALSO:
  - store/sqlite: Embedded default store
  - stock/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/kitchen-stock/stock"
)

const pageSize = 500

// Store implements stock.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, waits for the database to accept connections and
// migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := waitReady(ctx, pool, 30); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func waitReady(ctx context.Context, pool *pgxpool.Pool, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS movements (
		seq BIGINT PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		ingredient_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		balance_after NUMERIC NOT NULL,
		at_ns BIGINT NOT NULL,
		note TEXT,
		reference TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_movements_ingredient_seq ON movements(ingredient_id, seq);
	CREATE INDEX IF NOT EXISTS idx_movements_at ON movements(at_ns);
	CREATE INDEX IF NOT EXISTS idx_movements_kind_at ON movements(kind, at_ns);

	CREATE TABLE IF NOT EXISTS stock_balances (
		ingredient_id TEXT PRIMARY KEY,
		balance NUMERIC NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		menu_id TEXT NOT NULL,
		menu_name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		at_ns BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sales_at ON sales(at_ns);

	CREATE TABLE IF NOT EXISTS ingredients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		min_threshold NUMERIC NOT NULL,
		kind TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS menus (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC NOT NULL,
		recipe JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS batch_recipes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		target_id TEXT NOT NULL,
		yield NUMERIC NOT NULL,
		recipe JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a SERIALIZABLE transaction.
func (s *Store) WithTx(ctx context.Context, fn func(stock.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return conflict(err)
	}
	return conflict(tx.Commit(ctx))
}

// conflict maps retryable database errors onto the domain sentinel.
func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s", stock.ErrConcurrentModification, pgErr.Message)
		}
	}
	return err
}

type txStore struct {
	tx pgx.Tx
}

// WithTx flattens nested transactions into the open one.
func (ts *txStore) WithTx(_ context.Context, fn func(stock.Store) error) error {
	return fn(ts)
}

// =============================================================================
// MOVEMENT STORE
// =============================================================================

// AppendMovements writes ms in their own transaction.
func (s *Store) AppendMovements(ctx context.Context, ms []stock.Movement) error {
	return s.WithTx(ctx, func(tx stock.Store) error {
		return tx.AppendMovements(ctx, ms)
	})
}

func (ts *txStore) AppendMovements(ctx context.Context, ms []stock.Movement) error {
	for _, m := range ms {
		if err := casBalance(ctx, ts.tx, m); err != nil {
			return err
		}
		_, err := ts.tx.Exec(ctx, `
			INSERT INTO movements
			(seq, id, ingredient_id, kind, amount, balance_after, at_ns, note, reference)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9)
		`,
			m.Seq,
			string(m.ID),
			string(m.IngredientID),
			string(m.Kind),
			m.Amount.String(),
			m.BalanceAfter.String(),
			toNanos(m.At),
			m.Note,
			m.Reference,
		)
		if err != nil {
			return conflict(fmt.Errorf("failed to append movement: %w", err))
		}
	}
	return nil
}

// casBalance moves the ingredient's stored balance from the value the
// movement was computed against to its BalanceAfter.
func casBalance(ctx context.Context, tx pgx.Tx, m stock.Movement) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO stock_balances (ingredient_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		string(m.IngredientID),
	); err != nil {
		return fmt.Errorf("failed to init balance row: %w", err)
	}

	expected := m.BalanceAfter.Sub(m.Delta())
	tag, err := tx.Exec(ctx, `
		UPDATE stock_balances
		SET balance = $2::numeric, version = version + 1
		WHERE ingredient_id = $1 AND balance = $3::numeric
	`, string(m.IngredientID), m.BalanceAfter.String(), expected.String())
	if err != nil {
		return conflict(fmt.Errorf("failed to update balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: balance of %s is no longer %s",
			stock.ErrConcurrentModification, m.IngredientID, expected)
	}
	return nil
}

func (s *Store) LastSequence(ctx context.Context) (int64, error) {
	return lastSequence(ctx, s.pool)
}

func (ts *txStore) LastSequence(ctx context.Context) (int64, error) {
	return lastSequence(ctx, ts.tx)
}

func lastSequence(ctx context.Context, db querier) (int64, error) {
	var seq int64
	if err := db.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM movements`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to read last sequence: %w", err)
	}
	return seq, nil
}

func (s *Store) ScanMovements(ctx context.Context, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return scanMovements(ctx, s.pool, filter)
}

func (ts *txStore) ScanMovements(ctx context.Context, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return scanMovements(ctx, ts.tx, filter)
}

func scanMovements(ctx context.Context, db querier, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return func(yield func(stock.Movement, error) bool) {
		cursor := filter.AfterSeq
		for {
			page, err := movementPage(ctx, db, filter, cursor)
			if err != nil {
				yield(stock.Movement{}, err)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			cursor = page[len(page)-1].Seq
		}
	}
}

func movementPage(ctx context.Context, db querier, filter stock.MovementFilter, after int64) ([]stock.Movement, error) {
	args := []any{after}
	where := []string{"seq > $1"}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.IngredientID != "" {
		where = append(where, "ingredient_id = "+next(string(filter.IngredientID)))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		where = append(where, "kind = ANY("+next(kinds)+")")
	}
	if !filter.Range.From.IsZero() {
		where = append(where, "at_ns >= "+next(toNanos(filter.Range.From)))
	}
	if !filter.Range.To.IsZero() {
		where = append(where, "at_ns <= "+next(toNanos(filter.Range.To)))
	}
	limit := next(pageSize)

	rows, err := db.Query(ctx, `
		SELECT seq, id, ingredient_id, kind, amount::text, balance_after::text, at_ns,
		       COALESCE(note, ''), COALESCE(reference, '')
		FROM movements
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq ASC
		LIMIT `+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []stock.Movement
	for rows.Next() {
		var (
			m                    stock.Movement
			id, ingredient, kind string
			amount, balanceAfter string
			atNanos              int64
		)
		if err := rows.Scan(&m.Seq, &id, &ingredient, &kind, &amount, &balanceAfter, &atNanos, &m.Note, &m.Reference); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.ID = stock.MovementID(id)
		m.IngredientID = stock.IngredientID(ingredient)
		m.Kind = stock.MovementKind(kind)
		m.At = fromNanos(atNanos)
		if m.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("movement %d: bad amount: %w", m.Seq, err)
		}
		if m.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
			return nil, fmt.Errorf("movement %d: bad balance_after: %w", m.Seq, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// =============================================================================
// SALES STORE
// =============================================================================

func (s *Store) AppendSale(ctx context.Context, sale stock.SaleEntry) error {
	return appendSale(ctx, s.pool, sale)
}

func (ts *txStore) AppendSale(ctx context.Context, sale stock.SaleEntry) error {
	return appendSale(ctx, ts.tx, sale)
}

func appendSale(ctx context.Context, db querier, sale stock.SaleEntry) error {
	_, err := db.Exec(ctx,
		`INSERT INTO sales (id, menu_id, menu_name, quantity, at_ns) VALUES ($1, $2, $3, $4, $5)`,
		string(sale.ID), string(sale.MenuID), sale.MenuName, sale.Quantity, toNanos(sale.At),
	)
	if err != nil {
		return fmt.Errorf("failed to append sale: %w", err)
	}
	return nil
}

func (s *Store) ScanSales(ctx context.Context, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return scanSales(ctx, s.pool, filter)
}

func (ts *txStore) ScanSales(ctx context.Context, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return scanSales(ctx, ts.tx, filter)
}

func scanSales(ctx context.Context, db querier, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return func(yield func(stock.SaleEntry, error) bool) {
		sales, err := querySales(ctx, db, filter)
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
}

func querySales(ctx context.Context, db querier, filter stock.SaleFilter) ([]stock.SaleEntry, error) {
	var args []any
	where := []string{"TRUE"}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.MenuID != "" {
		where = append(where, "menu_id = "+next(string(filter.MenuID)))
	}
	if !filter.Range.From.IsZero() {
		where = append(where, "at_ns >= "+next(toNanos(filter.Range.From)))
	}
	if !filter.Range.To.IsZero() {
		where = append(where, "at_ns <= "+next(toNanos(filter.Range.To)))
	}
	rows, err := db.Query(ctx, `
		SELECT id, menu_id, menu_name, quantity, at_ns
		FROM sales
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY at_ns ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []stock.SaleEntry
	for rows.Next() {
		var (
			sale       stock.SaleEntry
			id, menuID string
			atNanos    int64
		)
		if err := rows.Scan(&id, &menuID, &sale.MenuName, &sale.Quantity, &atNanos); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sale.ID = stock.SaleID(id)
		sale.MenuID = stock.MenuID(menuID)
		sale.At = fromNanos(atNanos)
		out = append(out, sale)
	}
	return out, rows.Err()
}

// =============================================================================
// CATALOG STORE
// =============================================================================

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

func (s *Store) SaveIngredient(ctx context.Context, ing stock.Ingredient) error {
	return saveIngredient(ctx, s.pool, ing)
}

func (ts *txStore) SaveIngredient(ctx context.Context, ing stock.Ingredient) error {
	return saveIngredient(ctx, ts.tx, ing)
}

func saveIngredient(ctx context.Context, db querier, ing stock.Ingredient) error {
	_, err := db.Exec(ctx, `
		INSERT INTO ingredients (id, name, category, unit, min_threshold, kind, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			unit = EXCLUDED.unit,
			min_threshold = EXCLUDED.min_threshold,
			kind = EXCLUDED.kind,
			updated_at = NOW()
	`, string(ing.ID), ing.Name, ing.Category, ing.Unit, ing.MinThreshold.String(), string(ing.Kind))
	if err != nil {
		return fmt.Errorf("failed to save ingredient: %w", err)
	}
	return nil
}

func (s *Store) DeleteIngredient(ctx context.Context, id stock.IngredientID) error {
	return deleteRow(ctx, s.pool, "ingredients", string(id))
}

func (ts *txStore) DeleteIngredient(ctx context.Context, id stock.IngredientID) error {
	return deleteRow(ctx, ts.tx, "ingredients", string(id))
}

func (s *Store) ListIngredients(ctx context.Context) ([]stock.Ingredient, error) {
	return listIngredients(ctx, s.pool)
}

func (ts *txStore) ListIngredients(ctx context.Context) ([]stock.Ingredient, error) {
	return listIngredients(ctx, ts.tx)
}

func listIngredients(ctx context.Context, db querier) ([]stock.Ingredient, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, category, unit, min_threshold::text, kind
		FROM ingredients
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	var out []stock.Ingredient
	for rows.Next() {
		var (
			ing               stock.Ingredient
			id, minimum, kind string
		)
		if err := rows.Scan(&id, &ing.Name, &ing.Category, &ing.Unit, &minimum, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ing.ID = stock.IngredientID(id)
		ing.Kind = stock.IngredientKind(kind)
		if ing.MinThreshold, err = decimal.NewFromString(minimum); err != nil {
			return nil, fmt.Errorf("ingredient %s: bad min_threshold: %w", id, err)
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (s *Store) SaveMenu(ctx context.Context, m stock.MenuItem) error {
	return saveMenu(ctx, s.pool, m)
}

func (ts *txStore) SaveMenu(ctx context.Context, m stock.MenuItem) error {
	return saveMenu(ctx, ts.tx, m)
}

func saveMenu(ctx context.Context, db querier, m stock.MenuItem) error {
	recipe, err := encodeRecipe(m.Recipe)
	if err != nil {
		return fmt.Errorf("failed to encode recipe: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO menus (id, name, price, recipe, updated_at)
		VALUES ($1, $2, $3::numeric, $4::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			recipe = EXCLUDED.recipe,
			updated_at = NOW()
	`, string(m.ID), m.Name, m.Price.String(), recipe)
	if err != nil {
		return fmt.Errorf("failed to save menu: %w", err)
	}
	return nil
}

func (s *Store) DeleteMenu(ctx context.Context, id stock.MenuID) error {
	return deleteRow(ctx, s.pool, "menus", string(id))
}

func (ts *txStore) DeleteMenu(ctx context.Context, id stock.MenuID) error {
	return deleteRow(ctx, ts.tx, "menus", string(id))
}

func (s *Store) ListMenus(ctx context.Context) ([]stock.MenuItem, error) {
	return listMenus(ctx, s.pool)
}

func (ts *txStore) ListMenus(ctx context.Context) ([]stock.MenuItem, error) {
	return listMenus(ctx, ts.tx)
}

func listMenus(ctx context.Context, db querier) ([]stock.MenuItem, error) {
	rows, err := db.Query(ctx, `SELECT id, name, price::text, recipe::text FROM menus ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menus: %w", err)
	}
	defer rows.Close()

	var out []stock.MenuItem
	for rows.Next() {
		var (
			m                 stock.MenuItem
			id, price, recipe string
		)
		if err := rows.Scan(&id, &m.Name, &price, &recipe); err != nil {
			return nil, fmt.Errorf("failed to scan menu: %w", err)
		}
		m.ID = stock.MenuID(id)
		if m.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("menu %s: bad price: %w", id, err)
		}
		if m.Recipe, err = decodeRecipe(recipe); err != nil {
			return nil, fmt.Errorf("menu %s: bad recipe: %w", id, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveBatch(ctx context.Context, b stock.BatchRecipe) error {
	return saveBatch(ctx, s.pool, b)
}

func (ts *txStore) SaveBatch(ctx context.Context, b stock.BatchRecipe) error {
	return saveBatch(ctx, ts.tx, b)
}

func saveBatch(ctx context.Context, db querier, b stock.BatchRecipe) error {
	recipe, err := encodeRecipe(b.Recipe)
	if err != nil {
		return fmt.Errorf("failed to encode recipe: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO batch_recipes (id, name, target_id, yield, recipe, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			target_id = EXCLUDED.target_id,
			yield = EXCLUDED.yield,
			recipe = EXCLUDED.recipe,
			updated_at = NOW()
	`, string(b.ID), b.Name, string(b.TargetID), b.Yield.String(), recipe)
	if err != nil {
		return fmt.Errorf("failed to save batch recipe: %w", err)
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id stock.BatchID) error {
	return deleteRow(ctx, s.pool, "batch_recipes", string(id))
}

func (ts *txStore) DeleteBatch(ctx context.Context, id stock.BatchID) error {
	return deleteRow(ctx, ts.tx, "batch_recipes", string(id))
}

func (s *Store) ListBatches(ctx context.Context) ([]stock.BatchRecipe, error) {
	return listBatches(ctx, s.pool)
}

func (ts *txStore) ListBatches(ctx context.Context) ([]stock.BatchRecipe, error) {
	return listBatches(ctx, ts.tx)
}

func listBatches(ctx context.Context, db querier) ([]stock.BatchRecipe, error) {
	rows, err := db.Query(ctx, `SELECT id, name, target_id, yield::text, recipe::text FROM batch_recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch recipes: %w", err)
	}
	defer rows.Close()

	var out []stock.BatchRecipe
	for rows.Next() {
		var (
			b                         stock.BatchRecipe
			id, target, yield, recipe string
		)
		if err := rows.Scan(&id, &b.Name, &target, &yield, &recipe); err != nil {
			return nil, fmt.Errorf("failed to scan batch recipe: %w", err)
		}
		b.ID = stock.BatchID(id)
		b.TargetID = stock.IngredientID(target)
		if b.Yield, err = decimal.NewFromString(yield); err != nil {
			return nil, fmt.Errorf("batch %s: bad yield: %w", id, err)
		}
		if b.Recipe, err = decodeRecipe(recipe); err != nil {
			return nil, fmt.Errorf("batch %s: bad recipe: %w", id, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// deleteRow removes a catalog row. Only catalog tables are passed in.
func deleteRow(ctx context.Context, db querier, table, id string) error {
	if _, err := db.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}
