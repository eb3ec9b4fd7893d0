// Package store provides an in-memory stock.Store.
package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"

	"github.com/warp/kitchen-stock/stock"
)

// pageSize bounds how many movements a scan copies per lock acquisition.
const pageSize = 256

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	movements   []stock.Movement // ordered by Seq
	sales       []stock.SaleEntry
	ingredients map[stock.IngredientID]stock.Ingredient
	menus       map[stock.MenuID]stock.MenuItem
	batches     map[stock.BatchID]stock.BatchRecipe
}

func NewMemory() *Memory {
	return &Memory{
		ingredients: make(map[stock.IngredientID]stock.Ingredient),
		menus:       make(map[stock.MenuID]stock.MenuItem),
		batches:     make(map[stock.BatchID]stock.BatchRecipe),
	}
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// AppendMovements adds movements atomically. Append-only.
func (m *Memory) AppendMovements(_ context.Context, ms []stock.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementsLocked(ms)
}

func (m *Memory) appendMovementsLocked(ms []stock.Movement) error {
	// Check the whole batch first (atomic check)
	last := m.lastSeqLocked()
	for _, mv := range ms {
		if mv.Seq <= last {
			return fmt.Errorf("%w: sequence %d already written", stock.ErrConcurrentModification, mv.Seq)
		}
		last = mv.Seq
	}
	m.movements = append(m.movements, ms...)
	return nil
}

func (m *Memory) lastSeqLocked() int64 {
	if len(m.movements) == 0 {
		return 0
	}
	return m.movements[len(m.movements)-1].Seq
}

func (m *Memory) LastSequence(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeqLocked(), nil
}

// ScanMovements pages through the log, copying at most pageSize matches per
// read lock so that writers are never blocked by a slow consumer.
func (m *Memory) ScanMovements(_ context.Context, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return func(yield func(stock.Movement, error) bool) {
		cursor := filter.AfterSeq
		for {
			m.mu.RLock()
			page := m.pageLocked(filter, cursor)
			m.mu.RUnlock()

			for _, mv := range page {
				if !yield(mv, nil) {
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

func (m *Memory) pageLocked(filter stock.MovementFilter, after int64) []stock.Movement {
	i := sort.Search(len(m.movements), func(i int) bool {
		return m.movements[i].Seq > after
	})
	var page []stock.Movement
	for ; i < len(m.movements) && len(page) < pageSize; i++ {
		if filter.Matches(m.movements[i]) {
			page = append(page, m.movements[i])
		}
	}
	return page
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SaveIngredient(_ context.Context, ing stock.Ingredient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingredients[ing.ID] = ing
	return nil
}

func (m *Memory) DeleteIngredient(_ context.Context, id stock.IngredientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ingredients, id)
	return nil
}

func (m *Memory) ListIngredients(_ context.Context) ([]stock.Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return values(m.ingredients), nil
}

func (m *Memory) SaveMenu(_ context.Context, menu stock.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	menu.Recipe = slices.Clone(menu.Recipe)
	m.menus[menu.ID] = menu
	return nil
}

func (m *Memory) DeleteMenu(_ context.Context, id stock.MenuID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.menus, id)
	return nil
}

func (m *Memory) ListMenus(_ context.Context) ([]stock.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return values(m.menus), nil
}

func (m *Memory) SaveBatch(_ context.Context, b stock.BatchRecipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Recipe = slices.Clone(b.Recipe)
	m.batches[b.ID] = b
	return nil
}

func (m *Memory) DeleteBatch(_ context.Context, id stock.BatchID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, id)
	return nil
}

func (m *Memory) ListBatches(_ context.Context) ([]stock.BatchRecipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return values(m.batches), nil
}

func values[K comparable, V any](in map[K]V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

// =============================================================================
// SALES LOG
// =============================================================================

func (m *Memory) AppendSale(_ context.Context, s stock.SaleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, s)
	return nil
}

func (m *Memory) ScanSales(_ context.Context, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return func(yield func(stock.SaleEntry, error) bool) {
		m.mu.RLock()
		matched := m.salesLocked(filter)
		m.mu.RUnlock()
		for _, s := range matched {
			if !yield(s, nil) {
				return
			}
		}
	}
}

func (m *Memory) salesLocked(filter stock.SaleFilter) []stock.SaleEntry {
	var out []stock.SaleEntry
	for _, s := range m.sales {
		if filter.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(stock.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Snapshot current state
	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		// Rollback
		m.restore(snapshot)
		return err
	}

	// Commit (already done via direct writes)
	return nil
}

type memorySnapshot struct {
	movements   int
	sales       int
	ingredients map[stock.IngredientID]stock.Ingredient
	menus       map[stock.MenuID]stock.MenuItem
	batches     map[stock.BatchID]stock.BatchRecipe
}

// snapshot copies the mutable catalog maps. The logs are append-only, so
// their lengths are enough to roll them back.
func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		movements:   len(m.movements),
		sales:       len(m.sales),
		ingredients: make(map[stock.IngredientID]stock.Ingredient, len(m.ingredients)),
		menus:       make(map[stock.MenuID]stock.MenuItem, len(m.menus)),
		batches:     make(map[stock.BatchID]stock.BatchRecipe, len(m.batches)),
	}
	for k, v := range m.ingredients {
		s.ingredients[k] = v
	}
	for k, v := range m.menus {
		s.menus[k] = v
	}
	for k, v := range m.batches {
		s.batches[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.movements = m.movements[:s.movements]
	m.sales = m.sales[:s.sales]
	m.ingredients = s.ingredients
	m.menus = s.menus
	m.batches = s.batches
}

// txMemoryView operates on the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) AppendMovements(_ context.Context, ms []stock.Movement) error {
	return tv.parent.appendMovementsLocked(ms)
}

func (tv *txMemoryView) LastSequence(_ context.Context) (int64, error) {
	return tv.parent.lastSeqLocked(), nil
}

func (tv *txMemoryView) ScanMovements(_ context.Context, filter stock.MovementFilter) iter.Seq2[stock.Movement, error] {
	return func(yield func(stock.Movement, error) bool) {
		cursor := filter.AfterSeq
		for {
			page := tv.parent.pageLocked(filter, cursor)
			for _, mv := range page {
				if !yield(mv, nil) {
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

func (tv *txMemoryView) SaveIngredient(_ context.Context, ing stock.Ingredient) error {
	tv.parent.ingredients[ing.ID] = ing
	return nil
}

func (tv *txMemoryView) DeleteIngredient(_ context.Context, id stock.IngredientID) error {
	delete(tv.parent.ingredients, id)
	return nil
}

func (tv *txMemoryView) ListIngredients(_ context.Context) ([]stock.Ingredient, error) {
	return values(tv.parent.ingredients), nil
}

func (tv *txMemoryView) SaveMenu(_ context.Context, menu stock.MenuItem) error {
	menu.Recipe = slices.Clone(menu.Recipe)
	tv.parent.menus[menu.ID] = menu
	return nil
}

func (tv *txMemoryView) DeleteMenu(_ context.Context, id stock.MenuID) error {
	delete(tv.parent.menus, id)
	return nil
}

func (tv *txMemoryView) ListMenus(_ context.Context) ([]stock.MenuItem, error) {
	return values(tv.parent.menus), nil
}

func (tv *txMemoryView) SaveBatch(_ context.Context, b stock.BatchRecipe) error {
	b.Recipe = slices.Clone(b.Recipe)
	tv.parent.batches[b.ID] = b
	return nil
}

func (tv *txMemoryView) DeleteBatch(_ context.Context, id stock.BatchID) error {
	delete(tv.parent.batches, id)
	return nil
}

func (tv *txMemoryView) ListBatches(_ context.Context) ([]stock.BatchRecipe, error) {
	return values(tv.parent.batches), nil
}

func (tv *txMemoryView) AppendSale(_ context.Context, s stock.SaleEntry) error {
	tv.parent.sales = append(tv.parent.sales, s)
	return nil
}

func (tv *txMemoryView) ScanSales(_ context.Context, filter stock.SaleFilter) iter.Seq2[stock.SaleEntry, error] {
	return func(yield func(stock.SaleEntry, error) bool) {
		for _, s := range tv.parent.salesLocked(filter) {
			if !yield(s, nil) {
				return
			}
		}
	}
}

// Nested transactions are flattened into the outer one.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(stock.Store) error) error {
	return fn(tv)
}
