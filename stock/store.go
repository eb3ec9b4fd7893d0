/*
store.go - Persistence interface for the catalog, the ledger and the sales log

PURPOSE:
  Defines the boundary between the engine and whatever medium holds its state.
  Implementations: stock/store (memory), store/sqlite, store/postgres.

APPEND-ONLY CONTRACT:
  MovementStore and SalesStore have no Update or Delete. Corrections are new
  ADJUSTMENT movements. Only catalog definitions are mutable.

ATOMIC BATCHES:
  WithTx runs fn against a transactional view. The movements of one intent
  and its sales log entry are written inside a single WithTx, so either all
  of them become durable or none do.

SEE ALSO:
  - ledger.go: Stamps and validates movements before they reach the store
  - catalog.go: Loads and writes definitions through CatalogStore
*/
package stock

import (
	"context"
	"iter"
)

// =============================================================================
// MOVEMENTS
// =============================================================================

// MovementFilter narrows a ledger scan. Zero values match everything.
type MovementFilter struct {
	IngredientID IngredientID
	Kinds        []MovementKind
	Range        DateRange
	AfterSeq     int64 // exclusive lower bound on Seq
}

// Matches applies the filter in memory. SQL stores push it into the query.
func (f MovementFilter) Matches(m Movement) bool {
	if f.IngredientID != "" && m.IngredientID != f.IngredientID {
		return false
	}
	if m.Seq <= f.AfterSeq {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == m.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.Range.Contains(m.At)
}

// MovementStore persists movements. APPEND-ONLY. No Update, No Delete.
type MovementStore interface {
	// AppendMovements persists already-stamped movements atomically.
	AppendMovements(ctx context.Context, ms []Movement) error

	// ScanMovements yields matching movements ordered by Seq. The sequence is
	// lazy and may be ranged over again to restart from the beginning.
	ScanMovements(ctx context.Context, filter MovementFilter) iter.Seq2[Movement, error]

	// LastSequence returns the highest Seq written, 0 for an empty ledger.
	LastSequence(ctx context.Context) (int64, error)
}

// =============================================================================
// CATALOG
// =============================================================================

// CatalogStore persists bill-of-materials definitions. Deleting a missing
// record is not an error.
type CatalogStore interface {
	SaveIngredient(ctx context.Context, ing Ingredient) error
	DeleteIngredient(ctx context.Context, id IngredientID) error
	ListIngredients(ctx context.Context) ([]Ingredient, error)

	SaveMenu(ctx context.Context, m MenuItem) error
	DeleteMenu(ctx context.Context, id MenuID) error
	ListMenus(ctx context.Context) ([]MenuItem, error)

	SaveBatch(ctx context.Context, b BatchRecipe) error
	DeleteBatch(ctx context.Context, id BatchID) error
	ListBatches(ctx context.Context) ([]BatchRecipe, error)
}

// =============================================================================
// SALES LOG
// =============================================================================

// SaleFilter narrows a sales log scan.
type SaleFilter struct {
	MenuID MenuID
	Range  DateRange
}

func (f SaleFilter) Matches(s SaleEntry) bool {
	if f.MenuID != "" && s.MenuID != f.MenuID {
		return false
	}
	return f.Range.Contains(s.At)
}

// SalesStore persists the sales log. APPEND-ONLY.
type SalesStore interface {
	AppendSale(ctx context.Context, s SaleEntry) error

	// ScanSales yields matching entries oldest first.
	ScanSales(ctx context.Context, filter SaleFilter) iter.Seq2[SaleEntry, error]
}

// =============================================================================
// STORE
// =============================================================================

// Store is the full persistence surface used by the engine.
type Store interface {
	MovementStore
	CatalogStore
	SalesStore

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
