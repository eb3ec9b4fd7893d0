/*
ledger.go - Append-only movement log

PURPOSE:
  The Ledger is the single source of truth for every quantity change.
  Balances are derived by folding movements (see projector.go); there is no
  stored quantity that could drift away from the log.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. Corrections are ADJUSTMENT movements.
  2. ORDERED: Seq is strictly increasing and At is non-decreasing across the
     whole log, even if the wall clock steps backwards.
  3. ATOMIC: All movements of one Batch (and its sale entry) become durable
     together or not at all.
  4. NO BUSINESS RULES: The Ledger rejects malformed movements only. Whether
     stock suffices is decided by the resolver and the coordinator.

COMMIT PROTOCOL:
  Commit holds the ledger mutex while it stamps and writes a batch, and runs
  the onDurable hook before releasing it. The coordinator passes the
  projector's apply there, so no reader that also takes the mutex (Verify,
  Rebuild) can observe the log and the cache disagreeing.

SEE ALSO:
  - store.go: MovementStore and SalesStore
  - projector.go: Folds committed movements into balances
  - coordinator.go: The only caller that keeps the projector in sync
*/
package stock

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Batch is the unit of atomic commit: the movements of one intent plus the
// sales log entry of a sale.
type Batch struct {
	Movements []Movement
	Sale      *SaleEntry

	// register is written in the same store transaction as the movements,
	// ahead of them. Its movements pass the unknown-ingredient check.
	register *Ingredient
}

// Ledger is the Ledger component.
type Ledger struct {
	store  Store
	exists func(IngredientID) bool
	clock  *monotonic

	mu  sync.Mutex
	seq int64
}

// NewLedger creates a ledger over store. exists decides which ingredient ids
// a movement may name.
func NewLedger(store Store, exists func(IngredientID) bool, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	return &Ledger{
		store:  store,
		exists: exists,
		clock:  &monotonic{clock: clock},
	}
}

// Init seeds the sequence counter and the clock from the persisted log.
func (l *Ledger) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resyncLocked(ctx)
}

func (l *Ledger) resyncLocked(ctx context.Context) error {
	last, err := l.store.LastSequence(ctx)
	if err != nil {
		return persistence("read last sequence", err)
	}
	l.seq = last
	if last == 0 {
		return nil
	}
	for m, err := range l.store.ScanMovements(ctx, MovementFilter{AfterSeq: last - 1}) {
		if err != nil {
			return persistence("read last movement", err)
		}
		l.clock.observe(m.At)
	}
	return nil
}

// Sequence returns the Seq of the most recent committed movement.
func (l *Ledger) Sequence() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Append commits a single movement. It does not touch the projector; use the
// coordinator for anything that must be reflected in balances.
func (l *Ledger) Append(ctx context.Context, m Movement) (Movement, error) {
	b, err := l.Commit(ctx, Batch{Movements: []Movement{m}}, nil)
	if err != nil {
		return Movement{}, err
	}
	return b.Movements[0], nil
}

// Commit validates, stamps and durably writes a batch. All movements of the
// batch share one timestamp; the sale entry gets the same one. onDurable is
// called with the stamped batch after the store transaction committed and
// before any other commit can start.
func (l *Ledger) Commit(ctx context.Context, b Batch, onDurable func(Batch)) (Batch, error) {
	if len(b.Movements) == 0 && b.Sale == nil {
		return Batch{}, &InvalidInputError{Field: "batch", Reason: "must not be empty", movement: true}
	}
	for _, m := range b.Movements {
		if err := m.validate(); err != nil {
			return Batch{}, err
		}
		if b.register != nil && m.IngredientID == b.register.ID {
			continue
		}
		if l.exists != nil && !l.exists(m.IngredientID) {
			return Batch{}, &InvalidInputError{Field: "ingredient_id", Reason: "unknown ingredient " + string(m.IngredientID), movement: true}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.clock.next()
	stamped := Batch{Movements: slices.Clone(b.Movements)}
	seq := l.seq
	for i := range stamped.Movements {
		seq++
		m := &stamped.Movements[i]
		if m.ID == "" {
			m.ID = MovementID(uuid.NewString())
		}
		m.Seq = seq
		m.At = at
	}
	if b.Sale != nil {
		sale := *b.Sale
		if sale.ID == "" {
			sale.ID = SaleID(uuid.NewString())
		}
		sale.At = at
		stamped.Sale = &sale
	}

	err := l.store.WithTx(ctx, func(tx Store) error {
		if b.register != nil {
			if err := tx.SaveIngredient(ctx, *b.register); err != nil {
				return err
			}
		}
		if len(stamped.Movements) > 0 {
			if err := tx.AppendMovements(ctx, stamped.Movements); err != nil {
				return err
			}
		}
		if stamped.Sale != nil {
			if err := tx.AppendSale(ctx, *stamped.Sale); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			// Another writer shares the store; pick up its sequence numbers.
			if rerr := l.resyncLocked(ctx); rerr != nil {
				return Batch{}, rerr
			}
			return Batch{}, err
		}
		return Batch{}, persistence("append movements", err)
	}

	l.seq = seq
	if onDurable != nil {
		onDurable(stamped)
	}
	return stamped, nil
}

// Query returns a lazy, restartable sequence of movements in log order.
func (l *Ledger) Query(ctx context.Context, filter MovementFilter) iter.Seq2[Movement, error] {
	if err := filter.Range.validate(); err != nil {
		return func(yield func(Movement, error) bool) {
			yield(Movement{}, err)
		}
	}
	scan := l.store.ScanMovements(ctx, filter)
	return func(yield func(Movement, error) bool) {
		for m, err := range scan {
			if err != nil {
				yield(Movement{}, persistence("scan movements", err))
				return
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

// exclusive runs fn while no commit is in flight.
func (l *Ledger) exclusive(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
