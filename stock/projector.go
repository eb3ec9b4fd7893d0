/*
projector.go - Cached balances folded from the ledger

PURPOSE:
  The Projector keeps, per ingredient, the fold of all its committed
  movements so reads never replay the log. It is rebuilt from the Ledger on
  startup and can be checked against a fresh replay at any time.

FOLD:
  INITIAL, RESTOCK, BATCH_PRODUCTION   balance += amount
  DEDUCTION                            balance -= amount
  ADJUSTMENT                           balance += amount (signed delta)

  An ADJUSTMENT records newQuantity - oldBalance as its amount, so adding it
  lands exactly on the counted quantity and replay stays a pure sum.

VISIBILITY:
  apply updates every balance of a batch under one write lock. Readers see
  either none or all of a commit. It is only ever called after the store
  transaction committed (Ledger.Commit's onDurable hook), so a failed write
  never moves a cached balance.

SEE ALSO:
  - ledger.go: Commit protocol and exclusive()
  - coordinator.go: Reads live balances under the ingredient locks
*/
package stock

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Projector is the Balance Projector component.
type Projector struct {
	mu       sync.RWMutex
	balances map[IngredientID]decimal.Decimal
	counts   map[IngredientID]int
	lastSeq  int64
}

func NewProjector() *Projector {
	return &Projector{
		balances: make(map[IngredientID]decimal.Decimal),
		counts:   make(map[IngredientID]int),
	}
}

// CurrentBalance returns the projected quantity, zero if the ingredient has
// no movements yet.
func (p *Projector) CurrentBalance(id IngredientID) decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[id]
}

// Snapshot returns a consistent view of several balances.
func (p *Projector) Snapshot(ids ...IngredientID) map[IngredientID]decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[IngredientID]decimal.Decimal, len(ids))
	for _, id := range ids {
		out[id] = p.balances[id]
	}
	return out
}

// HasHistory reports whether any movement was ever committed for id.
func (p *Projector) HasHistory(id IngredientID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counts[id] > 0
}

// ApplyAndProject folds a committed batch and returns the new balance of
// every ingredient it touched.
func (p *Projector) ApplyAndProject(ms []Movement) map[IngredientID]decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[IngredientID]decimal.Decimal, len(ms))
	for _, m := range ms {
		b := p.balances[m.IngredientID].Add(m.Delta())
		p.balances[m.IngredientID] = b
		p.counts[m.IngredientID]++
		out[m.IngredientID] = b
		if m.Seq > p.lastSeq {
			p.lastSeq = m.Seq
		}
	}
	return out
}

func (p *Projector) apply(b Batch) {
	p.ApplyAndProject(b.Movements)
}

// =============================================================================
// REPLAY
// =============================================================================

// replay folds the whole ledger. bad collects movements whose recorded
// BalanceAfter disagrees with the running fold.
func replay(ctx context.Context, l *Ledger) (balances map[IngredientID]decimal.Decimal, counts map[IngredientID]int, last int64, bad []Movement, err error) {
	balances = make(map[IngredientID]decimal.Decimal)
	counts = make(map[IngredientID]int)
	for m, err := range l.Query(ctx, MovementFilter{}) {
		if err != nil {
			return nil, nil, 0, nil, err
		}
		last = m.Seq
		b := balances[m.IngredientID].Add(m.Delta())
		balances[m.IngredientID] = b
		counts[m.IngredientID]++
		if !b.Equal(m.BalanceAfter) {
			bad = append(bad, m)
		}
	}
	return balances, counts, last, bad, nil
}

// Rebuild replaces the cache with a full replay of the ledger.
func (p *Projector) Rebuild(ctx context.Context, l *Ledger) error {
	return l.exclusive(func() error {
		balances, counts, last, _, err := replay(ctx, l)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.balances = balances
		p.counts = counts
		p.lastSeq = last
		p.mu.Unlock()
		return nil
	})
}

// CatchUp folds movements written by another process sharing the store.
// It is a no-op when this process is the only writer.
func (p *Projector) CatchUp(ctx context.Context, l *Ledger) error {
	return l.exclusive(func() error {
		p.mu.RLock()
		after := p.lastSeq
		p.mu.RUnlock()

		var missed []Movement
		for m, err := range l.Query(ctx, MovementFilter{AfterSeq: after}) {
			if err != nil {
				return err
			}
			missed = append(missed, m)
		}
		if len(missed) > 0 {
			p.ApplyAndProject(missed)
		}
		return nil
	})
}

// Drift is one disagreement found by Verify.
type Drift struct {
	IngredientID IngredientID
	Projected    decimal.Decimal // cached value
	Replayed     decimal.Decimal // fold of the ledger
	BadSeqs      []int64         // movements whose BalanceAfter is wrong
}

// Verify replays the ledger and compares it with the cache and with every
// movement's BalanceAfter. An empty result means the two agree.
func (p *Projector) Verify(ctx context.Context, l *Ledger) ([]Drift, error) {
	var drifts []Drift
	err := l.exclusive(func() error {
		balances, _, _, bad, err := replay(ctx, l)
		if err != nil {
			return err
		}

		p.mu.RLock()
		defer p.mu.RUnlock()

		byID := make(map[IngredientID]*Drift)
		get := func(id IngredientID) *Drift {
			d, ok := byID[id]
			if !ok {
				d = &Drift{IngredientID: id, Projected: p.balances[id], Replayed: balances[id]}
				byID[id] = d
			}
			return d
		}
		for id, b := range balances {
			if !b.Equal(p.balances[id]) {
				get(id)
			}
		}
		for id, b := range p.balances {
			if _, ok := balances[id]; !ok && !b.IsZero() {
				get(id)
			}
		}
		for _, m := range bad {
			d := get(m.IngredientID)
			d.BadSeqs = append(d.BadSeqs, m.Seq)
		}
		for _, d := range byID {
			drifts = append(drifts, *d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].IngredientID < drifts[j].IngredientID })
	return drifts, nil
}
