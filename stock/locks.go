package stock

import (
	"slices"
	"sync"
)

// lockTable hands out one exclusive lock per ingredient. Intents over
// disjoint ingredient sets proceed in parallel; overlapping ones serialize.
type lockTable struct {
	mu    sync.Mutex
	locks map[IngredientID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[IngredientID]*lockEntry)}
}

// Lock acquires every id in sorted order, so two callers can never wait on
// each other. The returned func releases them.
func (t *lockTable) Lock(ids ...IngredientID) (unlock func()) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	entries := make([]*lockEntry, len(ids))
	t.mu.Lock()
	for i, id := range ids {
		e, ok := t.locks[id]
		if !ok {
			e = &lockEntry{}
			t.locks[id] = e
		}
		e.refs++
		entries[i] = e
	}
	t.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}
	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		t.mu.Lock()
		for i, id := range ids {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(t.locks, id)
			}
		}
		t.mu.Unlock()
	}
}
