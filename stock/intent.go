package stock

import (
	"fmt"
	"time"
)

// =============================================================================
// INTENT - One high-level request and its lifecycle
// =============================================================================

type IntentKind string

const (
	IntentRecordSale         IntentKind = "RECORD_SALE"
	IntentProduceBatch       IntentKind = "PRODUCE_BATCH"
	IntentAdjustStock        IntentKind = "ADJUST_STOCK"
	IntentRegisterIngredient IntentKind = "REGISTER_INGREDIENT"
	IntentRestock            IntentKind = "RESTOCK"
)

// IntentState is the lifecycle of an intent.
//
//	PENDING -> RESOLVING -> SUFFICIENT -> COMMITTING -> COMMITTED
//	                     -> INSUFFICIENT -> REJECTED
//	                     -> RESOLVE_ERROR -> FAILED
//	COMMITTING -> FAILED                  (store or conflict failure)
//	COMMITTING -> RESOLVING               (single internal re-resolve on conflict)
type IntentState string

const (
	StatePending      IntentState = "PENDING"
	StateResolving    IntentState = "RESOLVING"
	StateSufficient   IntentState = "SUFFICIENT"
	StateInsufficient IntentState = "INSUFFICIENT"
	StateResolveError IntentState = "RESOLVE_ERROR"
	StateCommitting   IntentState = "COMMITTING"
	StateCommitted    IntentState = "COMMITTED"
	StateRejected     IntentState = "REJECTED"
	StateFailed       IntentState = "FAILED"
)

var intentTransitions = map[IntentState][]IntentState{
	StatePending:      {StateResolving},
	StateResolving:    {StateSufficient, StateInsufficient, StateResolveError},
	StateSufficient:   {StateCommitting},
	StateInsufficient: {StateRejected},
	StateResolveError: {StateFailed},
	StateCommitting:   {StateCommitted, StateFailed, StateResolving},
}

// Terminal reports whether no further transition is possible.
func (s IntentState) Terminal() bool {
	return s == StateCommitted || s == StateRejected || s == StateFailed
}

func (s IntentState) CanTransitionTo(next IntentState) bool {
	for _, allowed := range intentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Intent records what happened to one request. The coordinator owns it until
// it reaches a terminal state.
type Intent struct {
	ID        string
	Kind      IntentKind
	State     IntentState
	Attempts  int
	Expansion Expansion
	Committed Batch
	Err       error
	StartedAt time.Time
	History   []IntentState
}

func (i *Intent) transition(next IntentState) {
	if !i.State.CanTransitionTo(next) {
		panic(fmt.Sprintf("intent %s: illegal transition %s -> %s", i.ID, i.State, next))
	}
	i.State = next
	i.History = append(i.History, next)
}
