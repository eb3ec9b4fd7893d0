/*
coordinator.go - All-or-nothing commit of resolved intents

PURPOSE:
  The Coordinator drives one intent through its state machine: resolve,
  re-check under lock, commit to the Ledger and project, or reject.

CHECK-THEN-ACT:
  Resolution reads balances without holding any lock, so by the time the
  intent commits they may have moved. Under the per-ingredient locks the
  Coordinator re-reads the live balances and:

    still sufficient     -> rebase BalanceAfter (and adjustment deltas) on
                            the live values and commit
    no longer sufficient -> ErrConcurrentModification

  A conflict is retried once by re-resolving against fresh balances, which
  normally turns it into a clean InsufficientStock rejection. A second
  conflict surfaces to the caller.

FAILURE:
  The ledger writes a batch in one store transaction and the projector is
  only updated after it committed. A store failure leaves both untouched.

AFTER COMMIT:
  Events are published outside the locks. A publisher failure is logged and
  never fails the intent; the commit is already durable.

SEE ALSO:
  - resolver.go: Builds the Expansion
  - intent.go: State machine
  - locks.go: Per-ingredient lock table
*/
package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxAttempts bounds internal re-resolution after a conflict.
const maxAttempts = 2

// Coordinator is the Transaction Coordinator component.
type Coordinator struct {
	catalog   *Catalog
	ledger    *Ledger
	projector *Projector
	locks     *lockTable
	publisher Publisher
	tracer    trace.Tracer
	log       zerolog.Logger
}

func NewCoordinator(catalog *Catalog, ledger *Ledger, projector *Projector, publisher Publisher, tracer trace.Tracer, log zerolog.Logger) *Coordinator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Coordinator{
		catalog:   catalog,
		ledger:    ledger,
		projector: projector,
		locks:     newLockTable(),
		publisher: publisher,
		tracer:    tracer,
		log:       log,
	}
}

// Execute resolves and commits one intent. resolve is called again on an
// internal retry, so it must re-read balances each time. The returned Intent
// is always non-nil and in a terminal state.
func (c *Coordinator) Execute(ctx context.Context, kind IntentKind, resolve func() (Expansion, error)) (*Intent, error) {
	intent := &Intent{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     StatePending,
		StartedAt: time.Now(),
		History:   []IntentState{StatePending},
	}

	ctx, span := c.tracer.Start(ctx, "stock."+strings.ToLower(string(kind)),
		trace.WithAttributes(
			attribute.String("intent.id", intent.ID),
			attribute.String("intent.kind", string(kind)),
		))
	defer span.End()

	err := c.run(ctx, intent, resolve)

	span.SetAttributes(
		attribute.String("intent.state", string(intent.State)),
		attribute.Int("intent.attempts", intent.Attempts),
		attribute.Int("intent.movements", len(intent.Committed.Movements)),
	)
	if err != nil && !IsClientError(err) && !IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.logOutcome(intent)
	return intent, err
}

func (c *Coordinator) run(ctx context.Context, intent *Intent, resolve func() (Expansion, error)) error {
	for {
		intent.Attempts++
		intent.transition(StateResolving)

		exp, err := resolve()
		intent.Expansion = exp
		var short *InsufficientStockError
		switch {
		case errors.As(err, &short):
			intent.transition(StateInsufficient)
			intent.transition(StateRejected)
			intent.Err = err
			return err
		case err != nil:
			intent.transition(StateResolveError)
			intent.transition(StateFailed)
			intent.Err = err
			return err
		}
		intent.transition(StateSufficient)
		intent.transition(StateCommitting)

		committed, before, err := c.commit(ctx, exp)
		if errors.Is(err, ErrConcurrentModification) && intent.Attempts < maxAttempts {
			c.log.Debug().
				Str("intent", string(intent.Kind)).
				Str("intent_id", intent.ID).
				Err(err).
				Msg("re-resolving after concurrent modification")
			continue
		}
		if err != nil {
			intent.transition(StateFailed)
			intent.Err = err
			return err
		}

		intent.Committed = committed
		intent.transition(StateCommitted)
		c.publish(ctx, intent, before)
		return nil
	}
}

// commit re-validates exp against live balances under the ingredient locks
// and writes it. It returns the balances seen before the commit.
func (c *Coordinator) commit(ctx context.Context, exp Expansion) (Batch, map[IngredientID]decimal.Decimal, error) {
	ids := exp.Ingredients()
	unlock := c.locks.Lock(ids...)
	defer unlock()

	live := c.projector.Snapshot(ids...)
	if short := exp.Shortfalls(live); len(short) > 0 {
		return Batch{}, nil, fmt.Errorf("%w: %s now has %s %s, needs %s",
			ErrConcurrentModification, short[0].Name, short[0].Available, short[0].Unit, short[0].Required)
	}

	committed, err := c.ledger.Commit(ctx, Batch{Movements: exp.Movements(live), Sale: exp.Sale, register: exp.register}, c.projector.apply)
	if errors.Is(err, ErrConcurrentModification) {
		// The store saw a writer this process does not know about.
		if cerr := c.projector.CatchUp(ctx, c.ledger); cerr != nil {
			return Batch{}, nil, cerr
		}
	}
	if err != nil {
		return Batch{}, nil, err
	}
	if exp.register != nil {
		c.catalog.installIngredient(*exp.register)
	}
	return committed, live, nil
}

// lock exposes the ingredient locks to catalog operations that must not
// interleave with a commit on the same ingredient.
func (c *Coordinator) lock(ids ...IngredientID) func() {
	return c.locks.Lock(ids...)
}

// =============================================================================
// EVENTS & LOGGING
// =============================================================================

func (c *Coordinator) publish(ctx context.Context, intent *Intent, before map[IngredientID]decimal.Decimal) {
	b := intent.Committed
	if len(b.Movements) == 0 {
		return
	}
	at := b.Movements[0].At
	events := []Event{{
		Type:      EventMovementsCommitted,
		IntentID:  intent.ID,
		Intent:    intent.Kind,
		At:        at,
		Movements: b.Movements,
		Sale:      b.Sale,
	}}
	for _, m := range b.Movements {
		ing, err := c.catalog.Ingredient(m.IngredientID)
		if err != nil {
			continue
		}
		now := Classify(m.BalanceAfter, ing.MinThreshold)
		if now == StatusOK || now == Classify(before[m.IngredientID], ing.MinThreshold) {
			continue
		}
		events = append(events, Event{
			Type:         EventStockLow,
			IntentID:     intent.ID,
			Intent:       intent.Kind,
			At:           at,
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Quantity:     m.BalanceAfter,
			MinThreshold: ing.MinThreshold,
			Status:       now,
		})
	}
	for _, e := range events {
		if err := c.publisher.Publish(ctx, e); err != nil {
			c.log.Warn().
				Err(err).
				Str("event", string(e.Type)).
				Str("intent_id", intent.ID).
				Msg("publish failed")
		}
	}
}

func (c *Coordinator) logOutcome(intent *Intent) {
	ev := c.log.Info()
	if intent.State == StateCommitted {
		ev = c.log.Debug()
	}
	ids := intent.Expansion.Ingredients()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	ev = ev.
		Str("intent", string(intent.Kind)).
		Str("intent_id", intent.ID).
		Str("state", string(intent.State)).
		Strs("ingredients", names).
		Int("attempts", intent.Attempts).
		Dur("took", time.Since(intent.StartedAt))
	if intent.Err != nil {
		ev = ev.Err(intent.Err)
	}
	ev.Msg("intent finished")
}
