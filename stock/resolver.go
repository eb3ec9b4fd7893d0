/*
resolver.go - Intent to movement expansion

PURPOSE:
  Turns a high-level intent into a checked Expansion without committing it.
  The Resolver reads the Catalog and the current projected balances; it never
  writes either.

EXPANSION RULES:
  Sale (menu, n):          one DEDUCTION per ingredient, amount * n
  Batch (batch, m):        one DEDUCTION per sub-ingredient, amount * m
                           plus one BATCH_PRODUCTION of yield * m on the target
  Adjustment (id, q):      one ADJUSTMENT with amount q - current
  Initial stock (id, q):   one INITIAL of q
  Restock (id, q):         one RESTOCK of q

  Lines naming the same ingredient are merged first, so each ingredient gets
  at most one movement per intent.

NO CASCADE:
  A short PREPARED ingredient is reported as insufficient. Resolution never
  schedules production of it, for sales and batches alike.

SUFFICIENCY:
  required > available (beyond Epsilon) on any consumed line rejects the
  whole intent with InsufficientStockError listing every short line.

SEE ALSO:
  - coordinator.go: Re-checks the Expansion under lock and commits it
*/
package stock

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EXPANSION
// =============================================================================

// ExpansionLine is one planned movement plus the context it was planned in.
type ExpansionLine struct {
	IngredientID IngredientID
	Name         string
	Unit         string
	Kind         IngredientKind // carried for labeling only
	Movement     MovementKind
	Amount       decimal.Decimal // magnitude, or signed delta for ADJUSTMENT
	Target       decimal.Decimal // counted quantity, ADJUSTMENT only
	Available    decimal.Decimal // balance the line was resolved against
}

func (l ExpansionLine) consumes() bool { return l.Movement == MovementDeduction }

// Expansion is a resolved, not yet committed intent.
type Expansion struct {
	Intent    IntentKind
	Reference string // stamped on every movement
	Note      string
	Lines     []ExpansionLine
	Sale      *SaleEntry

	register *Ingredient // definition committed with the lines
}

// Ingredients returns the sorted, distinct ingredient ids the expansion
// touches. This is the lock set.
func (e Expansion) Ingredients() []IngredientID {
	ids := make([]IngredientID, 0, len(e.Lines))
	for _, l := range e.Lines {
		ids = append(ids, l.IngredientID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Shortfalls checks every consumed line against balances.
func (e Expansion) Shortfalls(balances map[IngredientID]decimal.Decimal) []Shortfall {
	var out []Shortfall
	for _, l := range e.Lines {
		if !l.consumes() {
			continue
		}
		available := balances[l.IngredientID]
		if exceeds(l.Amount, available) {
			out = append(out, Shortfall{
				IngredientID: l.IngredientID,
				Name:         l.Name,
				Unit:         l.Unit,
				Required:     l.Amount,
				Available:    available,
			})
		}
	}
	return out
}

// Movements materializes the lines against balances. ADJUSTMENT deltas are
// recomputed so that BalanceAfter is the counted quantity whatever the
// balance is at commit time.
func (e Expansion) Movements(balances map[IngredientID]decimal.Decimal) []Movement {
	running := make(map[IngredientID]decimal.Decimal, len(e.Lines))
	for id, b := range balances {
		running[id] = b
	}
	out := make([]Movement, 0, len(e.Lines))
	for _, l := range e.Lines {
		m := Movement{
			IngredientID: l.IngredientID,
			Kind:         l.Movement,
			Amount:       l.Amount,
			Note:         e.Note,
			Reference:    e.Reference,
		}
		if l.Movement == MovementAdjustment {
			m.Amount = l.Target.Sub(running[l.IngredientID])
		}
		running[l.IngredientID] = running[l.IngredientID].Add(m.Delta())
		m.BalanceAfter = running[l.IngredientID]
		out = append(out, m)
	}
	return out
}

// =============================================================================
// RESOLVER
// =============================================================================

// BalanceReader is the read side of the projector.
type BalanceReader interface {
	CurrentBalance(id IngredientID) decimal.Decimal
	Snapshot(ids ...IngredientID) map[IngredientID]decimal.Decimal
}

// Resolver is the Recipe Resolver component.
type Resolver struct {
	catalog  *Catalog
	balances BalanceReader
}

func NewResolver(catalog *Catalog, balances BalanceReader) *Resolver {
	return &Resolver{catalog: catalog, balances: balances}
}

// ResolveSale expands quantity units of a menu item. On insufficiency the
// Expansion is still returned alongside the error for reporting.
func (r *Resolver) ResolveSale(menuID MenuID, quantity int) (Expansion, error) {
	if quantity <= 0 {
		return Expansion{}, invalidInput("quantity", "must be a positive integer")
	}
	menu, err := r.catalog.Menu(menuID)
	if err != nil {
		return Expansion{}, err
	}

	ref := "sale:" + uuid.NewString()
	exp := Expansion{
		Intent:    IntentRecordSale,
		Reference: ref,
		Note:      fmt.Sprintf("sale %s x%d", menu.Name, quantity),
		Sale: &SaleEntry{
			MenuID:   menu.ID,
			MenuName: menu.Name,
			Quantity: quantity,
		},
	}
	lines, err := r.consumption(menu.Recipe.Scaled(decimal.NewFromInt(int64(quantity))))
	if err != nil {
		return Expansion{}, err
	}
	exp.Lines = lines
	return exp, r.check(exp)
}

// ResolveBatch expands multiplier batch units. multiplier may be fractional.
func (r *Resolver) ResolveBatch(batchID BatchID, multiplier decimal.Decimal) (Expansion, error) {
	if !multiplier.IsPositive() {
		return Expansion{}, invalidInput("multiplier", "must be positive")
	}
	batch, err := r.catalog.Batch(batchID)
	if err != nil {
		return Expansion{}, err
	}
	target, err := r.catalog.Ingredient(batch.TargetID)
	if err != nil {
		return Expansion{}, err
	}

	exp := Expansion{
		Intent:    IntentProduceBatch,
		Reference: "batch:" + uuid.NewString(),
		Note:      fmt.Sprintf("batch %s x%s", batch.Name, multiplier),
	}
	lines, err := r.consumption(batch.Recipe.Scaled(multiplier))
	if err != nil {
		return Expansion{}, err
	}
	exp.Lines = append(lines, ExpansionLine{
		IngredientID: target.ID,
		Name:         target.Name,
		Unit:         target.Unit,
		Kind:         target.Kind,
		Movement:     MovementBatchProduction,
		Amount:       batch.Yield.Mul(multiplier),
		Available:    r.balances.CurrentBalance(target.ID),
	})
	return exp, r.check(exp)
}

// ResolveAdjustment sets an ingredient to a counted quantity. A negative
// count is accepted and records an overdraw.
func (r *Resolver) ResolveAdjustment(id IngredientID, newQuantity decimal.Decimal, reason string) (Expansion, error) {
	ing, err := r.catalog.Ingredient(id)
	if err != nil {
		return Expansion{}, err
	}
	current := r.balances.CurrentBalance(id)
	return Expansion{
		Intent:    IntentAdjustStock,
		Reference: "adjust:" + uuid.NewString(),
		Note:      reason,
		Lines: []ExpansionLine{{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Kind:         ing.Kind,
			Movement:     MovementAdjustment,
			Amount:       newQuantity.Sub(current),
			Target:       newQuantity,
			Available:    current,
		}},
	}, nil
}

// ResolveInitialStock emits the opening balance of an ingredient that is
// being registered. The definition is written in the same commit, so ing
// does not have to be in the catalog yet.
func (r *Resolver) ResolveInitialStock(ing Ingredient) (Expansion, error) {
	if !ing.Quantity.IsPositive() {
		return Expansion{}, invalidInput("quantity", "initial stock must be positive")
	}
	def := ing
	def.Quantity = decimal.Zero
	return Expansion{
		Intent:    IntentRegisterIngredient,
		Reference: "register:" + uuid.NewString(),
		Note:      "initial stock",
		Lines: []ExpansionLine{{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Kind:         ing.Kind,
			Movement:     MovementInitial,
			Amount:       ing.Quantity,
			Available:    r.balances.CurrentBalance(ing.ID),
		}},
		register: &def,
	}, nil
}

// ResolveRestock records a supplier delivery.
func (r *Resolver) ResolveRestock(id IngredientID, amount decimal.Decimal, note string) (Expansion, error) {
	if !amount.IsPositive() {
		return Expansion{}, invalidInput("amount", "must be positive")
	}
	return r.addition(IntentRestock, "restock:", id, MovementRestock, amount, note)
}

func (r *Resolver) addition(intent IntentKind, prefix string, id IngredientID, kind MovementKind, amount decimal.Decimal, note string) (Expansion, error) {
	ing, err := r.catalog.Ingredient(id)
	if err != nil {
		return Expansion{}, err
	}
	return Expansion{
		Intent:    intent,
		Reference: prefix + uuid.NewString(),
		Note:      note,
		Lines: []ExpansionLine{{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Kind:         ing.Kind,
			Movement:     kind,
			Amount:       amount,
			Available:    r.balances.CurrentBalance(ing.ID),
		}},
	}, nil
}

// consumption turns aggregated recipe lines into DEDUCTION lines.
func (r *Resolver) consumption(scaled []RecipeLine) ([]ExpansionLine, error) {
	ids := make([]IngredientID, len(scaled))
	for i, l := range scaled {
		ids[i] = l.IngredientID
	}
	available := r.balances.Snapshot(ids...)

	out := make([]ExpansionLine, 0, len(scaled))
	for _, l := range scaled {
		ing, err := r.catalog.Ingredient(l.IngredientID)
		if err != nil {
			return nil, err
		}
		out = append(out, ExpansionLine{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Kind:         ing.Kind,
			Movement:     MovementDeduction,
			Amount:       l.Amount,
			Available:    available[ing.ID],
		})
	}
	return out, nil
}

func (r *Resolver) check(exp Expansion) error {
	available := make(map[IngredientID]decimal.Decimal, len(exp.Lines))
	for _, l := range exp.Lines {
		available[l.IngredientID] = l.Available
	}
	if short := exp.Shortfalls(available); len(short) > 0 {
		return &InsufficientStockError{Shortfalls: short}
	}
	return nil
}
