/*
Package stock provides the kitchen stock ledger and recipe-resolution engine.

PURPOSE:
  This package keeps ingredient quantities as a function of an append-only
  movement log. Sales and batch production are expanded through a two-level
  bill of materials (menu -> recipe lines, batch -> sub-recipe) into concrete
  movements, checked for sufficiency and committed as one unit.

KEY CONCEPTS IN THIS FILE (types.go):
  - Ingredient: A stock-keeping unit, RAW or PREPARED
  - Movement: An immutable ledger fact changing one ingredient's balance
  - MenuItem / BatchRecipe: The static bill-of-materials graph
  - SaleEntry: Denormalized record of a committed sale

DESIGN PRINCIPLES:
  1. Quantity is never written by callers. It only changes as the side
     effect of a committed Movement.
  2. Precision: decimal.Decimal everywhere, compared with a small epsilon.
  3. Type Safety: distinct ID types for ingredients, menus and batches.
  4. Kind is derived: PREPARED iff some batch recipe targets the ingredient.

SEE ALSO:
  - catalog.go: Owns ingredients, menus and batch recipes
  - ledger.go: Append-only movement log
  - projector.go: Cached balances folded from the ledger
  - resolver.go: Intent -> movements expansion
  - coordinator.go: All-or-nothing commit
*/
package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type IngredientID string
type MenuID string
type BatchID string
type MovementID string
type SaleID string

// =============================================================================
// QUANTITY COMPARISON
// =============================================================================

// Epsilon is the tolerance used when comparing quantities, so that amounts
// that only differ by rounding are never reported as insufficient.
var Epsilon = decimal.New(1, -9)

// exceeds reports whether a is greater than b by more than Epsilon.
func exceeds(a, b decimal.Decimal) bool {
	return a.Sub(b).GreaterThan(Epsilon)
}

// atMost reports whether a <= b within Epsilon.
func atMost(a, b decimal.Decimal) bool {
	return !exceeds(a, b)
}

// =============================================================================
// INGREDIENT
// =============================================================================

type IngredientKind string

const (
	KindRaw      IngredientKind = "RAW"      // Sourced externally
	KindPrepared IngredientKind = "PREPARED" // Produced by a batch recipe
)

// Ingredient is a stock-keeping unit.
//
// Quantity is the projected balance. It is filled in on reads and ignored on
// writes. Kind is derived by the Catalog from the set of batch recipes.
type Ingredient struct {
	ID           IngredientID
	Name         string
	Category     string
	Unit         string
	Quantity     decimal.Decimal
	MinThreshold decimal.Decimal
	Kind         IngredientKind
}

func (i Ingredient) validate() error {
	if i.ID == "" {
		return invalidInput("id", "must not be empty")
	}
	if i.Name == "" {
		return invalidInput("name", "must not be empty")
	}
	if i.MinThreshold.IsNegative() {
		return invalidInput("min_threshold", "must not be negative")
	}
	return nil
}

// =============================================================================
// RECIPES
// =============================================================================

// RecipeLine is one ingredient requirement per unit of a menu item or batch.
type RecipeLine struct {
	IngredientID IngredientID
	Amount       decimal.Decimal
}

// Recipe is an order-irrelevant set of lines.
type Recipe []RecipeLine

// References reports whether any line uses the ingredient.
func (r Recipe) References(id IngredientID) bool {
	for _, line := range r {
		if line.IngredientID == id {
			return true
		}
	}
	return false
}

// Scaled returns the per-ingredient totals for n units. Lines naming the same
// ingredient are merged; the first occurrence fixes the output order.
func (r Recipe) Scaled(n decimal.Decimal) []RecipeLine {
	index := make(map[IngredientID]int, len(r))
	out := make([]RecipeLine, 0, len(r))
	for _, line := range r {
		amount := line.Amount.Mul(n)
		if i, ok := index[line.IngredientID]; ok {
			out[i].Amount = out[i].Amount.Add(amount)
			continue
		}
		index[line.IngredientID] = len(out)
		out = append(out, RecipeLine{IngredientID: line.IngredientID, Amount: amount})
	}
	return out
}

func (r Recipe) validate(exists func(IngredientID) bool) error {
	for i, line := range r {
		field := fmt.Sprintf("recipe[%d]", i)
		if line.IngredientID == "" {
			return invalidInput(field, "ingredient id must not be empty")
		}
		if !line.Amount.IsPositive() {
			return invalidInput(field, "amount per unit must be positive")
		}
		if !exists(line.IngredientID) {
			return invalidInput(field, fmt.Sprintf("unknown ingredient %q", line.IngredientID))
		}
	}
	return nil
}

// MenuItem is a sellable product.
type MenuItem struct {
	ID     MenuID
	Name   string
	Price  decimal.Decimal
	Recipe Recipe
}

// BatchRecipe converts sub-ingredients into a yield of one PREPARED ingredient.
// Yield and Recipe are both per one batch unit.
type BatchRecipe struct {
	ID       BatchID
	Name     string
	TargetID IngredientID
	Yield    decimal.Decimal
	Recipe   Recipe
}

// =============================================================================
// MOVEMENT - Immutable ledger fact
// =============================================================================

type MovementKind string

const (
	MovementInitial         MovementKind = "INITIAL"          // Opening balance of a new ingredient
	MovementRestock         MovementKind = "RESTOCK"          // Supplier delivery
	MovementDeduction       MovementKind = "DEDUCTION"        // Sale or batch consumption
	MovementBatchProduction MovementKind = "BATCH_PRODUCTION" // Yield of a batch run
	MovementAdjustment      MovementKind = "ADJUSTMENT"       // Stock count correction, signed
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementInitial, MovementRestock, MovementDeduction, MovementBatchProduction, MovementAdjustment:
		return true
	}
	return false
}

// Movement is one committed change to one ingredient's balance.
//
// Amount is a magnitude for every kind except ADJUSTMENT, where it is the
// signed delta between the old balance and the counted one. BalanceAfter is
// denormalized for audit and always equals the projected balance right after
// the commit that wrote it.
type Movement struct {
	ID           MovementID
	Seq          int64
	IngredientID IngredientID
	Kind         MovementKind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	At           time.Time
	Note         string
	Reference    string // intent that produced it (sale, batch run, ...)
}

// Delta is the signed effect of the movement on the balance.
func (m Movement) Delta() decimal.Decimal {
	if m.Kind == MovementDeduction {
		return m.Amount.Neg()
	}
	return m.Amount
}

func (m Movement) validate() error {
	if m.IngredientID == "" {
		return &InvalidInputError{Field: "ingredient_id", Reason: "must not be empty", movement: true}
	}
	if !m.Kind.Valid() {
		return &InvalidInputError{Field: "kind", Reason: fmt.Sprintf("unknown movement kind %q", m.Kind), movement: true}
	}
	if m.Kind != MovementAdjustment && m.Amount.IsNegative() {
		return &InvalidInputError{Field: "amount", Reason: "magnitude must not be negative", movement: true}
	}
	return nil
}

// =============================================================================
// SALES LOG
// =============================================================================

// SaleEntry is written only as part of a committed sale and never changes.
type SaleEntry struct {
	ID       SaleID
	MenuID   MenuID
	MenuName string
	Quantity int
	At       time.Time
}
