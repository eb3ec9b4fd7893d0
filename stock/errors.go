/*
errors.go - Centralized error types for the stock engine

PURPOSE:
  All error types in one place. Outcomes the caller must render (shortfall
  lists, blocked deletes) are structured errors that unwrap to a sentinel,
  so both errors.Is and errors.As work.

ERROR CATEGORIES:
  1. NotFound            - Unknown ingredient, menu or batch
  2. InvalidInput        - Bad amounts, multipliers, dangling recipe lines
  3. InsufficientStock   - Expected outcome, carries per-line shortfalls
  4. ReferencedByRecipe  - Delete blocked by a recipe reference
  5. ConcurrentModification - Balances moved under an in-flight intent
  6. Persistence         - Store unavailable; nothing was applied

USAGE:
  entry, err := kitchen.RecordSale(ctx, "menu-1", 3)
  var short *stock.InsufficientStockError
  if errors.As(err, &short) {
      for _, s := range short.Shortfalls { ... }
  }
*/
package stock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrMenuNotFound       = errors.New("menu not found")
	ErrBatchNotFound      = errors.New("batch recipe not found")

	// ErrInvalidInput covers malformed amounts, multipliers and recipes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidMovement is returned by the ledger for malformed movements.
	// It also matches ErrInvalidInput.
	ErrInvalidMovement = errors.New("invalid movement")

	// ErrInsufficientStock is a normal outcome, not a fault.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReferencedByRecipe blocks deleting an ingredient still in use.
	ErrReferencedByRecipe = errors.New("referenced by recipe")

	// ErrConcurrentModification means balances changed between resolution and
	// commit in a way that invalidated the intent. Re-issue the intent.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPersistence means the underlying store failed. Nothing was applied.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing identifier.
type NotFoundError struct {
	Resource string // "ingredient", "menu", "batch"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	switch e.Resource {
	case "menu":
		return ErrMenuNotFound
	case "batch":
		return ErrBatchNotFound
	default:
		return ErrIngredientNotFound
	}
}

func ingredientNotFound(id IngredientID) error {
	return &NotFoundError{Resource: "ingredient", ID: string(id)}
}

func menuNotFound(id MenuID) error { return &NotFoundError{Resource: "menu", ID: string(id)} }

func batchNotFound(id BatchID) error { return &NotFoundError{Resource: "batch", ID: string(id)} }

// InvalidInputError describes which field was rejected.
type InvalidInputError struct {
	Field  string
	Reason string

	movement bool
}

func (e *InvalidInputError) Error() string {
	if e.movement {
		return fmt.Sprintf("invalid movement: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() []error {
	if e.movement {
		return []error{ErrInvalidMovement, ErrInvalidInput}
	}
	return []error{ErrInvalidInput}
}

func invalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// Shortfall is one line of an insufficiency report.
type Shortfall struct {
	IngredientID IngredientID
	Name         string
	Unit         string
	Required     decimal.Decimal
	Available    decimal.Decimal
}

// Missing is how much more stock the line needs.
func (s Shortfall) Missing() decimal.Decimal {
	return s.Required.Sub(s.Available)
}

// InsufficientStockError lists every short ingredient of a rejected intent.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("%s: required %s %s, available %s", s.Name, s.Required, s.Unit, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ReferencedError lists the recipes that still use an ingredient.
type ReferencedError struct {
	IngredientID IngredientID
	Menus        []MenuID
	Batches      []BatchID
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("ingredient %q is referenced by %d menu(s) and %d batch recipe(s)",
		e.IngredientID, len(e.Menus), len(e.Batches))
}

func (e *ReferencedError) Unwrap() error {
	return ErrReferencedByRecipe
}

// PersistenceError wraps a store failure. It matches both ErrPersistence and
// the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// persistence wraps err unless it already belongs to the domain taxonomy.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	return IsNotFound(err) || IsClientError(err) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrPersistence)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-issuing the intent might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true for outcomes caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrReferencedByRecipe)
}

// IsNotFound returns true if the error indicates a missing catalog entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIngredientNotFound) ||
		errors.Is(err, ErrMenuNotFound) ||
		errors.Is(err, ErrBatchNotFound)
}
