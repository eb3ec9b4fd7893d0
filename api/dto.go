/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the stock engine's types from the external contract.

CONVENTIONS:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - Decimals are JSON strings ("12.5"); requests also accept numbers
  - Timestamps are RFC 3339 in UTC

VALIDATION:
  Validation is done in the stock engine, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: Import/export documents
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kitchen-stock/factory"
	"github.com/warp/kitchen-stock/stock"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// =============================================================================
// INGREDIENTS
// =============================================================================

type IngredientDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
}

func toIngredientDTO(ing stock.Ingredient) IngredientDTO {
	return IngredientDTO{
		ID:           string(ing.ID),
		Name:         ing.Name,
		Category:     ing.Category,
		Unit:         ing.Unit,
		Quantity:     ing.Quantity,
		MinThreshold: ing.MinThreshold,
		Kind:         string(ing.Kind),
		Status:       string(stock.DefaultPolicy.Classify(ing)),
	}
}

// IngredientRequest creates or updates an ingredient. Quantity is only read
// on create, where it becomes the opening balance.
type IngredientRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
}

func (r IngredientRequest) toIngredient() stock.Ingredient {
	return stock.Ingredient{
		ID:           stock.IngredientID(r.ID),
		Name:         r.Name,
		Category:     r.Category,
		Unit:         r.Unit,
		Quantity:     r.Quantity,
		MinThreshold: r.MinThreshold,
	}
}

type AdjustRequest struct {
	NewQuantity decimal.Decimal `json:"new_quantity"`
	Reason      string          `json:"reason"`
}

type RestockRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

// =============================================================================
// RECIPES
// =============================================================================

type RecipeLineDTO struct {
	IngredientID string          `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

func toRecipeDTO(r stock.Recipe) []RecipeLineDTO {
	out := make([]RecipeLineDTO, 0, len(r))
	for _, l := range r {
		out = append(out, RecipeLineDTO{IngredientID: string(l.IngredientID), Amount: l.Amount})
	}
	return out
}

func fromRecipeDTO(lines []RecipeLineDTO) stock.Recipe {
	out := make(stock.Recipe, 0, len(lines))
	for _, l := range lines {
		out = append(out, stock.RecipeLine{IngredientID: stock.IngredientID(l.IngredientID), Amount: l.Amount})
	}
	return out
}

type MenuDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Recipe []RecipeLineDTO `json:"recipe"`
}

func toMenuDTO(m stock.MenuItem) MenuDTO {
	return MenuDTO{ID: string(m.ID), Name: m.Name, Price: m.Price, Recipe: toRecipeDTO(m.Recipe)}
}

func (d MenuDTO) toMenu() stock.MenuItem {
	return stock.MenuItem{ID: stock.MenuID(d.ID), Name: d.Name, Price: d.Price, Recipe: fromRecipeDTO(d.Recipe)}
}

type BatchDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	TargetID string          `json:"target_id"`
	Yield    decimal.Decimal `json:"yield"`
	Recipe   []RecipeLineDTO `json:"recipe"`
}

func toBatchDTO(b stock.BatchRecipe) BatchDTO {
	return BatchDTO{
		ID:       string(b.ID),
		Name:     b.Name,
		TargetID: string(b.TargetID),
		Yield:    b.Yield,
		Recipe:   toRecipeDTO(b.Recipe),
	}
}

func (d BatchDTO) toBatch() stock.BatchRecipe {
	return stock.BatchRecipe{
		ID:       stock.BatchID(d.ID),
		Name:     d.Name,
		TargetID: stock.IngredientID(d.TargetID),
		Yield:    d.Yield,
		Recipe:   fromRecipeDTO(d.Recipe),
	}
}

type SaleRequest struct {
	Quantity int `json:"quantity"`
}

type ProduceRequest struct {
	Multiplier decimal.Decimal `json:"multiplier"`
}

type ProduceResponse struct {
	BatchID     string          `json:"batch_id"`
	TargetID    string          `json:"target_id"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
}

// =============================================================================
// LEDGER
// =============================================================================

type MovementDTO struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	IngredientID string          `json:"ingredient_id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	At           string          `json:"at"`
	Note         string          `json:"note,omitempty"`
	Reference    string          `json:"reference,omitempty"`
}

func toMovementDTO(m stock.Movement) MovementDTO {
	return MovementDTO{
		ID:           string(m.ID),
		Seq:          m.Seq,
		IngredientID: string(m.IngredientID),
		Kind:         string(m.Kind),
		Amount:       m.Amount,
		BalanceAfter: m.BalanceAfter,
		At:           formatTime(m.At),
		Note:         m.Note,
		Reference:    m.Reference,
	}
}

type SaleDTO struct {
	ID       string `json:"id"`
	MenuID   string `json:"menu_id"`
	MenuName string `json:"menu_name"`
	Quantity int    `json:"quantity"`
	At       string `json:"at"`
}

func toSaleDTO(s stock.SaleEntry) SaleDTO {
	return SaleDTO{
		ID:       string(s.ID),
		MenuID:   string(s.MenuID),
		MenuName: s.MenuName,
		Quantity: s.Quantity,
		At:       formatTime(s.At),
	}
}

// =============================================================================
// REPORTS
// =============================================================================

type LowStockDTO struct {
	IngredientDTO
	Status string `json:"status"`
}

type RestockSuggestionDTO struct {
	IngredientDTO
	Status string          `json:"status"`
	Buy    decimal.Decimal `json:"buy"`
}

type UsageDTO struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Used         decimal.Decimal `json:"used"`
	Movements    int             `json:"movements"`
}

type MenuSalesDTO struct {
	MenuID   string `json:"menu_id"`
	MenuName string `json:"menu_name"`
	Quantity int    `json:"quantity"`
	Sales    int    `json:"sales"`
}

type HealthDTO struct {
	Score       int `json:"score"`
	Ingredients int `json:"ingredients"`
	Low         int `json:"low"`
	Out         int `json:"out"`
}

type DriftDTO struct {
	IngredientID string          `json:"ingredient_id"`
	Projected    decimal.Decimal `json:"projected"`
	Replayed     decimal.Decimal `json:"replayed"`
	BadSeqs      []int64         `json:"bad_seqs,omitempty"`
}

type VerifyResponse struct {
	OK     bool       `json:"ok"`
	Drifts []DriftDTO `json:"drifts"`
}

// HealthzResponse is the liveness payload.
type HealthzResponse struct {
	Status    string           `json:"status"`
	Integrity *IntegrityStatus `json:"integrity,omitempty"`
}

// IntegrityStatus is the outcome of the scheduler's last pass. LastRun is
// absent until the first pass has finished.
type IntegrityStatus struct {
	LastRun *time.Time `json:"last_run,omitempty"`
	Drifts  int        `json:"drifts"`
}

// =============================================================================
// SCENARIOS & ADMIN
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type ImportResponse struct {
	Status string              `json:"status"`
	Result factory.ApplyResult `json:"result"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type ShortfallDTO struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Missing      decimal.Decimal `json:"missing"`
}

type ReferencedDTO struct {
	IngredientID string   `json:"ingredient_id"`
	Menus        []string `json:"menus"`
	Batches      []string `json:"batches"`
}
