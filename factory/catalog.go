/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON catalog documents into stock ingredients, batch recipes and
  menu items, and applies them to a kitchen. This enables setting up a
  kitchen without code changes: a seed file, an admin import or a demo
  scenario is just a document.

JSON SCHEMA:
  {
    "ingredients": [
      {"id": "flour", "name": "Flour", "category": "dry", "unit": "g",
       "quantity": "5000", "min_threshold": "1000"}
    ],
    "batches": [
      {"id": "dough-batch", "name": "Pizza dough", "target_id": "dough",
       "yield": "1000", "recipe": [{"ingredient_id": "flour", "amount": "600"}]}
    ],
    "menus": [
      {"id": "margherita", "name": "Margherita", "price": "9.50",
       "recipe": [{"ingredient_id": "dough", "amount": "250"}]}
    ]
  }

  Decimals may be JSON strings or numbers.

APPLY ORDER:
  ingredients -> batches -> menus, so every recipe line resolves. A new
  ingredient is registered with its quantity as the INITIAL movement. An
  existing one only has its metadata updated: a document never overwrites
  stock that already has history.

SEE ALSO:
  - factory/presets.go: Demo kitchens
  - stock/kitchen.go: RegisterIngredient, SaveBatch, SaveMenu
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/kitchen-stock/stock"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a kitchen catalog.
type CatalogJSON struct {
	Ingredients []IngredientJSON `json:"ingredients"`
	Batches     []BatchJSON      `json:"batches,omitempty"`
	Menus       []MenuJSON       `json:"menus,omitempty"`
}

type IngredientJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	MinThreshold decimal.Decimal `json:"min_threshold"`
	Kind         string          `json:"kind,omitempty"` // informational; derived on import
}

type RecipeLineJSON struct {
	IngredientID string          `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type BatchJSON struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	TargetID string           `json:"target_id"`
	Yield    decimal.Decimal  `json:"yield"`
	Recipe   []RecipeLineJSON `json:"recipe"`
}

type MenuJSON struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Price  decimal.Decimal  `json:"price"`
	Recipe []RecipeLineJSON `json:"recipe"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// Catalog is a parsed document in stock types.
type Catalog struct {
	Ingredients []stock.Ingredient
	Batches     []stock.BatchRecipe
	Menus       []stock.MenuItem
}

// CatalogFactory converts JSON catalogs to Go structs.
type CatalogFactory struct{}

func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// ParseCatalog parses a JSON string into a Catalog.
func (f *CatalogFactory) ParseCatalog(jsonStr string) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts CatalogJSON to a Catalog. It checks the document on its
// own; references to ingredients already in the kitchen are resolved on
// Apply.
func (f *CatalogFactory) FromJSON(cj CatalogJSON) (*Catalog, error) {
	c := &Catalog{}
	seen := make(map[string]bool)
	for i, ij := range cj.Ingredients {
		if ij.ID == "" {
			return nil, fmt.Errorf("ingredients[%d]: id is required", i)
		}
		if seen[ij.ID] {
			return nil, fmt.Errorf("ingredients[%d]: duplicate id %q", i, ij.ID)
		}
		seen[ij.ID] = true
		c.Ingredients = append(c.Ingredients, stock.Ingredient{
			ID:           stock.IngredientID(ij.ID),
			Name:         ij.Name,
			Category:     ij.Category,
			Unit:         ij.Unit,
			Quantity:     ij.Quantity,
			MinThreshold: ij.MinThreshold,
		})
	}
	for i, bj := range cj.Batches {
		if bj.ID == "" {
			return nil, fmt.Errorf("batches[%d]: id is required", i)
		}
		c.Batches = append(c.Batches, stock.BatchRecipe{
			ID:       stock.BatchID(bj.ID),
			Name:     bj.Name,
			TargetID: stock.IngredientID(bj.TargetID),
			Yield:    bj.Yield,
			Recipe:   parseRecipe(bj.Recipe),
		})
	}
	for i, mj := range cj.Menus {
		if mj.ID == "" {
			return nil, fmt.Errorf("menus[%d]: id is required", i)
		}
		c.Menus = append(c.Menus, stock.MenuItem{
			ID:     stock.MenuID(mj.ID),
			Name:   mj.Name,
			Price:  mj.Price,
			Recipe: parseRecipe(mj.Recipe),
		})
	}
	return c, nil
}

// ToJSON converts the kitchen's current catalog to a document. Quantities
// are the projected balances, so the result can seed another kitchen.
func (f *CatalogFactory) ToJSON(ings []stock.Ingredient, batches []stock.BatchRecipe, menus []stock.MenuItem) CatalogJSON {
	cj := CatalogJSON{
		Ingredients: make([]IngredientJSON, 0, len(ings)),
		Batches:     make([]BatchJSON, 0, len(batches)),
		Menus:       make([]MenuJSON, 0, len(menus)),
	}
	for _, ing := range ings {
		cj.Ingredients = append(cj.Ingredients, IngredientJSON{
			ID:           string(ing.ID),
			Name:         ing.Name,
			Category:     ing.Category,
			Unit:         ing.Unit,
			Quantity:     ing.Quantity,
			MinThreshold: ing.MinThreshold,
			Kind:         string(ing.Kind),
		})
	}
	for _, b := range batches {
		cj.Batches = append(cj.Batches, BatchJSON{
			ID:       string(b.ID),
			Name:     b.Name,
			TargetID: string(b.TargetID),
			Yield:    b.Yield,
			Recipe:   recipeToJSON(b.Recipe),
		})
	}
	for _, m := range menus {
		cj.Menus = append(cj.Menus, MenuJSON{
			ID:     string(m.ID),
			Name:   m.Name,
			Price:  m.Price,
			Recipe: recipeToJSON(m.Recipe),
		})
	}
	return cj
}

// =============================================================================
// APPLY
// =============================================================================

// Kitchen is the subset of *stock.Kitchen a catalog is applied to.
type Kitchen interface {
	Ingredient(id stock.IngredientID) (stock.Ingredient, error)
	RegisterIngredient(ctx context.Context, ing stock.Ingredient) (stock.Ingredient, error)
	UpdateIngredient(ctx context.Context, ing stock.Ingredient) (stock.Ingredient, error)
	SaveBatch(ctx context.Context, b stock.BatchRecipe) (stock.BatchRecipe, error)
	SaveMenu(ctx context.Context, m stock.MenuItem) (stock.MenuItem, error)
}

// ApplyResult counts what an Apply did.
type ApplyResult struct {
	IngredientsCreated int `json:"ingredients_created"`
	IngredientsUpdated int `json:"ingredients_updated"`
	Batches            int `json:"batches"`
	Menus              int `json:"menus"`
}

// Apply writes c into k. It stops at the first error; whatever was applied
// before it stays, and applying the same document again converges.
func (f *CatalogFactory) Apply(ctx context.Context, k Kitchen, c *Catalog) (ApplyResult, error) {
	var res ApplyResult
	for _, ing := range c.Ingredients {
		if _, err := k.Ingredient(ing.ID); err == nil {
			if _, err := k.UpdateIngredient(ctx, ing); err != nil {
				return res, fmt.Errorf("ingredient %s: %w", ing.ID, err)
			}
			res.IngredientsUpdated++
			continue
		} else if !stock.IsNotFound(err) {
			return res, err
		}
		if _, err := k.RegisterIngredient(ctx, ing); err != nil {
			return res, fmt.Errorf("ingredient %s: %w", ing.ID, err)
		}
		res.IngredientsCreated++
	}
	for _, b := range c.Batches {
		if _, err := k.SaveBatch(ctx, b); err != nil {
			return res, fmt.Errorf("batch %s: %w", b.ID, err)
		}
		res.Batches++
	}
	for _, m := range c.Menus {
		if _, err := k.SaveMenu(ctx, m); err != nil {
			return res, fmt.Errorf("menu %s: %w", m.ID, err)
		}
		res.Menus++
	}
	return res, nil
}

// =============================================================================
// BACKUP
// =============================================================================

// BackupJSON is the export document: the catalog plus the full ledger and
// sales log.
type BackupJSON struct {
	ID         string         `json:"id"`
	ExportedAt time.Time      `json:"exported_at"`
	Catalog    CatalogJSON    `json:"catalog"`
	Movements  []MovementJSON `json:"movements"`
	Sales      []SaleJSON     `json:"sales"`
}

type MovementJSON struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	IngredientID string          `json:"ingredient_id"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	At           time.Time       `json:"at"`
	Note         string          `json:"note,omitempty"`
	Reference    string          `json:"reference,omitempty"`
}

type SaleJSON struct {
	ID       string    `json:"id"`
	MenuID   string    `json:"menu_id"`
	MenuName string    `json:"menu_name"`
	Quantity int       `json:"quantity"`
	At       time.Time `json:"at"`
}

// BackupToJSON converts an export to its document form.
func (f *CatalogFactory) BackupToJSON(b stock.Backup) BackupJSON {
	out := BackupJSON{
		ID:         b.ID,
		ExportedAt: b.ExportedAt.UTC(),
		Catalog:    f.ToJSON(b.Ingredients, b.Batches, b.Menus),
		Movements:  make([]MovementJSON, 0, len(b.Movements)),
		Sales:      make([]SaleJSON, 0, len(b.Sales)),
	}
	for _, m := range b.Movements {
		out.Movements = append(out.Movements, MovementJSON{
			ID:           string(m.ID),
			Seq:          m.Seq,
			IngredientID: string(m.IngredientID),
			Kind:         string(m.Kind),
			Amount:       m.Amount,
			BalanceAfter: m.BalanceAfter,
			At:           m.At.UTC(),
			Note:         m.Note,
			Reference:    m.Reference,
		})
	}
	for _, s := range b.Sales {
		out.Sales = append(out.Sales, SaleJSON{
			ID:       string(s.ID),
			MenuID:   string(s.MenuID),
			MenuName: s.MenuName,
			Quantity: s.Quantity,
			At:       s.At.UTC(),
		})
	}
	return out
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRecipe(lines []RecipeLineJSON) stock.Recipe {
	r := make(stock.Recipe, 0, len(lines))
	for _, l := range lines {
		r = append(r, stock.RecipeLine{IngredientID: stock.IngredientID(l.IngredientID), Amount: l.Amount})
	}
	return r
}

func recipeToJSON(r stock.Recipe) []RecipeLineJSON {
	out := make([]RecipeLineJSON, 0, len(r))
	for _, l := range r {
		out = append(out, RecipeLineJSON{IngredientID: string(l.IngredientID), Amount: l.Amount})
	}
	return out
}
