/*
catalog.go - Ingredients, menus and batch recipes

PURPOSE:
  The Catalog exclusively owns the static bill-of-materials graph. It keeps
  an in-memory index for the resolver and writes every change through to the
  Store before the index is updated, so a failed write leaves no trace.

DERIVED KIND:
  An ingredient is PREPARED iff at least one batch recipe targets it. The
  Catalog keeps an exact count of batch recipes per target:

    upsert batch (new target T)        targets[T]++
    upsert batch (target moves A -> B) targets[A]--, targets[B]++
    delete batch (target T)            targets[T]--

  Kind flips to PREPARED when a count leaves zero and back to RAW when it
  returns to zero. Callers never set Kind; whatever they pass is ignored.

REFERENTIAL INTEGRITY:
  Recipe lines must name existing ingredients. Deleting an ingredient that is
  still used by a menu line, a batch line or as a batch target fails with
  ReferencedError instead of orphaning the recipe.
*/
package stock

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog is the Catalog Store component.
type Catalog struct {
	store Store

	mu          sync.RWMutex
	ingredients map[IngredientID]Ingredient
	menus       map[MenuID]MenuItem
	batches     map[BatchID]BatchRecipe
	targets     map[IngredientID]int
	reserved    map[IngredientID]struct{}
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{
		store:       store,
		ingredients: make(map[IngredientID]Ingredient),
		menus:       make(map[MenuID]MenuItem),
		batches:     make(map[BatchID]BatchRecipe),
		targets:     make(map[IngredientID]int),
		reserved:    make(map[IngredientID]struct{}),
	}
}

// Load replaces the index with the store's contents and re-derives kinds.
func (c *Catalog) Load(ctx context.Context) error {
	ings, err := c.store.ListIngredients(ctx)
	if err != nil {
		return persistence("load ingredients", err)
	}
	menus, err := c.store.ListMenus(ctx)
	if err != nil {
		return persistence("load menus", err)
	}
	batches, err := c.store.ListBatches(ctx)
	if err != nil {
		return persistence("load batches", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ingredients = make(map[IngredientID]Ingredient, len(ings))
	c.menus = make(map[MenuID]MenuItem, len(menus))
	c.batches = make(map[BatchID]BatchRecipe, len(batches))
	c.targets = make(map[IngredientID]int)

	for _, ing := range ings {
		ing.Quantity = decimal.Zero
		c.ingredients[ing.ID] = ing
	}
	for _, m := range menus {
		c.menus[m.ID] = m
	}
	for _, b := range batches {
		c.batches[b.ID] = b
		c.targets[b.TargetID]++
	}
	for id, ing := range c.ingredients {
		ing.Kind = c.kindLocked(id)
		c.ingredients[id] = ing
	}
	return nil
}

func (c *Catalog) kindLocked(id IngredientID) IngredientKind {
	if c.targets[id] > 0 {
		return KindPrepared
	}
	return KindRaw
}

// =============================================================================
// INGREDIENTS
// =============================================================================

// Ingredient returns the definition. Quantity is always zero here; the
// Kitchen facade fills it from the projector.
func (c *Catalog) Ingredient(id IngredientID) (Ingredient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ing, ok := c.ingredients[id]
	if !ok {
		return Ingredient{}, ingredientNotFound(id)
	}
	return ing, nil
}

func (c *Catalog) HasIngredient(id IngredientID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ingredients[id]
	return ok
}

// Ingredients lists all ingredients ordered by name.
func (c *Catalog) Ingredients() []Ingredient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Ingredient, 0, len(c.ingredients))
	for _, ing := range c.ingredients {
		out = append(out, ing)
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name); a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CreateIngredient stores a new ingredient definition. An empty ID is
// assigned a fresh one. Quantity and Kind from the caller are ignored.
func (c *Catalog) CreateIngredient(ctx context.Context, ing Ingredient) (Ingredient, error) {
	return c.saveIngredient(ctx, ing, true)
}

// UpdateIngredient replaces the definition of an existing ingredient.
func (c *Catalog) UpdateIngredient(ctx context.Context, ing Ingredient) (Ingredient, error) {
	return c.saveIngredient(ctx, ing, false)
}

func (c *Catalog) saveIngredient(ctx context.Context, ing Ingredient, create bool) (Ingredient, error) {
	if create && ing.ID == "" {
		ing.ID = IngredientID(uuid.NewString())
	}
	if err := ing.validate(); err != nil {
		return Ingredient{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case create && c.takenLocked(ing.ID):
		return Ingredient{}, invalidInput("id", "ingredient "+string(ing.ID)+" already exists")
	case !create && !c.existsLocked(ing.ID):
		return Ingredient{}, ingredientNotFound(ing.ID)
	}
	ing.Quantity = decimal.Zero
	ing.Kind = c.kindLocked(ing.ID)
	if err := c.store.SaveIngredient(ctx, ing); err != nil {
		return Ingredient{}, persistence("save ingredient", err)
	}
	c.ingredients[ing.ID] = ing
	return ing, nil
}

// reserveIngredient validates ing and holds its id for a registration that
// writes the definition together with its opening movement. Until
// installIngredient runs, the ingredient is invisible to every other
// operation and its id cannot be registered again. release drops the hold and
// is a no-op after installIngredient.
func (c *Catalog) reserveIngredient(ing Ingredient) (reserved Ingredient, release func(), err error) {
	if ing.ID == "" {
		ing.ID = IngredientID(uuid.NewString())
	}
	if err := ing.validate(); err != nil {
		return Ingredient{}, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.takenLocked(ing.ID) {
		return Ingredient{}, nil, invalidInput("id", "ingredient "+string(ing.ID)+" already exists")
	}
	c.reserved[ing.ID] = struct{}{}
	ing.Kind = c.kindLocked(ing.ID)
	id := ing.ID
	return ing, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.reserved, id)
	}, nil
}

// installIngredient indexes a reserved ingredient whose definition is
// already durable.
func (c *Catalog) installIngredient(ing Ingredient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reserved, ing.ID)
	ing.Quantity = decimal.Zero
	ing.Kind = c.kindLocked(ing.ID)
	c.ingredients[ing.ID] = ing
}

func (c *Catalog) takenLocked(id IngredientID) bool {
	_, held := c.reserved[id]
	return held || c.existsLocked(id)
}

// DeleteIngredient removes an ingredient that no recipe references.
func (c *Catalog) DeleteIngredient(ctx context.Context, id IngredientID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ingredients[id]; !ok {
		return ingredientNotFound(id)
	}
	if ref := c.referencesLocked(id); ref != nil {
		return ref
	}
	if err := c.store.DeleteIngredient(ctx, id); err != nil {
		return persistence("delete ingredient", err)
	}
	delete(c.ingredients, id)
	return nil
}

func (c *Catalog) referencesLocked(id IngredientID) *ReferencedError {
	ref := &ReferencedError{IngredientID: id}
	for _, m := range c.menus {
		if m.Recipe.References(id) {
			ref.Menus = append(ref.Menus, m.ID)
		}
	}
	for _, b := range c.batches {
		if b.TargetID == id || b.Recipe.References(id) {
			ref.Batches = append(ref.Batches, b.ID)
		}
	}
	if len(ref.Menus) == 0 && len(ref.Batches) == 0 {
		return nil
	}
	slices.Sort(ref.Menus)
	slices.Sort(ref.Batches)
	return ref
}

// =============================================================================
// MENUS
// =============================================================================

func (c *Catalog) Menu(id MenuID) (MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.menus[id]
	if !ok {
		return MenuItem{}, menuNotFound(id)
	}
	m.Recipe = slices.Clone(m.Recipe)
	return m, nil
}

func (c *Catalog) Menus() []MenuItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MenuItem, 0, len(c.menus))
	for _, m := range c.menus {
		m.Recipe = slices.Clone(m.Recipe)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) UpsertMenu(ctx context.Context, m MenuItem) (MenuItem, error) {
	if m.ID == "" {
		m.ID = MenuID(uuid.NewString())
	}
	if m.Name == "" {
		return MenuItem{}, invalidInput("name", "must not be empty")
	}
	if m.Price.IsNegative() {
		return MenuItem{}, invalidInput("price", "must not be negative")
	}
	if len(m.Recipe) == 0 {
		return MenuItem{}, invalidInput("recipe", "must have at least one line")
	}
	m.Recipe = slices.Clone(m.Recipe)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := m.Recipe.validate(c.existsLocked); err != nil {
		return MenuItem{}, err
	}
	if err := c.store.SaveMenu(ctx, m); err != nil {
		return MenuItem{}, persistence("save menu", err)
	}
	c.menus[m.ID] = m
	return m, nil
}

func (c *Catalog) DeleteMenu(ctx context.Context, id MenuID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.menus[id]; !ok {
		return menuNotFound(id)
	}
	if err := c.store.DeleteMenu(ctx, id); err != nil {
		return persistence("delete menu", err)
	}
	delete(c.menus, id)
	return nil
}

func (c *Catalog) existsLocked(id IngredientID) bool {
	_, ok := c.ingredients[id]
	return ok
}

// =============================================================================
// BATCH RECIPES
// =============================================================================

func (c *Catalog) Batch(id BatchID) (BatchRecipe, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.batches[id]
	if !ok {
		return BatchRecipe{}, batchNotFound(id)
	}
	b.Recipe = slices.Clone(b.Recipe)
	return b, nil
}

func (c *Catalog) Batches() []BatchRecipe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]BatchRecipe, 0, len(c.batches))
	for _, b := range c.batches {
		b.Recipe = slices.Clone(b.Recipe)
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpsertBatch creates or updates a batch recipe and moves the target
// reference count accordingly.
func (c *Catalog) UpsertBatch(ctx context.Context, b BatchRecipe) (BatchRecipe, error) {
	if b.ID == "" {
		b.ID = BatchID(uuid.NewString())
	}
	if b.TargetID == "" {
		return BatchRecipe{}, invalidInput("target_id", "must not be empty")
	}
	if !b.Yield.IsPositive() {
		return BatchRecipe{}, invalidInput("yield", "must be positive")
	}
	if len(b.Recipe) == 0 {
		return BatchRecipe{}, invalidInput("recipe", "must have at least one line")
	}
	if b.Recipe.References(b.TargetID) {
		return BatchRecipe{}, invalidInput("recipe", "must not consume its own target")
	}
	b.Recipe = slices.Clone(b.Recipe)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.existsLocked(b.TargetID) {
		return BatchRecipe{}, invalidInput("target_id", "unknown ingredient "+string(b.TargetID))
	}
	if err := b.Recipe.validate(c.existsLocked); err != nil {
		return BatchRecipe{}, err
	}

	targets := maps.Clone(c.targets)
	if prev, ok := c.batches[b.ID]; ok {
		targets[prev.TargetID]--
	}
	targets[b.TargetID]++

	changed := c.kindChangesLocked(targets)
	err := c.store.WithTx(ctx, func(tx Store) error {
		if err := tx.SaveBatch(ctx, b); err != nil {
			return err
		}
		for _, ing := range changed {
			if err := tx.SaveIngredient(ctx, ing); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BatchRecipe{}, persistence("save batch", err)
	}

	c.batches[b.ID] = b
	c.commitTargetsLocked(targets, changed)
	return b, nil
}

// DeleteBatch removes a batch recipe. Its target reverts to RAW only when no
// other batch recipe still produces it.
func (c *Catalog) DeleteBatch(ctx context.Context, id BatchID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches[id]
	if !ok {
		return batchNotFound(id)
	}
	targets := maps.Clone(c.targets)
	targets[b.TargetID]--

	changed := c.kindChangesLocked(targets)
	err := c.store.WithTx(ctx, func(tx Store) error {
		if err := tx.DeleteBatch(ctx, id); err != nil {
			return err
		}
		for _, ing := range changed {
			if err := tx.SaveIngredient(ctx, ing); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return persistence("delete batch", err)
	}

	delete(c.batches, id)
	c.commitTargetsLocked(targets, changed)
	return nil
}

// kindChangesLocked returns the ingredients whose kind differs under the
// proposed target counts.
func (c *Catalog) kindChangesLocked(targets map[IngredientID]int) []Ingredient {
	var changed []Ingredient
	for id, ing := range c.ingredients {
		kind := KindRaw
		if targets[id] > 0 {
			kind = KindPrepared
		}
		if ing.Kind != kind {
			ing.Kind = kind
			changed = append(changed, ing)
		}
	}
	return changed
}

func (c *Catalog) commitTargetsLocked(targets map[IngredientID]int, changed []Ingredient) {
	for id, n := range targets {
		if n <= 0 {
			delete(targets, id)
		}
	}
	c.targets = targets
	for _, ing := range changed {
		c.ingredients[ing.ID] = ing
	}
}
