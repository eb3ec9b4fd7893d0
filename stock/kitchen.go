/*
kitchen.go - Intent operations over the whole engine

PURPOSE:
  Kitchen wires the five components together and exposes the operations a
  transport layer calls. Every mutation of stock goes through the
  Coordinator; catalog edits go through the Catalog.

STARTUP:
  Open loads the catalog, seeds the ledger's sequence and clock from the
  persisted log and rebuilds the projector by replay. A restart therefore
  reproduces every balance from the ledger alone.

OPERATIONS:
  RecordSale(menu, n)            -> SaleEntry | InsufficientStock | NotFound
  ProduceBatch(batch, m)         -> new target balance | InsufficientStock | NotFound
  AdjustStock(id, q, reason)     -> Movement | NotFound
  Restock(id, q, note)           -> Movement | NotFound
  RegisterIngredient(data)       -> Ingredient (INITIAL movement if quantity > 0)
  ListLowStock(policy)           -> []LowStockItem
  MovementHistory(id?, range?)   -> lazy sequence of Movement

SEE ALSO:
  - coordinator.go: Commit path
  - report.go: Derived reports
*/
package stock

import (
	"context"
	"iter"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/warp/kitchen-stock/stock"

// =============================================================================
// OPTIONS
// =============================================================================

type options struct {
	clock     Clock
	publisher Publisher
	tracer    trace.Tracer
	log       zerolog.Logger
}

type Option func(*options)

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

func WithPublisher(p Publisher) Option { return func(o *options) { o.publisher = p } }

func WithTracer(t trace.Tracer) Option { return func(o *options) { o.tracer = t } }

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// =============================================================================
// KITCHEN
// =============================================================================

type Kitchen struct {
	store       Store
	clock       Clock
	catalog     *Catalog
	ledger      *Ledger
	projector   *Projector
	resolver    *Resolver
	coordinator *Coordinator
	log         zerolog.Logger
}

// Open builds a Kitchen over store and restores its state.
func Open(ctx context.Context, store Store, opts ...Option) (*Kitchen, error) {
	o := options{
		clock:     SystemClock,
		publisher: NopPublisher{},
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	catalog := NewCatalog(store)
	if err := catalog.Load(ctx); err != nil {
		return nil, err
	}
	ledger := NewLedger(store, catalog.HasIngredient, o.clock)
	if err := ledger.Init(ctx); err != nil {
		return nil, err
	}
	projector := NewProjector()
	if err := projector.Rebuild(ctx, ledger); err != nil {
		return nil, err
	}

	k := &Kitchen{
		store:     store,
		clock:     o.clock,
		catalog:   catalog,
		ledger:    ledger,
		projector: projector,
		resolver:  NewResolver(catalog, projector),
		log:       o.log,
	}
	k.coordinator = NewCoordinator(catalog, ledger, projector, o.publisher, o.tracer, o.log)

	o.log.Info().
		Int("ingredients", len(catalog.Ingredients())).
		Int64("ledger_seq", ledger.Sequence()).
		Msg("kitchen loaded")
	return k, nil
}

// =============================================================================
// STOCK INTENTS
// =============================================================================

// RecordSale deducts quantity units of a menu item and logs the sale.
func (k *Kitchen) RecordSale(ctx context.Context, menuID MenuID, quantity int) (SaleEntry, error) {
	intent, err := k.coordinator.Execute(ctx, IntentRecordSale, func() (Expansion, error) {
		return k.resolver.ResolveSale(menuID, quantity)
	})
	if err != nil {
		return SaleEntry{}, err
	}
	return *intent.Committed.Sale, nil
}

// ProduceBatch runs multiplier units of a batch recipe and returns the new
// balance of its target.
func (k *Kitchen) ProduceBatch(ctx context.Context, batchID BatchID, multiplier decimal.Decimal) (decimal.Decimal, error) {
	intent, err := k.coordinator.Execute(ctx, IntentProduceBatch, func() (Expansion, error) {
		return k.resolver.ResolveBatch(batchID, multiplier)
	})
	if err != nil {
		return decimal.Zero, err
	}
	for _, m := range intent.Committed.Movements {
		if m.Kind == MovementBatchProduction {
			return m.BalanceAfter, nil
		}
	}
	return decimal.Zero, nil
}

// AdjustStock sets an ingredient to a counted quantity.
func (k *Kitchen) AdjustStock(ctx context.Context, id IngredientID, newQuantity decimal.Decimal, reason string) (Movement, error) {
	return k.single(ctx, IntentAdjustStock, func() (Expansion, error) {
		return k.resolver.ResolveAdjustment(id, newQuantity, reason)
	})
}

// Restock records a supplier delivery.
func (k *Kitchen) Restock(ctx context.Context, id IngredientID, amount decimal.Decimal, note string) (Movement, error) {
	return k.single(ctx, IntentRestock, func() (Expansion, error) {
		return k.resolver.ResolveRestock(id, amount, note)
	})
}

func (k *Kitchen) single(ctx context.Context, kind IntentKind, resolve func() (Expansion, error)) (Movement, error) {
	intent, err := k.coordinator.Execute(ctx, kind, resolve)
	if err != nil {
		return Movement{}, err
	}
	return intent.Committed.Movements[0], nil
}

// =============================================================================
// INGREDIENTS
// =============================================================================

// RegisterIngredient creates an ingredient. A positive Quantity becomes its
// INITIAL movement, written in one store transaction with the definition;
// the ingredient is not visible until that transaction commits.
func (k *Kitchen) RegisterIngredient(ctx context.Context, ing Ingredient) (Ingredient, error) {
	if ing.Quantity.IsNegative() {
		return Ingredient{}, invalidInput("quantity", "initial stock must not be negative")
	}
	if ing.ID != "" && k.projector.HasHistory(ing.ID) {
		return Ingredient{}, invalidInput("id", "ingredient "+string(ing.ID)+" already has ledger history")
	}
	if !ing.Quantity.IsPositive() {
		created, err := k.catalog.CreateIngredient(ctx, ing)
		if err != nil {
			return Ingredient{}, err
		}
		return k.Ingredient(created.ID)
	}

	reserved, release, err := k.catalog.reserveIngredient(ing)
	if err != nil {
		return Ingredient{}, err
	}
	defer release()

	reserved.Quantity = ing.Quantity
	if _, err := k.coordinator.Execute(ctx, IntentRegisterIngredient, func() (Expansion, error) {
		return k.resolver.ResolveInitialStock(reserved)
	}); err != nil {
		return Ingredient{}, err
	}
	return k.Ingredient(reserved.ID)
}

// UpdateIngredient edits name, category, unit and threshold. Quantity is
// never touched.
func (k *Kitchen) UpdateIngredient(ctx context.Context, ing Ingredient) (Ingredient, error) {
	if _, err := k.catalog.UpdateIngredient(ctx, ing); err != nil {
		return Ingredient{}, err
	}
	return k.Ingredient(ing.ID)
}

// DeleteIngredient removes an unreferenced ingredient. Its movements stay in
// the ledger.
func (k *Kitchen) DeleteIngredient(ctx context.Context, id IngredientID) error {
	unlock := k.coordinator.lock(id)
	defer unlock()
	return k.catalog.DeleteIngredient(ctx, id)
}

func (k *Kitchen) Ingredient(id IngredientID) (Ingredient, error) {
	ing, err := k.catalog.Ingredient(id)
	if err != nil {
		return Ingredient{}, err
	}
	ing.Quantity = k.projector.CurrentBalance(id)
	return ing, nil
}

// Ingredients lists every ingredient with its current quantity.
func (k *Kitchen) Ingredients() []Ingredient {
	ings := k.catalog.Ingredients()
	ids := make([]IngredientID, len(ings))
	for i, ing := range ings {
		ids[i] = ing.ID
	}
	balances := k.projector.Snapshot(ids...)
	for i := range ings {
		ings[i].Quantity = balances[ings[i].ID]
	}
	return ings
}

// CurrentBalance returns the projected quantity of an ingredient.
func (k *Kitchen) CurrentBalance(id IngredientID) decimal.Decimal {
	return k.projector.CurrentBalance(id)
}

// =============================================================================
// MENUS & BATCH RECIPES
// =============================================================================

func (k *Kitchen) SaveMenu(ctx context.Context, m MenuItem) (MenuItem, error) {
	return k.catalog.UpsertMenu(ctx, m)
}

func (k *Kitchen) DeleteMenu(ctx context.Context, id MenuID) error {
	return k.catalog.DeleteMenu(ctx, id)
}

func (k *Kitchen) Menu(id MenuID) (MenuItem, error) { return k.catalog.Menu(id) }

func (k *Kitchen) Menus() []MenuItem { return k.catalog.Menus() }

func (k *Kitchen) SaveBatch(ctx context.Context, b BatchRecipe) (BatchRecipe, error) {
	return k.catalog.UpsertBatch(ctx, b)
}

func (k *Kitchen) DeleteBatch(ctx context.Context, id BatchID) error {
	return k.catalog.DeleteBatch(ctx, id)
}

func (k *Kitchen) Batch(id BatchID) (BatchRecipe, error) { return k.catalog.Batch(id) }

func (k *Kitchen) Batches() []BatchRecipe { return k.catalog.Batches() }

// =============================================================================
// QUERIES & REPORTS
// =============================================================================

// ListLowStock returns every LOW or OUT ingredient, OUT first.
func (k *Kitchen) ListLowStock(policy ThresholdPolicy) []LowStockItem {
	return lowStock(k.Ingredients(), policy)
}

// RestockSuggestions is the shopping list for the default policy.
func (k *Kitchen) RestockSuggestions() []RestockSuggestion {
	return restockSuggestions(k.ListLowStock(DefaultPolicy))
}

// HealthScore is the percentage of ingredients neither LOW nor OUT.
func (k *Kitchen) HealthScore() int {
	ings := k.Ingredients()
	return healthScore(len(ings), len(lowStock(ings, DefaultPolicy)))
}

// MovementHistory returns the movements of one ingredient, or of all when id
// is empty, oldest first. The sequence is lazy and restartable.
func (k *Kitchen) MovementHistory(ctx context.Context, id IngredientID, r DateRange) (iter.Seq2[Movement, error], error) {
	return k.Movements(ctx, MovementFilter{IngredientID: id, Range: r})
}

// Movements is MovementHistory with the full filter.
func (k *Kitchen) Movements(ctx context.Context, filter MovementFilter) (iter.Seq2[Movement, error], error) {
	if err := filter.Range.validate(); err != nil {
		return nil, err
	}
	for _, kind := range filter.Kinds {
		if !kind.Valid() {
			return nil, invalidInput("kind", "unknown movement kind "+string(kind))
		}
	}
	id := filter.IngredientID
	if id != "" && !k.catalog.HasIngredient(id) && !k.projector.HasHistory(id) {
		return nil, ingredientNotFound(id)
	}
	return k.ledger.Query(ctx, filter), nil
}

// SalesHistory lists sales log entries, newest first.
func (k *Kitchen) SalesHistory(ctx context.Context, filter SaleFilter) ([]SaleEntry, error) {
	if err := filter.Range.validate(); err != nil {
		return nil, err
	}
	var out []SaleEntry
	for s, err := range k.store.ScanSales(ctx, filter) {
		if err != nil {
			return nil, persistence("scan sales", err)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

// Usage totals DEDUCTION movements per ingredient over r.
func (k *Kitchen) Usage(ctx context.Context, r DateRange) ([]UsageLine, error) {
	seq, err := k.Movements(ctx, MovementFilter{Kinds: []MovementKind{MovementDeduction}, Range: r})
	if err != nil {
		return nil, err
	}
	byID := make(map[IngredientID]*UsageLine)
	for m, err := range seq {
		if err != nil {
			return nil, err
		}
		line, ok := byID[m.IngredientID]
		if !ok {
			line = &UsageLine{IngredientID: m.IngredientID, Name: string(m.IngredientID)}
			if ing, err := k.catalog.Ingredient(m.IngredientID); err == nil {
				line.Name, line.Unit = ing.Name, ing.Unit
			}
			byID[m.IngredientID] = line
		}
		line.Used = line.Used.Add(m.Amount)
		line.Movements++
	}
	out := make([]UsageLine, 0, len(byID))
	for _, l := range byID {
		out = append(out, *l)
	}
	sortUsage(out)
	return out, nil
}

// SalesSummary totals units sold per menu over r.
func (k *Kitchen) SalesSummary(ctx context.Context, r DateRange) ([]MenuSales, error) {
	sales, err := k.SalesHistory(ctx, SaleFilter{Range: r})
	if err != nil {
		return nil, err
	}
	byID := make(map[MenuID]*MenuSales)
	for _, s := range sales {
		line, ok := byID[s.MenuID]
		if !ok {
			line = &MenuSales{MenuID: s.MenuID, MenuName: s.MenuName}
			byID[s.MenuID] = line
		}
		line.Quantity += s.Quantity
		line.Sales++
	}
	out := make([]MenuSales, 0, len(byID))
	for _, l := range byID {
		out = append(out, *l)
	}
	sortMenuSales(out)
	return out, nil
}

// =============================================================================
// INTEGRITY & BACKUP
// =============================================================================

// Verify replays the ledger against the cached balances.
func (k *Kitchen) Verify(ctx context.Context) ([]Drift, error) {
	return k.projector.Verify(ctx, k.ledger)
}

// Backup is a full copy of the kitchen's state.
type Backup struct {
	ID          string
	ExportedAt  time.Time
	Ingredients []Ingredient
	Menus       []MenuItem
	Batches     []BatchRecipe
	Movements   []Movement
	Sales       []SaleEntry
}

// Export collects the catalog with current quantities, the whole ledger and
// the sales log.
func (k *Kitchen) Export(ctx context.Context) (Backup, error) {
	b := Backup{
		ID:          uuid.NewString(),
		ExportedAt:  k.clock.Now().UTC(),
		Ingredients: k.Ingredients(),
		Menus:       k.Menus(),
		Batches:     k.Batches(),
	}
	for m, err := range k.ledger.Query(ctx, MovementFilter{}) {
		if err != nil {
			return Backup{}, err
		}
		b.Movements = append(b.Movements, m)
	}
	for s, err := range k.store.ScanSales(ctx, SaleFilter{}) {
		if err != nil {
			return Backup{}, persistence("scan sales", err)
		}
		b.Sales = append(b.Sales, s)
	}
	return b, nil
}
