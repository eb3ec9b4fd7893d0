package stock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kitchen-stock/stock"
	"github.com/warp/kitchen-stock/stock/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newKitchen(t *testing.T, opts ...stock.Option) (*stock.Kitchen, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	k, err := stock.Open(context.Background(), mem, opts...)
	require.NoError(t, err)
	return k, mem
}

// seedPizzeria registers flour 1000 (min 200), tomato 3000 (min 500) and
// sauce 0 (min 100), a sauce batch turning 1500 tomato into 1000 sauce and a
// pizza using 100 flour and 50 sauce.
func seedPizzeria(t *testing.T, k *stock.Kitchen) {
	t.Helper()
	ctx := context.Background()
	for _, ing := range []stock.Ingredient{
		{ID: "flour", Name: "Flour", Unit: "g", Quantity: d("1000"), MinThreshold: d("200")},
		{ID: "tomato", Name: "Tomato", Unit: "g", Quantity: d("3000"), MinThreshold: d("500")},
		{ID: "sauce", Name: "Sauce", Unit: "ml", MinThreshold: d("100")},
	} {
		_, err := k.RegisterIngredient(ctx, ing)
		require.NoError(t, err)
	}
	_, err := k.SaveBatch(ctx, stock.BatchRecipe{
		ID: "sauce-batch", Name: "Tomato sauce", TargetID: "sauce", Yield: d("1000"),
		Recipe: stock.Recipe{{IngredientID: "tomato", Amount: d("1500")}},
	})
	require.NoError(t, err)
	_, err = k.SaveMenu(ctx, stock.MenuItem{
		ID: "pizza", Name: "Pizza", Price: d("9.50"),
		Recipe: stock.Recipe{
			{IngredientID: "flour", Amount: d("100")},
			{IngredientID: "sauce", Amount: d("50")},
		},
	})
	require.NoError(t, err)
}

func assertQty(t *testing.T, k *stock.Kitchen, id stock.IngredientID, want string) {
	t.Helper()
	got := k.CurrentBalance(id)
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", id, want, got)
}

func history(t *testing.T, k *stock.Kitchen, filter stock.MovementFilter) []stock.Movement {
	t.Helper()
	seq, err := k.Movements(context.Background(), filter)
	require.NoError(t, err)
	var out []stock.Movement
	for m, err := range seq {
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

// flakyStore fails every WithTx after fail is set. The wrapped transaction
// still runs, so partial writes must be rolled back by the store. during,
// when set, runs inside a failing transaction before it returns.
type flakyStore struct {
	stock.Store
	fail   atomic.Bool
	during func()
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) WithTx(ctx context.Context, fn func(stock.Store) error) error {
	if !f.fail.Load() {
		return f.Store.WithTx(ctx, fn)
	}
	return f.Store.WithTx(ctx, func(tx stock.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		if f.during != nil {
			f.during()
		}
		return errDiskFull
	})
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []stock.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e stock.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) ofType(t stock.EventType) []stock.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []stock.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// REGISTRATION
// =============================================================================

func TestRegisterIngredient_PositiveQuantity_WritesInitialMovement(t *testing.T) {
	// GIVEN: An empty kitchen
	// WHEN: Registering flour with 1000 g and sauce with nothing
	// THEN: Flour has one INITIAL movement, sauce has none

	k, _ := newKitchen(t)
	ctx := context.Background()

	flour, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour", Unit: "g", Quantity: d("1000")})
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(flour.Quantity))
	assert.Equal(t, stock.KindRaw, flour.Kind)

	_, err = k.RegisterIngredient(ctx, stock.Ingredient{ID: "sauce", Name: "Sauce", Unit: "ml"})
	require.NoError(t, err)

	ms := history(t, k, stock.MovementFilter{})
	require.Len(t, ms, 1)
	assert.Equal(t, stock.MovementInitial, ms[0].Kind)
	assert.Equal(t, stock.IngredientID("flour"), ms[0].IngredientID)
	assert.True(t, d("1000").Equal(ms[0].BalanceAfter))
	assert.Equal(t, int64(1), ms[0].Seq)
}

func TestRegisterIngredient_Rejections(t *testing.T) {
	k, _ := newKitchen(t)
	ctx := context.Background()
	_, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour", Unit: "g"})
	require.NoError(t, err)

	tests := []struct {
		name string
		ing  stock.Ingredient
	}{
		{"negative quantity", stock.Ingredient{ID: "x", Name: "X", Quantity: d("-1")}},
		{"missing name", stock.Ingredient{ID: "y"}},
		{"negative threshold", stock.Ingredient{ID: "z", Name: "Z", MinThreshold: d("-5")}},
		{"duplicate id", stock.Ingredient{ID: "flour", Name: "Flour again"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.RegisterIngredient(ctx, tt.ing)
			assert.ErrorIs(t, err, stock.ErrInvalidInput)
		})
	}
}

func TestRegisterIngredient_GeneratesID(t *testing.T) {
	k, _ := newKitchen(t)
	ing, err := k.RegisterIngredient(context.Background(), stock.Ingredient{Name: "Salt", Unit: "g", Quantity: d("5")})
	require.NoError(t, err)
	assert.NotEmpty(t, ing.ID)
	assertQty(t, k, ing.ID, "5")
}

func TestUpdateIngredient_NeverTouchesQuantity(t *testing.T) {
	// GIVEN: Flour at 1000
	// WHEN: Updating its metadata with a bogus quantity
	// THEN: Metadata changes, quantity stays 1000, no movement is written

	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	before := len(history(t, k, stock.MovementFilter{}))

	got, err := k.UpdateIngredient(context.Background(), stock.Ingredient{
		ID: "flour", Name: "Tipo 00", Category: "dry", Unit: "g", MinThreshold: d("300"), Quantity: d("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Tipo 00", got.Name)
	assert.True(t, d("300").Equal(got.MinThreshold))
	assertQty(t, k, "flour", "1000")
	assert.Len(t, history(t, k, stock.MovementFilter{}), before)

	_, err = k.UpdateIngredient(context.Background(), stock.Ingredient{ID: "ghost", Name: "Ghost"})
	assert.True(t, stock.IsNotFound(err))
}

// =============================================================================
// SALES
// =============================================================================

func TestRecordSale_PreparedIngredientShort_RejectedWithoutCascade(t *testing.T) {
	// GIVEN: Pizza needs 50 sauce, sauce is at 0 but tomato could make more
	// WHEN: Selling one pizza
	// THEN: InsufficientStock for sauce only, nothing moves, no batch is run

	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	before := history(t, k, stock.MovementFilter{})

	_, err := k.RecordSale(context.Background(), "pizza", 1)

	var short *stock.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Len(t, short.Shortfalls, 1)
	assert.Equal(t, stock.IngredientID("sauce"), short.Shortfalls[0].IngredientID)
	assert.True(t, d("50").Equal(short.Shortfalls[0].Required))
	assert.True(t, d("0").Equal(short.Shortfalls[0].Available))
	assert.True(t, d("50").Equal(short.Shortfalls[0].Missing()))

	assertQty(t, k, "flour", "1000")
	assertQty(t, k, "tomato", "3000")
	assert.Len(t, history(t, k, stock.MovementFilter{}), len(before))

	sales, err := k.SalesHistory(context.Background(), stock.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestRecordSale_AfterProduction_DeductsEveryLine(t *testing.T) {
	// GIVEN: One sauce batch produced
	// WHEN: Selling two pizzas
	// THEN: Flour 800, sauce 900, one sale entry and two DEDUCTION movements
	//       sharing the sale's reference and timestamp

	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	_, err := k.ProduceBatch(ctx, "sauce-batch", d("1"))
	require.NoError(t, err)

	sale, err := k.RecordSale(ctx, "pizza", 2)
	require.NoError(t, err)
	assert.Equal(t, stock.MenuID("pizza"), sale.MenuID)
	assert.Equal(t, "Pizza", sale.MenuName)
	assert.Equal(t, 2, sale.Quantity)
	assert.NotEmpty(t, sale.ID)

	assertQty(t, k, "flour", "800")
	assertQty(t, k, "sauce", "900")

	deductions := history(t, k, stock.MovementFilter{Kinds: []stock.MovementKind{stock.MovementDeduction}})
	var fromSale []stock.Movement
	for _, m := range deductions {
		if m.IngredientID != "tomato" {
			fromSale = append(fromSale, m)
		}
	}
	require.Len(t, fromSale, 2)
	assert.Equal(t, fromSale[0].Reference, fromSale[1].Reference)
	assert.Equal(t, fromSale[0].At, fromSale[1].At)
	assert.Equal(t, sale.At, fromSale[0].At)
	assert.Equal(t, fromSale[0].Seq+1, fromSale[1].Seq)

	sales, err := k.SalesHistory(ctx, stock.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, sale.ID, sales[0].ID)
}

func TestRecordSale_ExactlyAvailable_Succeeds(t *testing.T) {
	// GIVEN: Sauce adjusted to exactly 50
	// WHEN: Selling one pizza
	// THEN: It commits and sauce lands on 0 (OUT)

	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	_, err := k.AdjustStock(ctx, "sauce", d("50"), "count")
	require.NoError(t, err)

	_, err = k.RecordSale(ctx, "pizza", 1)
	require.NoError(t, err)
	assertQty(t, k, "sauce", "0")

	_, err = k.RecordSale(ctx, "pizza", 1)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)
}

func TestRecordSale_DuplicateRecipeLines_Aggregated(t *testing.T) {
	// GIVEN: A menu listing flour twice (60 + 50) with 100 flour in stock
	// WHEN: Selling one
	// THEN: The 110 total is checked and fails; with 110 in stock a single
	//       DEDUCTION of 110 is written

	k, _ := newKitchen(t)
	ctx := context.Background()
	_, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour", Unit: "g", Quantity: d("100")})
	require.NoError(t, err)
	_, err = k.SaveMenu(ctx, stock.MenuItem{ID: "bread", Name: "Bread", Recipe: stock.Recipe{
		{IngredientID: "flour", Amount: d("60")},
		{IngredientID: "flour", Amount: d("50")},
	}})
	require.NoError(t, err)

	_, err = k.RecordSale(ctx, "bread", 1)
	var short *stock.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Len(t, short.Shortfalls, 1)
	assert.True(t, d("110").Equal(short.Shortfalls[0].Required))

	_, err = k.Restock(ctx, "flour", d("10"), "top up")
	require.NoError(t, err)
	_, err = k.RecordSale(ctx, "bread", 1)
	require.NoError(t, err)

	ms := history(t, k, stock.MovementFilter{Kinds: []stock.MovementKind{stock.MovementDeduction}})
	require.Len(t, ms, 1)
	assert.True(t, d("110").Equal(ms[0].Amount))
	assertQty(t, k, "flour", "0")
}

func TestRecordSale_InvalidRequests(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	_, err := k.RecordSale(ctx, "pizza", 0)
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	_, err = k.RecordSale(ctx, "pizza", -3)
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	_, err = k.RecordSale(ctx, "calzone", 1)
	assert.ErrorIs(t, err, stock.ErrMenuNotFound)
	assert.True(t, stock.IsNotFound(err))
}

// =============================================================================
// BATCH PRODUCTION
// =============================================================================

func TestProduceBatch_PairsConsumptionAndYield(t *testing.T) {
	// GIVEN: Tomato 3000, sauce 0
	// WHEN: Producing one sauce batch
	// THEN: Tomato 1500, sauce 1000, one DEDUCTION and one BATCH_PRODUCTION
	//       committed together

	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	before := len(history(t, k, stock.MovementFilter{}))

	got, err := k.ProduceBatch(context.Background(), "sauce-batch", d("1"))
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(got))

	assertQty(t, k, "tomato", "1500")
	assertQty(t, k, "sauce", "1000")

	ms := history(t, k, stock.MovementFilter{})
	require.Len(t, ms, before+2)
	run := ms[before:]
	assert.Equal(t, stock.MovementDeduction, run[0].Kind)
	assert.Equal(t, stock.IngredientID("tomato"), run[0].IngredientID)
	assert.Equal(t, stock.MovementBatchProduction, run[1].Kind)
	assert.Equal(t, stock.IngredientID("sauce"), run[1].IngredientID)
	assert.Equal(t, run[0].Reference, run[1].Reference)
	assert.Equal(t, run[0].At, run[1].At)
}

func TestProduceBatch_FractionalMultiplier(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)

	got, err := k.ProduceBatch(context.Background(), "sauce-batch", d("0.5"))
	require.NoError(t, err)
	assert.True(t, d("500").Equal(got))
	assertQty(t, k, "tomato", "2250")
}

func TestProduceBatch_InsufficientInput_NothingMoves(t *testing.T) {
	// GIVEN: Tomato 3000
	// WHEN: Producing three batches (needs 4500)
	// THEN: Rejected, tomato and sauce unchanged

	k, _ := newKitchen(t)
	seedPizzeria(t, k)

	_, err := k.ProduceBatch(context.Background(), "sauce-batch", d("3"))
	var short *stock.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.True(t, d("4500").Equal(short.Shortfalls[0].Required))
	assertQty(t, k, "tomato", "3000")
	assertQty(t, k, "sauce", "0")
}

func TestProduceBatch_InvalidRequests(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	_, err := k.ProduceBatch(ctx, "sauce-batch", d("0"))
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	_, err = k.ProduceBatch(ctx, "sauce-batch", d("-1"))
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	_, err = k.ProduceBatch(ctx, "dough-batch", d("1"))
	assert.ErrorIs(t, err, stock.ErrBatchNotFound)
}

// =============================================================================
// ADJUSTMENTS & RESTOCK
// =============================================================================

func TestAdjustStock_RecordsSignedDelta(t *testing.T) {
	// GIVEN: Basil at 30
	// WHEN: A count finds 50, then a second count finds 45
	// THEN: ADJUSTMENT +20 landing on 50, then -5 landing on 45

	k, _ := newKitchen(t)
	ctx := context.Background()
	_, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "basil", Name: "Basil", Unit: "g", Quantity: d("30")})
	require.NoError(t, err)

	up, err := k.AdjustStock(ctx, "basil", d("50"), "recount")
	require.NoError(t, err)
	assert.Equal(t, stock.MovementAdjustment, up.Kind)
	assert.True(t, d("20").Equal(up.Amount))
	assert.True(t, d("50").Equal(up.BalanceAfter))
	assert.Equal(t, "recount", up.Note)

	down, err := k.AdjustStock(ctx, "basil", d("45"), "spoiled")
	require.NoError(t, err)
	assert.True(t, d("-5").Equal(down.Amount))
	assert.True(t, d("-5").Equal(down.Delta()))
	assertQty(t, k, "basil", "45")
}

func TestAdjustStock_Rejections(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	_, err := k.AdjustStock(ctx, "ghost", d("1"), "")
	assert.ErrorIs(t, err, stock.ErrIngredientNotFound)
	assertQty(t, k, "flour", "1000")
}

func TestAdjustStock_NegativeCount_RecordsOverdraw(t *testing.T) {
	// GIVEN: Flour at 1000
	// WHEN: A count records -2 (more was used than was ever booked in)
	// THEN: ADJUSTMENT -1002 lands on -2, flour is OUT and a delivery
	//       is stacked on top of the overdraw

	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	m, err := k.AdjustStock(ctx, "flour", d("-2"), "emergency overdraw")
	require.NoError(t, err)
	assert.True(t, d("-1002").Equal(m.Amount))
	assert.True(t, d("-2").Equal(m.BalanceAfter))
	assertQty(t, k, "flour", "-2")

	var status stock.StockStatus
	for _, item := range k.ListLowStock(stock.DefaultPolicy) {
		if item.ID == "flour" {
			status = item.Status
		}
	}
	assert.Equal(t, stock.StatusOut, status)

	_, err = k.RecordSale(ctx, "pizza", 1)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	_, err = k.Restock(ctx, "flour", d("12"), "")
	require.NoError(t, err)
	assertQty(t, k, "flour", "10")

	drifts, err := k.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestRestock_AddsDelivery(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()

	m, err := k.Restock(ctx, "flour", d("250.5"), "supplier A")
	require.NoError(t, err)
	assert.Equal(t, stock.MovementRestock, m.Kind)
	assert.True(t, d("1250.5").Equal(m.BalanceAfter))

	_, err = k.Restock(ctx, "flour", d("0"), "")
	assert.ErrorIs(t, err, stock.ErrInvalidInput)
}

// =============================================================================
// DURABILITY
// =============================================================================

func TestOpen_ReplaysLedgerAfterRestart(t *testing.T) {
	// GIVEN: A kitchen with production, sales and an adjustment
	// WHEN: Opening a second kitchen over the same store
	// THEN: Every balance is reproduced, nothing drifts and sequence
	//       numbers continue where the log ended

	k1, mem := newKitchen(t)
	seedPizzeria(t, k1)
	ctx := context.Background()
	_, err := k1.ProduceBatch(ctx, "sauce-batch", d("1"))
	require.NoError(t, err)
	_, err = k1.RecordSale(ctx, "pizza", 3)
	require.NoError(t, err)
	_, err = k1.AdjustStock(ctx, "tomato", d("1400"), "count")
	require.NoError(t, err)
	last := history(t, k1, stock.MovementFilter{})

	k2, err := stock.Open(ctx, mem)
	require.NoError(t, err)

	for _, id := range []stock.IngredientID{"flour", "tomato", "sauce"} {
		assert.True(t, k1.CurrentBalance(id).Equal(k2.CurrentBalance(id)), id)
	}
	sauce, err := k2.Ingredient("sauce")
	require.NoError(t, err)
	assert.Equal(t, stock.KindPrepared, sauce.Kind)

	drifts, err := k2.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	m, err := k2.Restock(ctx, "flour", d("1"), "")
	require.NoError(t, err)
	assert.Equal(t, last[len(last)-1].Seq+1, m.Seq)
	assert.False(t, m.At.Before(last[len(last)-1].At))
}

func TestCommit_StoreFailure_NothingApplied(t *testing.T) {
	// GIVEN: A store that fails every transaction after seeding
	// WHEN: Producing a batch
	// THEN: PersistenceError; balances, ledger and sales are untouched.
	//       Once the store recovers the same intent commits normally.

	flaky := &flakyStore{Store: store.NewMemory()}
	k, err := stock.Open(context.Background(), flaky)
	require.NoError(t, err)
	seedPizzeria(t, k)
	ctx := context.Background()
	before := len(history(t, k, stock.MovementFilter{}))

	flaky.fail.Store(true)
	_, err = k.ProduceBatch(ctx, "sauce-batch", d("1"))

	var perr *stock.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, stock.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, stock.IsClientError(err))
	assertQty(t, k, "tomato", "3000")
	assertQty(t, k, "sauce", "0")
	assert.Len(t, history(t, k, stock.MovementFilter{}), before)

	flaky.fail.Store(false)
	_, err = k.ProduceBatch(ctx, "sauce-batch", d("1"))
	require.NoError(t, err)
	assertQty(t, k, "sauce", "1000")

	drifts, err := k.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestRegisterIngredient_StoreFailure_RollsBackCatalogEntry(t *testing.T) {
	flaky := &flakyStore{Store: store.NewMemory()}
	k, err := stock.Open(context.Background(), flaky)
	require.NoError(t, err)

	flaky.fail.Store(true)
	_, err = k.RegisterIngredient(context.Background(), stock.Ingredient{ID: "flour", Name: "Flour", Quantity: d("10")})
	assert.ErrorIs(t, err, stock.ErrPersistence)

	_, err = k.Ingredient("flour")
	assert.True(t, stock.IsNotFound(err))
}

func TestRegisterIngredient_InvisibleUntilCommitted(t *testing.T) {
	// GIVEN: A registration of flour 10 whose store transaction fails
	// WHEN: While that transaction is open, other requests try to use flour
	// THEN: They all see no flour; afterwards flour is absent, nothing was
	//       written and the id can be registered again with INITIAL first

	flaky := &flakyStore{Store: store.NewMemory()}
	k, err := stock.Open(context.Background(), flaky)
	require.NoError(t, err)
	ctx := context.Background()

	var menuErr, adjustErr, dupErr error
	flaky.during = func() {
		_, menuErr = k.SaveMenu(ctx, stock.MenuItem{ID: "bread", Name: "Bread",
			Recipe: stock.Recipe{{IngredientID: "flour", Amount: d("1")}}})
		_, adjustErr = k.Restock(ctx, "flour", d("5"), "")
		_, dupErr = k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour"})
	}
	flaky.fail.Store(true)

	_, err = k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour", Unit: "g", Quantity: d("10")})
	require.ErrorIs(t, err, stock.ErrPersistence)

	assert.ErrorIs(t, menuErr, stock.ErrInvalidInput)
	assert.True(t, stock.IsNotFound(adjustErr))
	assert.ErrorIs(t, dupErr, stock.ErrInvalidInput)

	_, err = k.Ingredient("flour")
	assert.True(t, stock.IsNotFound(err))
	_, err = k.Menu("bread")
	assert.True(t, stock.IsNotFound(err))
	ings, err := flaky.ListIngredients(ctx)
	require.NoError(t, err)
	assert.Empty(t, ings)
	assert.Empty(t, history(t, k, stock.MovementFilter{}))

	flaky.during = nil
	flaky.fail.Store(false)
	ing, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour", Unit: "g", Quantity: d("10")})
	require.NoError(t, err)
	assert.True(t, d("10").Equal(ing.Quantity))
	ms := history(t, k, stock.MovementFilter{IngredientID: "flour"})
	require.Len(t, ms, 1)
	assert.Equal(t, stock.MovementInitial, ms[0].Kind)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRecordSale_ConcurrentSales_NeverOversell(t *testing.T) {
	// GIVEN: Flour 1000 and bread using 100 flour
	// WHEN: 25 sales race for it
	// THEN: Exactly 10 commit, flour ends at 0, the rest fail with a client
	//       or retryable error and the ledger verifies clean

	k, _ := newKitchen(t)
	ctx := context.Background()
	_, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "flour", Name: "Flour", Unit: "g", Quantity: d("1000")})
	require.NoError(t, err)
	_, err = k.SaveMenu(ctx, stock.MenuItem{ID: "bread", Name: "Bread", Recipe: stock.Recipe{{IngredientID: "flour", Amount: d("100")}}})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		committed atomic.Int32
		unknown   atomic.Int32
	)
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := k.RecordSale(ctx, "bread", 1)
			switch {
			case err == nil:
				committed.Add(1)
			case stock.IsClientError(err), stock.IsRetryable(err):
			default:
				unknown.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), committed.Load())
	assert.Zero(t, unknown.Load())
	assertQty(t, k, "flour", "0")

	ms := history(t, k, stock.MovementFilter{IngredientID: "flour"})
	for i := 1; i < len(ms); i++ {
		assert.Greater(t, ms[i].Seq, ms[i-1].Seq)
		assert.False(t, ms[i].At.Before(ms[i-1].At))
		assert.False(t, ms[i].BalanceAfter.IsNegative())
	}

	drifts, err := k.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestMovementHistory_Filters(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()
	_, err := k.ProduceBatch(ctx, "sauce-batch", d("1"))
	require.NoError(t, err)

	seq, err := k.MovementHistory(ctx, "tomato", stock.DateRange{})
	require.NoError(t, err)
	var kinds []stock.MovementKind
	for m, err := range seq {
		require.NoError(t, err)
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []stock.MovementKind{stock.MovementInitial, stock.MovementDeduction}, kinds)

	// The sequence is restartable.
	n := 0
	for range seq {
		n++
	}
	assert.Equal(t, 2, n)

	future := stock.DateRange{From: time.Now().Add(time.Hour)}
	assert.Empty(t, history(t, k, stock.MovementFilter{Range: future}))

	_, err = k.MovementHistory(ctx, "", stock.DateRange{From: time.Now(), To: time.Now().Add(-time.Hour)})
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	_, err = k.MovementHistory(ctx, "ghost", stock.DateRange{})
	assert.True(t, stock.IsNotFound(err))

	_, err = k.Movements(ctx, stock.MovementFilter{Kinds: []stock.MovementKind{"SPILL"}})
	assert.ErrorIs(t, err, stock.ErrInvalidInput)
}

func TestMovementHistory_DeletedIngredientKeepsHistory(t *testing.T) {
	k, _ := newKitchen(t)
	ctx := context.Background()
	_, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "saffron", Name: "Saffron", Quantity: d("2")})
	require.NoError(t, err)
	require.NoError(t, k.DeleteIngredient(ctx, "saffron"))

	ms := history(t, k, stock.MovementFilter{IngredientID: "saffron"})
	assert.Len(t, ms, 1)
}

func TestClock_SteppingBackwards_KeepsTimestampsMonotonic(t *testing.T) {
	clock := &stepClock{times: []time.Time{
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}}
	k, _ := newKitchen(t, stock.WithClock(clock))
	ctx := context.Background()
	_, err := k.RegisterIngredient(ctx, stock.Ingredient{ID: "salt", Name: "Salt", Quantity: d("1")})
	require.NoError(t, err)
	_, err = k.Restock(ctx, "salt", d("1"), "")
	require.NoError(t, err)

	ms := history(t, k, stock.MovementFilter{})
	require.Len(t, ms, 2)
	assert.Equal(t, ms[0].At, ms[1].At)
}

type stepClock struct {
	mu    sync.Mutex
	times []time.Time
	i     int
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.times[min(c.i, len(c.times)-1)]
	c.i++
	return t
}

// =============================================================================
// REPORTS & EVENTS
// =============================================================================

func TestReports_RestockAndHealth(t *testing.T) {
	// GIVEN: Flour OK, butter LOW (1 of min 2.5), yeast OUT (min 2.5)
	// THEN: Yeast buys ceil(5)=5, butter tops up ceil(5-1)=4, OUT first,
	//       health is round(1/3*100)=33

	k, _ := newKitchen(t)
	ctx := context.Background()
	for _, ing := range []stock.Ingredient{
		{ID: "flour", Name: "Flour", Quantity: d("50"), MinThreshold: d("10")},
		{ID: "butter", Name: "Butter", Quantity: d("1"), MinThreshold: d("2.5")},
		{ID: "yeast", Name: "Yeast", MinThreshold: d("2.5")},
	} {
		_, err := k.RegisterIngredient(ctx, ing)
		require.NoError(t, err)
	}

	low := k.ListLowStock(stock.DefaultPolicy)
	require.Len(t, low, 2)
	assert.Equal(t, stock.IngredientID("yeast"), low[0].ID)
	assert.Equal(t, stock.StatusOut, low[0].Status)
	assert.Equal(t, stock.StatusLow, low[1].Status)

	sugg := k.RestockSuggestions()
	require.Len(t, sugg, 2)
	assert.True(t, d("5").Equal(sugg[0].Buy))
	assert.True(t, d("4").Equal(sugg[1].Buy))

	assert.Equal(t, 33, k.HealthScore())

	// A factor of 6 pulls flour (50 <= 60) into LOW too.
	assert.Len(t, k.ListLowStock(stock.ThresholdPolicy{Factor: d("6")}), 3)
}

func TestReports_UsageAndSalesSummary(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()
	_, err := k.ProduceBatch(ctx, "sauce-batch", d("1"))
	require.NoError(t, err)
	_, err = k.RecordSale(ctx, "pizza", 2)
	require.NoError(t, err)
	_, err = k.RecordSale(ctx, "pizza", 1)
	require.NoError(t, err)

	usage, err := k.Usage(ctx, stock.DateRange{})
	require.NoError(t, err)
	require.Len(t, usage, 3)
	assert.Equal(t, stock.IngredientID("tomato"), usage[0].IngredientID)
	assert.True(t, d("1500").Equal(usage[0].Used))
	assert.Equal(t, stock.IngredientID("flour"), usage[1].IngredientID)
	assert.True(t, d("300").Equal(usage[1].Used))
	assert.Equal(t, 2, usage[1].Movements)

	summary, err := k.SalesSummary(ctx, stock.DateRange{})
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 3, summary[0].Quantity)
	assert.Equal(t, 2, summary[0].Sales)

	sales, err := k.SalesHistory(ctx, stock.SaleFilter{MenuID: "pizza"})
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.False(t, sales[0].At.Before(sales[1].At))
}

func TestEvents_CommittedAndLowStock(t *testing.T) {
	// GIVEN: Flour 1000 (min 200) with a publisher attached
	// WHEN: Selling pizzas until flour crosses into LOW, then once more
	// THEN: Every commit publishes movements.committed, and stock.low fires
	//       only on the commit that changed flour's status

	pub := &recordingPublisher{}
	k, _ := newKitchen(t, stock.WithPublisher(pub))
	seedPizzeria(t, k)
	ctx := context.Background()
	_, err := k.AdjustStock(ctx, "sauce", d("1000"), "")
	require.NoError(t, err)
	_, err = k.AdjustStock(ctx, "flour", d("300"), "")
	require.NoError(t, err)
	pub.mu.Lock()
	pub.events = nil
	pub.mu.Unlock()

	_, err = k.RecordSale(ctx, "pizza", 1) // flour 200: LOW
	require.NoError(t, err)
	_, err = k.RecordSale(ctx, "pizza", 1) // flour 100: still LOW
	require.NoError(t, err)

	committed := pub.ofType(stock.EventMovementsCommitted)
	require.Len(t, committed, 2)
	assert.Equal(t, stock.IntentRecordSale, committed[0].Intent)
	assert.Len(t, committed[0].Movements, 2)
	require.NotNil(t, committed[0].Sale)

	low := pub.ofType(stock.EventStockLow)
	require.Len(t, low, 1)
	assert.Equal(t, stock.IngredientID("flour"), low[0].IngredientID)
	assert.Equal(t, stock.StatusLow, low[0].Status)
	assert.True(t, d("200").Equal(low[0].Quantity))
}

func TestEvents_PublisherFailure_DoesNotFailIntent(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	k, _ := newKitchen(t, stock.WithPublisher(pub))
	seedPizzeria(t, k)

	_, err := k.Restock(context.Background(), "flour", d("1"), "")
	require.NoError(t, err)
	assertQty(t, k, "flour", "1001")
	assert.NotEmpty(t, pub.ofType(stock.EventMovementsCommitted))
}

// =============================================================================
// BACKUP
// =============================================================================

func TestExport_ContainsCatalogLedgerAndSales(t *testing.T) {
	k, _ := newKitchen(t)
	seedPizzeria(t, k)
	ctx := context.Background()
	_, err := k.ProduceBatch(ctx, "sauce-batch", d("1"))
	require.NoError(t, err)
	_, err = k.RecordSale(ctx, "pizza", 1)
	require.NoError(t, err)

	b, err := k.Export(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Len(t, b.Ingredients, 3)
	assert.Len(t, b.Menus, 1)
	assert.Len(t, b.Batches, 1)
	assert.Len(t, b.Movements, 6)
	assert.Len(t, b.Sales, 1)
}
