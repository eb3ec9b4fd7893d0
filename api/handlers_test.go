/*
handlers_test.go - HTTP tests for the stock API

Tests for:
- Intent endpoints and their status codes
- Error mapping (404/400/409/422)
- Reports, scenarios and admin endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kitchen-stock/stock"
	"github.com/warp/kitchen-stock/stock/store"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	k      *stock.Kitchen
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	k, err := stock.Open(context.Background(), store.NewMemory())
	require.NoError(t, err)
	h := NewHandler(k, zerolog.Nop())
	return &testServer{t: t, router: NewRouter(h, RouterOptions{}), k: k}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedPizza registers flour, sauce (prepared by a batch) and a pizza.
func (s *testServer) seedPizza() {
	s.t.Helper()
	for _, ing := range []map[string]any{
		{"id": "flour", "name": "Flour", "unit": "g", "quantity": "1000", "min_threshold": "200"},
		{"id": "tomato", "name": "Tomato", "unit": "g", "quantity": "3000", "min_threshold": "500"},
		{"id": "sauce", "name": "Sauce", "unit": "ml", "quantity": "0", "min_threshold": "100"},
	} {
		rec := s.do(http.MethodPost, "/api/ingredients", ing)
		require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(http.MethodPost, "/api/batches", map[string]any{
		"id": "sauce-batch", "name": "Sauce", "target_id": "sauce", "yield": "1000",
		"recipe": []map[string]any{{"ingredient_id": "tomato", "amount": "1500"}},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/menus", map[string]any{
		"id": "pizza", "name": "Pizza", "price": "9.5",
		"recipe": []map[string]any{
			{"ingredient_id": "flour", "amount": "100"},
			{"ingredient_id": "sauce", "amount": "50"},
		},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateIngredient_OpeningStockAndDecimalStrings(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(http.MethodPost, "/api/ingredients", map[string]any{
		"id": "flour", "name": "Flour", "unit": "g", "quantity": 1000, "min_threshold": "200",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	raw := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "1000", raw["quantity"])
	assert.Equal(t, "RAW", raw["kind"])
	assert.Equal(t, "OK", raw["status"])

	movs := decodeBody[[]MovementDTO](t, s.do(http.MethodGet, "/api/ingredients/flour/movements", nil))
	require.Len(t, movs, 1)
	assert.Equal(t, "INITIAL", movs[0].Kind)
}

func TestRecordSale_ThenInsufficientIs422(t *testing.T) {
	// GIVEN: a pizza whose sauce is only made by batch
	s := setupTestServer(t)
	s.seedPizza()

	// WHEN: selling before any sauce exists
	rec := s.do(http.MethodPost, "/api/menus/pizza/sales", SaleRequest{Quantity: 1})

	// THEN: 422 lists the sauce shortfall and nothing moved
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var resp struct {
		Code    string         `json:"code"`
		Details []ShortfallDTO `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_stock", resp.Code)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "sauce", resp.Details[0].IngredientID)
	assert.True(t, resp.Details[0].Missing.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.k.CurrentBalance("flour").Equal(decimal.NewFromInt(1000)))

	// WHEN: a batch is produced and the sale retried
	rec = s.do(http.MethodPost, "/api/batches/sauce-batch/produce", ProduceRequest{Multiplier: decimal.NewFromInt(1)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	produced := decodeBody[ProduceResponse](t, rec)
	assert.Equal(t, "sauce", produced.TargetID)
	assert.True(t, produced.NewQuantity.Equal(decimal.NewFromInt(1000)))

	rec = s.do(http.MethodPost, "/api/menus/pizza/sales", SaleRequest{Quantity: 2})

	// THEN: the sale is logged and both ingredients drop
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[SaleDTO](t, rec)
	assert.Equal(t, "Pizza", sale.MenuName)
	assert.Equal(t, 2, sale.Quantity)
	assert.True(t, s.k.CurrentBalance("flour").Equal(decimal.NewFromInt(800)))
	assert.True(t, s.k.CurrentBalance("sauce").Equal(decimal.NewFromInt(900)))

	sales := decodeBody[[]SaleDTO](t, s.do(http.MethodGet, "/api/sales", nil))
	assert.Len(t, sales, 1)
}

func TestAdjustAndRestock(t *testing.T) {
	s := setupTestServer(t)
	s.seedPizza()

	rec := s.do(http.MethodPost, "/api/ingredients/flour/adjust", AdjustRequest{NewQuantity: decimal.NewFromInt(950), Reason: "count"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m := decodeBody[MovementDTO](t, rec)
	assert.Equal(t, "ADJUSTMENT", m.Kind)
	assert.True(t, m.Amount.Equal(decimal.NewFromInt(-50)))
	assert.True(t, m.BalanceAfter.Equal(decimal.NewFromInt(950)))

	rec = s.do(http.MethodPost, "/api/ingredients/flour/restock", RestockRequest{Amount: decimal.NewFromInt(50), Note: "delivery"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	m = decodeBody[MovementDTO](t, rec)
	assert.Equal(t, "RESTOCK", m.Kind)
	assert.True(t, m.BalanceAfter.Equal(decimal.NewFromInt(1000)))

	rec = s.do(http.MethodPost, "/api/ingredients/flour/restock", RestockRequest{Amount: decimal.Zero})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s := setupTestServer(t)
	s.seedPizza()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown ingredient", http.MethodGet, "/api/ingredients/ghost", nil, http.StatusNotFound, "not_found"},
		{"unknown menu sale", http.MethodPost, "/api/menus/ghost/sales", SaleRequest{Quantity: 1}, http.StatusNotFound, "not_found"},
		{"unknown batch", http.MethodPost, "/api/batches/ghost/produce", ProduceRequest{Multiplier: decimal.NewFromInt(1)}, http.StatusNotFound, "not_found"},
		{"zero quantity sale", http.MethodPost, "/api/menus/pizza/sales", SaleRequest{Quantity: 0}, http.StatusBadRequest, "invalid_input"},
		{"negative adjust", http.MethodPost, "/api/ingredients/flour/adjust", AdjustRequest{NewQuantity: decimal.NewFromInt(-1)}, http.StatusBadRequest, "invalid_input"},
		{"referenced delete", http.MethodDelete, "/api/ingredients/flour", nil, http.StatusConflict, "referenced_by_recipe"},
		{"bad date", http.MethodGet, "/api/movements?from=yesterday", nil, http.StatusBadRequest, "invalid_input"},
		{"bad kind", http.MethodGet, "/api/movements?kind=theft", nil, http.StatusBadRequest, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
		})
	}

	rec := s.do(http.MethodPost, "/api/menus/pizza/sales", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateIngredient_NeverTouchesQuantity(t *testing.T) {
	s := setupTestServer(t)
	s.seedPizza()

	rec := s.do(http.MethodPut, "/api/ingredients/flour", IngredientRequest{
		Name: "Tipo 00", Unit: "g", Quantity: decimal.NewFromInt(5), MinThreshold: decimal.NewFromInt(300),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[IngredientDTO](t, rec)
	assert.Equal(t, "Tipo 00", got.Name)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.MinThreshold.Equal(decimal.NewFromInt(300)))
}

func TestReports(t *testing.T) {
	// GIVEN: a seeded pizzeria with one batch and three pizzas sold
	s := setupTestServer(t)
	s.seedPizza()
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/batches/sauce-batch/produce", ProduceRequest{Multiplier: decimal.NewFromInt(1)}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/menus/pizza/sales", SaleRequest{Quantity: 3}).Code)
	// flour 700 (OK), tomato 1500 (OK), sauce 850 (OK)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/ingredients/flour/adjust", AdjustRequest{NewQuantity: decimal.NewFromInt(150)}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/ingredients/tomato/adjust", AdjustRequest{NewQuantity: decimal.Zero}).Code)

	// WHEN/THEN: low stock puts OUT first
	low := decodeBody[[]LowStockDTO](t, s.do(http.MethodGet, "/api/reports/low-stock", nil))
	require.Len(t, low, 2)
	assert.Equal(t, "tomato", low[0].ID)
	assert.Equal(t, "OUT_OF_STOCK", low[0].Status)
	assert.Equal(t, "flour", low[1].ID)
	assert.Equal(t, "LOW", low[1].Status)

	// restock: OUT buys ceil(2*500)=1000, LOW buys ceil(2*200-150)=250
	restock := decodeBody[[]RestockSuggestionDTO](t, s.do(http.MethodGet, "/api/reports/restock", nil))
	require.Len(t, restock, 2)
	assert.True(t, restock[0].Buy.Equal(decimal.NewFromInt(1000)))
	assert.True(t, restock[1].Buy.Equal(decimal.NewFromInt(250)))

	health := decodeBody[HealthDTO](t, s.do(http.MethodGet, "/api/reports/health", nil))
	assert.Equal(t, 33, health.Score)
	assert.Equal(t, 1, health.Low)
	assert.Equal(t, 1, health.Out)

	usage := decodeBody[[]UsageDTO](t, s.do(http.MethodGet, "/api/reports/usage", nil))
	byID := map[string]UsageDTO{}
	for _, u := range usage {
		byID[u.IngredientID] = u
	}
	assert.True(t, byID["tomato"].Used.Equal(decimal.NewFromInt(1500)))
	assert.True(t, byID["flour"].Used.Equal(decimal.NewFromInt(300)))
	assert.True(t, byID["sauce"].Used.Equal(decimal.NewFromInt(150)))

	sales := decodeBody[[]MenuSalesDTO](t, s.do(http.MethodGet, "/api/reports/sales", nil))
	require.Len(t, sales, 1)
	assert.Equal(t, 3, sales[0].Quantity)

	// a wider factor marks sauce (850 <= 100*10) as LOW as well
	wide := decodeBody[[]LowStockDTO](t, s.do(http.MethodGet, "/api/reports/low-stock?factor=10", nil))
	assert.Len(t, wide, 3)
}

func TestMovements_FilterByKindAndLimit(t *testing.T) {
	s := setupTestServer(t)
	s.seedPizza()
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/batches/sauce-batch/produce", ProduceRequest{Multiplier: decimal.NewFromInt(1)}).Code)

	all := decodeBody[[]MovementDTO](t, s.do(http.MethodGet, "/api/movements", nil))
	assert.Len(t, all, 4) // 2 INITIAL + DEDUCTION + BATCH_PRODUCTION
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Seq, all[i-1].Seq)
	}

	prod := decodeBody[[]MovementDTO](t, s.do(http.MethodGet, "/api/movements?kind=batch_production", nil))
	require.Len(t, prod, 1)
	assert.Equal(t, "sauce", prod[0].IngredientID)

	limited := decodeBody[[]MovementDTO](t, s.do(http.MethodGet, "/api/movements?limit=1", nil))
	assert.Len(t, limited, 1)

	future := decodeBody[[]MovementDTO](t, s.do(http.MethodGet, "/api/movements?from=2999-01-01", nil))
	assert.Empty(t, future)
}

func TestScenarios_LoadAndCurrent(t *testing.T) {
	s := setupTestServer(t)

	list := decodeBody[[]ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios", nil))
	assert.NotEmpty(t, list)

	rec := s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "cafe"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current := decodeBody[ScenarioDTO](t, s.do(http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "cafe", current.ID)

	// oat milk starts at zero
	oat, err := s.k.Ingredient("cf-oat")
	require.NoError(t, err)
	assert.Equal(t, stock.StatusOut, stock.DefaultPolicy.Classify(oat))

	rec = s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_VerifyExportImport(t *testing.T) {
	s := setupTestServer(t)
	s.seedPizza()

	verify := decodeBody[VerifyResponse](t, s.do(http.MethodPost, "/api/admin/verify", nil))
	assert.True(t, verify.OK)
	assert.Empty(t, verify.Drifts)

	rec := s.do(http.MethodGet, "/api/admin/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "kitchen-backup-")
	var backup struct {
		Catalog struct {
			Ingredients []map[string]any `json:"ingredients"`
		} `json:"catalog"`
		Movements []map[string]any `json:"movements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backup))
	assert.Len(t, backup.Catalog.Ingredients, 3)
	assert.Len(t, backup.Movements, 2)

	rec = s.do(http.MethodPost, "/api/admin/import", map[string]any{
		"ingredients": []map[string]any{
			{"id": "basil", "name": "Basil", "unit": "g", "quantity": "40", "min_threshold": "10"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	imp := decodeBody[ImportResponse](t, rec)
	assert.Equal(t, 1, imp.Result.IngredientsCreated)
	assert.True(t, s.k.CurrentBalance("basil").Equal(decimal.NewFromInt(40)))
}

func TestHealthz(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody[HealthzResponse](t, rec).Integrity)
}

func TestHealthz_ReportsLastIntegrityPass(t *testing.T) {
	// GIVEN: A router wired to an integrity scheduler
	// WHEN: Asking before and after one verification pass
	// THEN: last_run appears only after the pass, with its drift count

	s := setupTestServer(t)
	sched := NewIntegrityScheduler(s.k, 0, zerolog.Nop())
	router := NewRouter(NewHandler(s.k, zerolog.Nop()), RouterOptions{Integrity: sched})

	get := func() HealthzResponse {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeBody[HealthzResponse](t, rec)
	}

	before := get()
	require.NotNil(t, before.Integrity)
	assert.Nil(t, before.Integrity.LastRun)

	assert.Equal(t, 0, sched.Check(context.Background()))
	after := get()
	require.NotNil(t, after.Integrity.LastRun)
	assert.Equal(t, 0, after.Integrity.Drifts)
	at, drifts := sched.LastRun()
	assert.True(t, at.Equal(*after.Integrity.LastRun))
	assert.Equal(t, 0, drifts)
}
