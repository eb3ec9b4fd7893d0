/*
handlers.go - HTTP API handlers for the kitchen stock service

PURPOSE:
  Exposes the stock engine via REST API. Handles HTTP request/response and
  JSON serialization, and delegates every decision to stock.Kitchen.

ENDPOINTS:
  Ingredients:
    GET    /api/ingredients                  List with quantities
    POST   /api/ingredients                  Register (quantity = opening stock)
    GET    /api/ingredients/{id}             One ingredient
    PUT    /api/ingredients/{id}             Edit metadata (never quantity)
    DELETE /api/ingredients/{id}             Delete if unreferenced
    POST   /api/ingredients/{id}/adjust      Stock count correction
    POST   /api/ingredients/{id}/restock     Supplier delivery
    GET    /api/ingredients/{id}/movements   Ledger for one ingredient

  Menus and batches:
    GET/POST /api/menus, GET/PUT/DELETE /api/menus/{id}
    POST   /api/menus/{id}/sales             Record a sale
    GET/POST /api/batches, GET/PUT/DELETE /api/batches/{id}
    POST   /api/batches/{id}/produce         Run a batch

  Ledger and reports:
    GET    /api/movements                    ?ingredient_id&kind&from&to&limit
    GET    /api/sales                        ?menu_id&from&to
    GET    /api/reports/low-stock            ?factor
    GET    /api/reports/restock
    GET    /api/reports/usage                ?from&to
    GET    /api/reports/sales                ?from&to
    GET    /api/reports/health

  Admin:
    POST   /api/admin/verify                 Replay ledger against cache
    GET    /api/admin/export                 Full backup document
    POST   /api/admin/import                 Apply a catalog document

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Unknown ingredient, menu or batch
  - 409: Referenced by recipe, concurrent modification
  - 422: Insufficient stock (details list every shortfall)
  - 503: Store unavailable
  - 500: Anything else

DATES:
  from/to accept RFC 3339 or YYYY-MM-DD. A bare date in "to" covers the
  whole day.

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo catalogs
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"

	"github.com/warp/kitchen-stock/factory"
	"github.com/warp/kitchen-stock/stock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Kitchen *stock.Kitchen
	Factory *factory.CatalogFactory
	Log     zerolog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over k.
func NewHandler(k *stock.Kitchen, log zerolog.Logger) *Handler {
	return &Handler{
		Kitchen: k,
		Factory: factory.NewCatalogFactory(),
		Log:     log,
	}
}

// =============================================================================
// INGREDIENT ENDPOINTS
// =============================================================================

// ListIngredients returns every ingredient with its current quantity.
// GET /api/ingredients
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ings := h.Kitchen.Ingredients()
	out := make([]IngredientDTO, 0, len(ings))
	for _, ing := range ings {
		out = append(out, toIngredientDTO(ing))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateIngredient registers an ingredient with its opening stock.
// POST /api/ingredients
func (h *Handler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req IngredientRequest
	if !decode(w, r, &req) {
		return
	}
	ing, err := h.Kitchen.RegisterIngredient(r.Context(), req.toIngredient())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIngredientDTO(ing))
}

// GetIngredient returns one ingredient.
// GET /api/ingredients/{id}
func (h *Handler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	ing, err := h.Kitchen.Ingredient(stock.IngredientID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientDTO(ing))
}

// UpdateIngredient edits name, category, unit and threshold.
// PUT /api/ingredients/{id}
func (h *Handler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	var req IngredientRequest
	if !decode(w, r, &req) {
		return
	}
	ing := req.toIngredient()
	ing.ID = stock.IngredientID(chi.URLParam(r, "id"))
	updated, err := h.Kitchen.UpdateIngredient(r.Context(), ing)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIngredientDTO(updated))
}

// DeleteIngredient removes an ingredient no recipe references.
// DELETE /api/ingredients/{id}
func (h *Handler) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	if err := h.Kitchen.DeleteIngredient(r.Context(), stock.IngredientID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock sets an ingredient to a counted quantity.
// POST /api/ingredients/{id}/adjust
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Kitchen.AdjustStock(r.Context(), stock.IngredientID(chi.URLParam(r, "id")), req.NewQuantity, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(m))
}

// Restock records a supplier delivery.
// POST /api/ingredients/{id}/restock
func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Kitchen.Restock(r.Context(), stock.IngredientID(chi.URLParam(r, "id")), req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(m))
}

// GetIngredientMovements returns the ledger of one ingredient, oldest first.
// GET /api/ingredients/{id}/movements
func (h *Handler) GetIngredientMovements(w http.ResponseWriter, r *http.Request) {
	filter, limit, err := movementFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	filter.IngredientID = stock.IngredientID(chi.URLParam(r, "id"))
	h.writeMovements(w, r, filter, limit)
}

// =============================================================================
// MENU ENDPOINTS
// =============================================================================

// GET /api/menus
func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus := h.Kitchen.Menus()
	out := make([]MenuDTO, 0, len(menus))
	for _, m := range menus {
		out = append(out, toMenuDTO(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/menus
func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var req MenuDTO
	if !decode(w, r, &req) {
		return
	}
	m, err := h.Kitchen.SaveMenu(r.Context(), req.toMenu())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMenuDTO(m))
}

// GET /api/menus/{id}
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	m, err := h.Kitchen.Menu(stock.MenuID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuDTO(m))
}

// PUT /api/menus/{id}
func (h *Handler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	id := stock.MenuID(chi.URLParam(r, "id"))
	if _, err := h.Kitchen.Menu(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req MenuDTO
	if !decode(w, r, &req) {
		return
	}
	menu := req.toMenu()
	menu.ID = id
	m, err := h.Kitchen.SaveMenu(r.Context(), menu)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuDTO(m))
}

// DELETE /api/menus/{id}
func (h *Handler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	if err := h.Kitchen.DeleteMenu(r.Context(), stock.MenuID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordSale deducts every recipe ingredient of the menu item.
// POST /api/menus/{id}/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !decode(w, r, &req) {
		return
	}
	sale, err := h.Kitchen.RecordSale(r.Context(), stock.MenuID(chi.URLParam(r, "id")), req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

// GET /api/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches := h.Kitchen.Batches()
	out := make([]BatchDTO, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchDTO
	if !decode(w, r, &req) {
		return
	}
	b, err := h.Kitchen.SaveBatch(r.Context(), req.toBatch())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(b))
}

// GET /api/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.Kitchen.Batch(stock.BatchID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}

// PUT /api/batches/{id}
func (h *Handler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	id := stock.BatchID(chi.URLParam(r, "id"))
	if _, err := h.Kitchen.Batch(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req BatchDTO
	if !decode(w, r, &req) {
		return
	}
	batch := req.toBatch()
	batch.ID = id
	b, err := h.Kitchen.SaveBatch(r.Context(), batch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(b))
}

// DELETE /api/batches/{id}
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.Kitchen.DeleteBatch(r.Context(), stock.BatchID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProduceBatch consumes sub-ingredients and adds the yield to the target.
// POST /api/batches/{id}/produce
func (h *Handler) ProduceBatch(w http.ResponseWriter, r *http.Request) {
	var req ProduceRequest
	if !decode(w, r, &req) {
		return
	}
	id := stock.BatchID(chi.URLParam(r, "id"))
	qty, err := h.Kitchen.ProduceBatch(r.Context(), id, req.Multiplier)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := ProduceResponse{BatchID: string(id), NewQuantity: qty}
	if b, err := h.Kitchen.Batch(id); err == nil {
		resp.TargetID = string(b.TargetID)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// LEDGER & REPORT ENDPOINTS
// =============================================================================

// ListMovements returns ledger entries matching the query, oldest first.
// GET /api/movements
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	filter, limit, err := movementFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	filter.IngredientID = stock.IngredientID(r.URL.Query().Get("ingredient_id"))
	h.writeMovements(w, r, filter, limit)
}

func (h *Handler) writeMovements(w http.ResponseWriter, r *http.Request, filter stock.MovementFilter, limit int) {
	seq, err := h.Kitchen.Movements(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := []MovementDTO{}
	for m, err := range seq {
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		out = append(out, toMovementDTO(m))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListSales returns the sales log, newest first.
// GET /api/sales
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sales, err := h.Kitchen.SalesHistory(r.Context(), stock.SaleFilter{
		MenuID: stock.MenuID(r.URL.Query().Get("menu_id")),
		Range:  rng,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]SaleDTO, 0, len(sales))
	for _, s := range sales {
		out = append(out, toSaleDTO(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// LowStock lists LOW and OUT ingredients, OUT first.
// GET /api/reports/low-stock?factor=1.5
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	policy := stock.DefaultPolicy
	if f := r.URL.Query().Get("factor"); f != "" {
		factor, err := decimal.NewFromString(f)
		if err != nil || !factor.IsPositive() {
			writeError(w, http.StatusBadRequest, "factor must be a positive number", err)
			return
		}
		policy.Factor = factor
	}
	items := h.Kitchen.ListLowStock(policy)
	out := make([]LowStockDTO, 0, len(items))
	for _, it := range items {
		out = append(out, LowStockDTO{IngredientDTO: toIngredientDTO(it.Ingredient), Status: string(it.Status)})
	}
	writeJSON(w, http.StatusOK, out)
}

// RestockReport is the shopping list.
// GET /api/reports/restock
func (h *Handler) RestockReport(w http.ResponseWriter, r *http.Request) {
	items := h.Kitchen.RestockSuggestions()
	out := make([]RestockSuggestionDTO, 0, len(items))
	for _, it := range items {
		out = append(out, RestockSuggestionDTO{
			IngredientDTO: toIngredientDTO(it.Ingredient),
			Status:        string(it.Status),
			Buy:           it.Buy,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// UsageReport totals deductions per ingredient.
// GET /api/reports/usage
func (h *Handler) UsageReport(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	lines, err := h.Kitchen.Usage(r.Context(), rng)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]UsageDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, UsageDTO{
			IngredientID: string(l.IngredientID),
			Name:         l.Name,
			Unit:         l.Unit,
			Used:         l.Used,
			Movements:    l.Movements,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SalesReport totals units sold per menu item.
// GET /api/reports/sales
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	lines, err := h.Kitchen.SalesSummary(r.Context(), rng)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]MenuSalesDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, MenuSalesDTO{
			MenuID:   string(l.MenuID),
			MenuName: l.MenuName,
			Quantity: l.Quantity,
			Sales:    l.Sales,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HealthReport is the share of ingredients above threshold.
// GET /api/reports/health
func (h *Handler) HealthReport(w http.ResponseWriter, r *http.Request) {
	resp := HealthDTO{
		Score:       h.Kitchen.HealthScore(),
		Ingredients: len(h.Kitchen.Ingredients()),
	}
	for _, it := range h.Kitchen.ListLowStock(stock.DefaultPolicy) {
		if it.Status == stock.StatusOut {
			resp.Out++
		} else {
			resp.Low++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// Verify replays the ledger and reports drift.
// POST /api/admin/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.Kitchen.Verify(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyResponse(drifts))
}

func toVerifyResponse(drifts []stock.Drift) VerifyResponse {
	resp := VerifyResponse{OK: len(drifts) == 0, Drifts: make([]DriftDTO, 0, len(drifts))}
	for _, d := range drifts {
		resp.Drifts = append(resp.Drifts, DriftDTO{
			IngredientID: string(d.IngredientID),
			Projected:    d.Projected,
			Replayed:     d.Replayed,
			BadSeqs:      d.BadSeqs,
		})
	}
	return resp
}

// Export returns the full backup document.
// GET /api/admin/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	b, err := h.Kitchen.Export(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="kitchen-backup-%s.json"`, b.ExportedAt.Format("20060102-150405")))
	writeJSON(w, http.StatusOK, h.Factory.BackupToJSON(b))
}

// Import applies a catalog document: new ingredients with opening stock,
// metadata for existing ones, then batches and menus.
// POST /api/admin/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var doc factory.CatalogJSON
	if !decode(w, r, &doc) {
		return
	}
	c, err := h.Factory.FromJSON(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid catalog document", err)
		return
	}
	res, err := h.Factory.Apply(r.Context(), h.Kitchen, c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Status: "imported", Result: res})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func movementFilter(r *http.Request) (stock.MovementFilter, int, error) {
	var filter stock.MovementFilter
	rng, err := dateRange(r)
	if err != nil {
		return filter, 0, err
	}
	filter.Range = rng
	q := r.URL.Query()
	for _, k := range q["kind"] {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Kinds = append(filter.Kinds, stock.MovementKind(strings.ToUpper(part)))
			}
		}
	}
	limit := 0
	if l := q.Get("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil || limit < 0 {
			return filter, 0, &stock.InvalidInputError{Field: "limit", Reason: "must be a non-negative integer"}
		}
	}
	return filter, limit, nil
}

func dateRange(r *http.Request) (stock.DateRange, error) {
	var rng stock.DateRange
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, _, err := parseTime(s)
		if err != nil {
			return rng, &stock.InvalidInputError{Field: "from", Reason: err.Error()}
		}
		rng.From = t
	}
	if s := q.Get("to"); s != "" {
		t, dateOnly, err := parseTime(s)
		if err != nil {
			return rng, &stock.InvalidInputError{Field: "to", Reason: err.Error()}
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		rng.To = t
	}
	return rng, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("must be RFC 3339 or YYYY-MM-DD")
	}
	return t, true, nil
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the stock error taxonomy to a status and body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		short *stock.InsufficientStockError
		ref   *stock.ReferencedError
	)
	switch {
	case errors.As(err, &short):
		lines := make([]ShortfallDTO, 0, len(short.Shortfalls))
		for _, s := range short.Shortfalls {
			lines = append(lines, ShortfallDTO{
				IngredientID: string(s.IngredientID),
				Name:         s.Name,
				Unit:         s.Unit,
				Required:     s.Required,
				Available:    s.Available,
				Missing:      s.Missing(),
			})
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(), Code: "insufficient_stock", Details: lines,
		})
	case errors.As(err, &ref):
		details := ReferencedDTO{IngredientID: string(ref.IngredientID), Menus: []string{}, Batches: []string{}}
		for _, m := range ref.Menus {
			details.Menus = append(details.Menus, string(m))
		}
		for _, b := range ref.Batches {
			details.Batches = append(details.Batches, string(b))
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: err.Error(), Code: "referenced_by_recipe", Details: details,
		})
	case stock.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, stock.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, stock.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "concurrent_modification"})
	case errors.Is(err, stock.ErrPersistence):
		hlog.FromRequest(r).Error().Err(err).Msg("store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable", Code: "persistence"})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
