/*
scenarios.go - Demo kitchen loaders for testing and demonstrations

PURPOSE:

	Provides pre-built kitchens that populate the catalog with realistic
	ingredients, batch recipes and menu items, plus their opening stock.

AVAILABLE SCENARIOS:

	pizzeria:  Dough and sauce batches feeding two pizzas
	bakery:    Raw-only recipes, butter already LOW
	cafe:      Cold brew batch, oat milk OUT

HOW SCENARIOS WORK:
 1. Parse the preset document (factory/presets.go)
 2. Apply it: ingredients -> batches -> menus
 3. New ingredients get an INITIAL movement for their opening stock

	The ledger is append-only, so nothing is reset. Scenario IDs are
	prefixed and can coexist; loading one twice only refreshes metadata.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "pizzeria"}

SEE ALSO:
  - handlers.go: Import uses the same path
  - factory/presets.go: Scenario documents
*/
package api

import (
	"net/http"

	"github.com/warp/kitchen-stock/factory"
)

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	presets := factory.Presets()
	out := make([]ScenarioDTO, 0, len(presets))
	for _, p := range presets {
		out = append(out, ScenarioDTO{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the last loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	p, ok := factory.PresetByID(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: p.ID, Name: p.Name, Description: p.Description})
}

// LoadScenario applies a demo catalog.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	p, ok := factory.PresetByID(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	c, err := h.Factory.ParseCatalog(p.JSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to parse scenario", err)
		return
	}
	res, err := h.Factory.Apply(r.Context(), h.Kitchen, c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = p.ID
	h.mu.Unlock()

	h.Log.Info().
		Str("scenario", p.ID).
		Int("created", res.IngredientsCreated).
		Int("updated", res.IngredientsUpdated).
		Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": p.ID, "result": res})
}
