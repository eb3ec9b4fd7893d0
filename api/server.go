/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. hlog:       Request-scoped zerolog logger, request ID, access log
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/ingredients/*    Catalog and stock intents per ingredient
  /api/menus/*          Menu items and sales
  /api/batches/*        Batch recipes and production
  /api/movements        Ledger
  /api/sales            Sales log
  /api/reports/*        Derived reports
  /api/scenarios/*      Demo kitchens
  /api/admin/*          Verify, export, import
  /healthz              Liveness and last integrity pass

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// Integrity, when set, adds the last verification pass to /healthz.
	Integrity *IntegrityScheduler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(hlog.NewHandler(h.Log))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := HealthzResponse{Status: "ok"}
		if opts.Integrity != nil {
			at, drifts := opts.Integrity.LastRun()
			resp.Integrity = &IntegrityStatus{Drifts: drifts}
			if !at.IsZero() {
				resp.Integrity.LastRun = &at
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", h.ListIngredients)
			r.Post("/", h.CreateIngredient)
			r.Get("/{id}", h.GetIngredient)
			r.Put("/{id}", h.UpdateIngredient)
			r.Delete("/{id}", h.DeleteIngredient)
			r.Post("/{id}/adjust", h.AdjustStock)
			r.Post("/{id}/restock", h.Restock)
			r.Get("/{id}/movements", h.GetIngredientMovements)
		})

		r.Route("/menus", func(r chi.Router) {
			r.Get("/", h.ListMenus)
			r.Post("/", h.CreateMenu)
			r.Get("/{id}", h.GetMenu)
			r.Put("/{id}", h.UpdateMenu)
			r.Delete("/{id}", h.DeleteMenu)
			r.Post("/{id}/sales", h.RecordSale)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.CreateBatch)
			r.Get("/{id}", h.GetBatch)
			r.Put("/{id}", h.UpdateBatch)
			r.Delete("/{id}", h.DeleteBatch)
			r.Post("/{id}/produce", h.ProduceBatch)
		})

		r.Get("/movements", h.ListMovements)
		r.Get("/sales", h.ListSales)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/low-stock", h.LowStock)
			r.Get("/restock", h.RestockReport)
			r.Get("/usage", h.UsageReport)
			r.Get("/sales", h.SalesReport)
			r.Get("/health", h.HealthReport)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/verify", h.Verify)
			r.Get("/export", h.Export)
			r.Post("/import", h.Import)
		})
	})

	return r
}
