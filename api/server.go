/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/anggota/*        Member exit, settlement, gated transactions
  /api/pengembalian/*   Settlement reports and receipts
  /api/jurnal, /api/akun, /api/audit   Read-only reports
  /api/import           JSON dump ingestion
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. The X-Actor header is trusted as-is and
  only feeds audit entries.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured. An empty
// allowedOrigins falls back to the local dev frontends.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/anggota", func(r chi.Router) {
			r.Get("/", h.ListAnggota)
			r.Get("/{id}", h.GetAnggota)
			r.Post("/{id}/keluar", h.MarkKeluar)
			r.Post("/{id}/batal-keluar", h.CancelKeluar)

			r.Get("/{id}/pengembalian", h.CalculatePengembalian)
			r.Post("/{id}/pengembalian/validasi", h.ValidatePengembalian)
			r.Post("/{id}/pengembalian", h.ProcessPengembalian)

			r.Post("/{id}/simpanan", h.SetorSimpanan)
			r.Post("/{id}/pinjaman", h.CairkanPinjaman)
			r.Post("/{id}/penjualan", h.CatatPenjualan)
			r.Post("/{id}/pembayaran-hutang", h.BayarHutang)
		})

		r.Route("/pengembalian", func(r chi.Router) {
			r.Get("/", h.ListPengembalian)
			r.Get("/export.csv", h.ExportPengembalian)
			r.Get("/{id}/bukti", h.GetBukti)
		})

		r.Get("/jurnal", h.ListJurnal)
		r.Get("/akun", h.ListAkun)
		r.Get("/audit", h.ListAudit)
		r.Post("/import", h.Import)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
