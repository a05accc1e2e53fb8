// Package http exposes the admin observability surface: the lease
// table snapshot, health probes, and Prometheus metrics. It serves
// operators only; lease traffic itself goes over the TCP protocol.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leasegate/internal/license"
)

// AdminHandler handles the observability HTTP endpoints.
type AdminHandler struct {
	table   *license.Table
	logger  *slog.Logger
	started time.Time
}

// NewAdminHandler creates an admin handler over the lease table.
func NewAdminHandler(table *license.Table, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		table:   table,
		logger:  logger.With(slog.String("handler", "admin")),
		started: time.Now(),
	}
}

// Router builds the admin mux: snapshot, health, and metrics scraped
// from the given registry.
func (h *AdminHandler) Router(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/leases", h.Leases)
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}

// leaseRow is one holder in the snapshot response. Remaining is
// reported in whole seconds, matching the lease granularity of the
// roster.
type leaseRow struct {
	Holder           string  `json:"holder"`
	Leased           bool    `json:"leased"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

type leasesResponse struct {
	Holders []leaseRow `json:"holders"`
	Count   int        `json:"count"`
}

// Leases handles GET /api/leases
func (h *AdminHandler) Leases(w http.ResponseWriter, r *http.Request) {
	snapshot := h.table.Snapshot()
	rows := make([]leaseRow, 0, len(snapshot))
	for _, status := range snapshot {
		rows = append(rows, leaseRow{
			Holder:           status.Holder,
			Leased:           status.Leased,
			RemainingSeconds: status.Remaining.Seconds(),
		})
	}
	render.JSON(w, r, leasesResponse{Holders: rows, Count: len(rows)})
}

type healthResponse struct {
	Status        string `json:"status"`
	RosterSize    int    `json:"roster_size"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health handles GET /healthz
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:        "ok",
		RosterSize:    h.table.Len(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}
