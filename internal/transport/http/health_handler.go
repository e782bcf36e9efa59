package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"agripulse/internal/store"
)

// HealthHandler reports service liveness and store statistics
type HealthHandler struct {
	store   *store.Store
	logger  *slog.Logger
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st *store.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   st,
		logger:  logger,
		started: time.Now(),
	}
}

// RegisterRoutes registers the health routes
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
}

type healthResponse struct {
	Status       string `json:"status"`
	UptimeSec    int64  `json:"uptime_sec"`
	Observations int    `json:"observations"`
	DroppedRows  int    `json:"dropped_rows"`
	LoadedAt     string `json:"loaded_at"`
	EarliestDate string `json:"earliest_date,omitempty"`
	LatestDate   string `json:"latest_date,omitempty"`
}

// Health returns service status and observation store statistics.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "healthy",
		UptimeSec:    int64(time.Since(h.started).Seconds()),
		Observations: h.store.Len(),
		DroppedRows:  h.store.Dropped(),
		LoadedAt:     h.store.LoadedAt().Format(time.RFC3339),
	}
	if start, end, ok := h.store.DateRange(); ok {
		resp.EarliestDate = start.Format("2006-01-02")
		resp.LatestDate = end.Format("2006-01-02")
	}
	render.JSON(w, r, resp)
}
