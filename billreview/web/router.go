package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chrscato/cdx-billreview/billreview/logging"
	"github.com/chrscato/cdx-billreview/billreview/monitoring"
)

func NewAPIRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	m := monitoring.GetMonitor()
	r.Use(middleware.RequestID, logging.NewStructuredLogger(), ConnectionClose)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get(m.WrapHandler("/fails", h.GetFails))
		r.Get(m.WrapHandler("/fails/stats", h.GetFailStats))
		r.Get(m.WrapHandler("/fails/filters", h.GetFailFilters))
		r.Get(m.WrapHandler("/fails/{filename}", h.GetFail))
		r.Post(m.WrapHandler("/fails/{filename}/assign-rates", h.AssignRates))
	})
	r.Get(m.WrapHandler("/_version", h.GetVersion))
	r.Get(m.WrapHandler("/_health", h.HealthCheck))
	return r
}

// ConnectionClose sets Connection: close on every response so the load
// balancer can cycle connections between deploys.
func ConnectionClose(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		next.ServeHTTP(w, r)
	})
}
