package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/eventcal/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Events, search must be registered before {eventId}
	r.HandleFunc("/events", deps.CalendarHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/events", deps.CalendarHandler.GetEvents).Methods("GET")
	r.HandleFunc("/events/search", deps.CalendarHandler.SearchEvents).Methods("GET")
	r.HandleFunc("/events/{eventId}", deps.CalendarHandler.GetEvent).Methods("GET")
	r.HandleFunc("/events/{eventId}", deps.CalendarHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/events/{eventId}", deps.CalendarHandler.DeleteEvent).Methods("DELETE")

	// Health
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	// Metrics
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}
}
