package app

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/eventcal/internal/config"
	log "github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Request logging and metrics, labelled by route template to keep cardinality bounded
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, req)

			route := req.URL.Path
			if current := mux.CurrentRoute(req); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			elapsed := time.Since(started)
			log.Debugf("%s %s -> %d (%s)", req.Method, req.URL.RequestURI(), recorder.status, elapsed)
			deps.Metrics.ObserveHTTPRequest(req.Method, route, recorder.status, elapsed)
		})
	})
}
