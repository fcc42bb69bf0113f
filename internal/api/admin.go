package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gonomen/domain/core"
	apperrors "gonomen/internal/errors"
)

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// AdminRouter serves operational endpoints on a separate port: Prometheus
// metrics, health, the job table and the pprof profiler.
func (s *Server) AdminRouter(checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		writeJSON(w, status, map[string]interface{}{"status": http.StatusText(status), "checks": results})
	})
	r.Get("/jobs", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.jobs.List()})
	})
	r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := core.ParseJobID(chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, apperrors.InvalidInput(err.Error()))
			return
		}
		view, err := s.jobs.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	})
	r.Mount("/debug", middleware.Profiler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), map[string]string{"error": err.Error(), "code": apperrors.GetCode(err)})
}
