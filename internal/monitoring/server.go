package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/tokenkeeper/internal/health"
)

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	service *Service
	server  *http.Server
}

// NewServer creates a new monitoring server.
func NewServer(service *Service, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		service: service,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy

	// Aggregate status (worst case wins)
	for _, m := range s.service.Latest() {
		switch health.StatusForScore(m.HealthScore) {
		case health.StatusCritical:
			status = health.StatusCritical
		case health.StatusDegraded:
			if status == health.StatusHealthy {
				status = health.StatusDegraded
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status == health.StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.service.Latest())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	providerFilter := r.URL.Query().Get("provider")

	alerts, err := s.service.Alerter().History(r.Context(), providerFilter, hours)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}
