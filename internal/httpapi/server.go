package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"liquidation-alerts/internal/monitor"
)

// TriggerFunc runs one cycle on demand. simulate suppresses the on-chain
// submission while still exercising aggregation and payload building.
type TriggerFunc func(ctx context.Context, simulate bool) (monitor.CycleSummary, error)

// Server exposes the operational trigger endpoint, health, and metrics.
type Server struct {
	trigger TriggerFunc
	logger  zerolog.Logger
}

// NewServer constructs the HTTP API.
func NewServer(trigger TriggerFunc, logger zerolog.Logger) *Server {
	return &Server{trigger: trigger, logger: logger.With().Str("component", "httpapi").Logger()}
}

// Router assembles the route table. The trigger route is restricted to
// localhost; it exists for operational testing, not public consumption.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recovery)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	channel := router.PathPrefix("/channels/liquidation").Subrouter()
	channel.Use(onlyLocalhost)
	channel.HandleFunc("/send_message", s.handleSendMessage).Methods(http.MethodPost)

	return router
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Info().Str("addr", addr).Msg("http api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type sendMessageRequest struct {
	Simulate bool `json:"simulate"`
}

// handleSendMessage triggers one cycle. A single subscriber failure never
// turns into a 5xx; only discovery failures and internal faults do.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s.logger.Debug().Bool("simulate", req.Simulate).Msg("manual cycle trigger")

	summary, err := s.trigger(r.Context(), req.Simulate)
	if err != nil {
		if errors.Is(err, monitor.ErrCycleRunning) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "cycle already running"})
			return
		}
		var discoveryErr *monitor.DiscoveryError
		if errors.As(err, &discoveryErr) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("manual cycle failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// onlyLocalhost rejects requests that did not originate from a loopback
// address.
func onlyLocalhost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "localhost only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
