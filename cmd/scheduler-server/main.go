// Command scheduler-server serves the Streaming Service (spec section
// 4.6): the Schedule bidirectional stream, a health probe, and a
// developer-facing profile/metrics admin surface, all wired over an
// in-memory entity store for local and CI use.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/fieldz/scheduler-engine/internal/store"
	"github.com/fieldz/scheduler-engine/internal/store/memstore"
	"github.com/fieldz/scheduler-engine/internal/streamservice"
	"github.com/fieldz/scheduler-engine/pkg/auth"
	"github.com/fieldz/scheduler-engine/pkg/config"
	"github.com/fieldz/scheduler-engine/pkg/logging"
	"github.com/fieldz/scheduler-engine/pkg/metrics"
	"github.com/fieldz/scheduler-engine/pkg/streaming"
)

// Exit codes per spec section 6: 0 clean, 1 configuration error, 2
// TLS/bind failure.
const (
	exitOK          = 0
	exitConfigError = 1
	exitBindFailure = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.NewDefault()
	cfg.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfigError
	}

	logger := logging.NewLogger(logging.DefaultConfig())
	collector := metrics.NewInMemoryCollector()
	entityStore := memstore.New()

	audience := schedulerAudience(cfg)
	validator := auth.NewValidator(cfg.AuthServerURL, audience, nil, logger)

	usage := streamservice.NoOpUsageHook{}
	svc := streamservice.NewService(validator, usage, logger, healthFunc(entityStore, validator))

	router := buildRouter(svc, entityStore, collector, logger)

	addr := listenAddr()
	certFile, keyFile := os.Getenv("SCHEDULER_TLS_CERT_FILE"), os.Getenv("SCHEDULER_TLS_KEY_FILE")

	logger.Info("scheduler-server starting", "addr", addr, "tls", certFile != "")

	var err error
	if certFile != "" && keyFile != "" {
		err = http.ListenAndServeTLS(addr, certFile, keyFile, router)
	} else {
		logger.Warn("starting without TLS; acceptable only for local development")
		err = http.ListenAndServe(addr, router)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "bind failure:", err)
		return exitBindFailure
	}
	return exitOK
}

func schedulerAudience(cfg *config.Config) string {
	for _, id := range cfg.PublicClientIDs {
		return id
	}
	return "scheduler-engine"
}

func listenAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

// healthFunc wires the three-valued HealthProbe to concrete triggers
// (spec section 12): NotServing when the entity store facade is
// unreachable, Unknown when the issuer key cache has never refreshed.
func healthFunc(entityStore store.EntityStore, validator *auth.Validator) func() streamservice.HealthState {
	return func() streamservice.HealthState {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if _, err := entityStore.ListRegions(ctx); err != nil {
			return streamservice.HealthNotServing
		}
		if !validator.HasCachedKeys() {
			return streamservice.HealthUnknown
		}
		return streamservice.HealthServing
	}
}

func buildRouter(svc *streamservice.Service, entityStore *memstore.Store, collector metrics.Collector, logger logging.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware(collector))

	r.HandleFunc("/healthz", healthzHandler(svc)).Methods(http.MethodGet)
	r.HandleFunc("/metrics", metricsHandler(collector)).Methods(http.MethodGet)
	r.HandleFunc("/ws/schedule", svc.ServeHTTP(streaming.NewUpgrader(nil))).Methods(http.MethodGet)

	profiles := newProfileAdmin(entityStore, logger)
	r.HandleFunc("/profiles", profiles.list).Methods(http.MethodGet)
	r.HandleFunc("/profiles", profiles.create).Methods(http.MethodPost)
	r.HandleFunc("/profiles/{id}/activate", profiles.activate).Methods(http.MethodPost)
	r.HandleFunc("/profiles/{id}", profiles.delete).Methods(http.MethodDelete)

	return r
}

func metricsMiddleware(collector metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			collector.RecordRequest(r.Method, r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			collector.RecordResponse(r.Method, r.URL.Path, rec.status, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func healthzHandler(svc *streamservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		state := svc.HealthProbe(ctx)
		w.Header().Set("Content-Type", "application/json")
		if state != streamservice.HealthServing {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": string(state)})
	}
}

func metricsHandler(collector metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(collector.GetStats())
	}
}
