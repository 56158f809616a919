package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/johnnycloud/posture/pkg/handlers/posture"
	posturemiddleware "github.com/johnnycloud/posture/pkg/server/middleware"
)

type Dependencies struct {
	Posture *posture.Handler
	Logger  zerolog.Logger
}

type Config struct {
	Addr            string
	CORSOrigin      string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// Route binds one path to one probe handler. The discovery listing is
// generated from this table so the two can never drift apart.
type Route struct {
	Method    string
	Path      string
	Handler   http.HandlerFunc
	Discovery bool
}

func routes(h *posture.Handler) []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/cost/summary", Handler: h.CostSummary, Discovery: true},
		{Method: http.MethodGet, Path: "/cost/anomalies", Handler: h.CostAnomalies, Discovery: true},
		{Method: http.MethodGet, Path: "/security/guardduty", Handler: h.ThreatFindings, Discovery: true},
		{Method: http.MethodGet, Path: "/security/hub", Handler: h.ComplianceFailures, Discovery: true},
		{Method: http.MethodGet, Path: "/security/iam", Handler: h.IdentityHygiene, Discovery: true},
		{Method: http.MethodGet, Path: "/network/exposure", Handler: h.NetworkExposure, Discovery: true},
		{Method: http.MethodPost, Path: "/chat", Handler: h.Chat},
	}
}

func ConfigureRouter(config Config) *chi.Mux {
	h := config.Dependencies.Posture
	logger := config.Dependencies.Logger

	router := chi.NewRouter()
	router.Use(posturemiddleware.Logger(&logger))
	router.Use(posturemiddleware.Envelope(config.CORSOrigin))
	router.Use(posturemiddleware.Recover)

	var endpoints []string
	for _, route := range routes(h) {
		router.Method(route.Method, route.Path, route.Handler)
		if route.Discovery {
			endpoints = append(endpoints, route.Path)
		}
	}

	// Unmatched paths get the discovery listing, not a 404.
	discovery := h.Discovery(endpoints)
	router.NotFound(discovery)
	router.MethodNotAllowed(discovery)

	return router
}

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	router := ConfigureRouter(config)

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
		shutdownTimeout: config.ShutdownTimeout,
	}
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
