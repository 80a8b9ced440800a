package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"roombook/config"
	"roombook/docs"
	bookingService "roombook/internal/domains/booking/service"
	reconciliationService "roombook/internal/domains/reconciliation/service"
	"roombook/shared/constant"
	"roombook/transport/http/middleware"
	"roombook/transport/http/response"
	"roombook/transport/http/router"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

type ServerState int

const (
	ServerStateReady ServerState = iota + 1
	ServerStateInGracePeriod
	ServerStateInCleanupPeriod
)

const (
	readHeaderTimeout = 10 * time.Second
	// drainMargin is added to the booking flow timeout when waiting for
	// flows to finish on shutdown.
	drainMargin         = 5 * time.Second
	defaultFlowDeadline = 60 * time.Second
)

type HTTP struct {
	Config         *config.Config
	Router         router.Router
	App            middleware.AppMiddleware
	Operator       middleware.Operator
	Reconciliation reconciliationService.Reconciliation
	Coordinator    bookingService.Coordinator
	State          ServerState
	mux            *chi.Mux
	server         *http.Server
	stopSweeper    context.CancelFunc
}

func New(
	cfg *config.Config,
	r router.Router,
	app middleware.AppMiddleware,
	operator middleware.Operator,
	reconciliation reconciliationService.Reconciliation,
	coordinator bookingService.Coordinator,
) *HTTP {
	return &HTTP{
		Config:         cfg,
		Router:         r,
		App:            app,
		Operator:       operator,
		Reconciliation: reconciliation,
		Coordinator:    coordinator,
	}
}

func (h *HTTP) Serve() {
	h.setup()
	h.startSweeper()

	log.Info().Str("port", h.Config.Server.Port).Msg("Starting up HTTP server.")

	h.server = &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", h.Config.Server.Port),
		Handler:           h.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

// Adaptor exposes the router for serverless entrypoints. No sweeper runs
// there; operators drive retries through the reconcile command instead.
func (h *HTTP) Adaptor() http.HandlerFunc {
	h.setupRoutes()
	h.State = ServerStateReady

	return h.mux.ServeHTTP
}

// ServeHTTP lets the HTTP value be used as a plain handler.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.mux == nil {
		h.setupRoutes()
		h.State = ServerStateReady
	}

	h.mux.ServeHTTP(w, r)
}

func (h *HTTP) setup() {
	h.setupRoutes()
	h.setupGracefulShutdown()
	h.State = ServerStateReady
}

func (h *HTTP) setupRoutes() {
	h.mux = chi.NewRouter()

	h.mux.Use(h.App.RequestID)
	h.mux.Use(h.App.Tracing)
	h.setupCORS()
	h.mux.Use(h.App.RateLimit())
	h.mux.Use(h.Operator.Operator)

	h.mux.Get("/health", h.healthCheck)
	h.setupSwagger()

	h.Router.SetupRoutes(h.mux)
}

func (h *HTTP) setupCORS() {
	corsConfig := h.Config.App.CORS
	if !corsConfig.Enable {
		return
	}

	h.mux.Use(cors.Handler(cors.Options{
		AllowCredentials: corsConfig.AllowCredentials,
		AllowedHeaders:   corsConfig.AllowedHeaders,
		AllowedMethods:   corsConfig.AllowedMethods,
		AllowedOrigins:   corsConfig.AllowedOrigins,
		ExposedHeaders: []string{
			constant.RequestHeaderRequestID,
			constant.RequestHeaderRateLimit,
			constant.RequestHeaderRateLimitRemaining,
			constant.RequestHeaderRateLimitWindow,
		},
		MaxAge: corsConfig.MaxAgeSeconds,
	}))
}

func (h *HTTP) setupSwagger() {
	if h.Config.Server.Env == constant.ServerEnvProduction {
		return
	}

	docs.SwaggerInfo.Host = h.Config.Server.Host

	h.mux.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

func (h *HTTP) healthCheck(w http.ResponseWriter, _ *http.Request) {
	switch h.State {
	case ServerStateReady:
		response.WithMessage(w, http.StatusOK, "OK")
	case ServerStateInGracePeriod:
		response.WithPreparingShutdown(w)
	case ServerStateInCleanupPeriod:
		response.WithUnhealthy(w)
	default:
		response.WithUnhealthy(w)
	}
}

func (h *HTTP) startSweeper() {
	if !h.Config.Reconciliation.Sweeper.Enable || h.Reconciliation == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.stopSweeper = cancel

	go h.Reconciliation.RunSweeper(ctx)
}

func (h *HTTP) setupGracefulShutdown() {
	serverStateCh := make(chan os.Signal, 1)

	signal.Notify(serverStateCh, os.Interrupt, syscall.SIGTERM)

	go h.respondToSigterm(serverStateCh)
}

func (h *HTTP) respondToSigterm(done chan os.Signal) {
	<-done

	defer os.Exit(0)

	if h.stopSweeper != nil {
		h.stopSweeper()
	}

	if h.Config.Server.Env == constant.ServerEnvDevelopment {
		log.Warn().Msg("Received SIGTERM. Shutting down now.")
		h.drainBookings()

		return
	}

	shutdownConfig := h.Config.Server.Shutdown

	log.Info().Msg("Received SIGTERM.")
	log.Info().Int64("seconds", shutdownConfig.GracePeriodSeconds).Msg("Entering grace period.")

	h.State = ServerStateInGracePeriod

	time.Sleep(time.Duration(shutdownConfig.GracePeriodSeconds) * time.Second)

	log.Info().Int64("seconds", shutdownConfig.CleanupPeriodSeconds).Msg("Entering cleanup period.")

	h.State = ServerStateInCleanupPeriod

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownConfig.CleanupPeriodSeconds)*time.Second)
	defer cancel()

	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down HTTP server cleanly")
		}
	}

	// Booking flows outlive their requests once a charge starts, so Shutdown
	// returning does not mean they are done.
	h.drainBookings()

	log.Info().Msg("Cleaning up completed. Shutting down now.")
}

// drainBookings waits for booking flows that may hold a captured charge to be
// recorded or compensated.
func (h *HTTP) drainBookings() {
	if h.Coordinator == nil {
		return
	}

	deadline := defaultFlowDeadline
	if seconds := h.Config.Booking.FlowTimeoutSeconds; seconds > 0 {
		deadline = time.Duration(seconds) * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline+drainMargin)
	defer cancel()

	if err := h.Coordinator.Drain(ctx); err != nil {
		log.Error().Err(err).Msg("Shutting down with booking flows still running")
	}
}
