package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/discoverlab/insight-map/internal/config"
	"github.com/discoverlab/insight-map/internal/handlers"
	"github.com/discoverlab/insight-map/internal/logger"
	"github.com/discoverlab/insight-map/internal/middleware"
	"github.com/discoverlab/insight-map/internal/okr"
	"github.com/discoverlab/insight-map/internal/services/ai"
	"github.com/discoverlab/insight-map/internal/session"
	"github.com/discoverlab/insight-map/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "insight-map-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Load OKR definitions; the built-in defaults apply when no file is given
	okrs, err := okr.Load(cfg.OKRFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_okr_definitions",
			zap.String("path", logger.SanitizePath(cfg.OKRFile)),
			zap.Error(err),
		)
	}
	zapLogger.Info("okr_definitions_loaded", zap.Int("count", len(okrs)))

	// Session store with idle janitor
	store := session.NewStore(okrs, cfg.SessionTTL, zapLogger)
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	go func() {
		if err := store.Start(janitorCtx); err != nil && err != context.Canceled {
			zapLogger.Error("session_janitor_stopped_with_error", zap.Error(err))
		}
	}()

	// Extraction provider. A missing credential disables extraction but the
	// rest of the API stays up.
	provider, err := createExtractionProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("extraction_provider_unavailable", zap.Error(err))
		provider = nil
	}

	// Redis is optional; without it extraction submissions are not rate limited
	var rateLimitMW func(http.Handler) http.Handler
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		rateLimitMW, err = middleware.RateLimit(client, cfg.ExtractRateLimit)
		if err != nil {
			zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
		}
		zapLogger.Info("connected_to_redis",
			zap.String("extract_rate_limit", cfg.ExtractRateLimit),
		)
		redisClient = client
	}

	// Handlers
	sessionHandler := handlers.NewSessionHandler(store, zapLogger)
	extractHandler := handlers.NewExtractHandler(store, provider, zapLogger)
	itemHandler := handlers.NewItemHandler(store, zapLogger)
	mapHandler := handlers.NewMapHandler(store, zapLogger)
	okrHandler := handlers.NewOKRHandler(store, zapLogger)
	healthChecker := handlers.NewHealthChecker(store, redisClient)

	// Router and middleware
	r := mux.NewRouter()

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("insight-map-api"))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(90 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	sessionsRouter := apiRouter.PathPrefix("/sessions").Subrouter()

	sessionHandler.RegisterRoutes(sessionsRouter)
	itemHandler.RegisterRoutes(sessionsRouter)
	mapHandler.RegisterRoutes(sessionsRouter)
	okrHandler.RegisterRoutes(sessionsRouter)

	// Extraction is the only route that spends model tokens, so only it gets
	// the rate limit budget.
	if rateLimitMW != nil {
		extractRouter := sessionsRouter.PathPrefix("").Subrouter()
		extractRouter.Use(rateLimitMW)
		extractHandler.RegisterRoutes(extractRouter)
	} else {
		extractHandler.RegisterRoutes(sessionsRouter)
	}

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   90 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	janitorCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// createExtractionProvider builds the OpenAI-backed provider from config
func createExtractionProvider(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.ExtractionProvider, error) {
	provider, err := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, logger, debugMode)
	if err != nil {
		return nil, err
	}
	return provider, nil
}
