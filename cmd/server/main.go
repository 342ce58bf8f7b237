package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/config"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/handlers"
	"github.com/benvon/habitflow/internal/logger"
	"github.com/benvon/habitflow/internal/middleware"
	"github.com/benvon/habitflow/internal/notify"
	"github.com/benvon/habitflow/internal/personalizer"
	"github.com/benvon/habitflow/internal/queue"
	"github.com/benvon/habitflow/internal/streak"
	"github.com/benvon/habitflow/internal/tasks"
	"github.com/benvon/habitflow/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.New(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			// Ignore sync errors in production
			_ = syncErr
		}
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "habitflow-api", cfg.OTELEndpoint)
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

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	zapLogger.Info("connected_to_database")

	// Connect to Redis for rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Connect to RabbitMQ for job queue (required)
	// Retry connection with exponential backoff to handle RabbitMQ startup delays
	jobQueue := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	// Initialize repositories
	taskRepo := database.NewTaskRepository(db)
	completionRepo := database.NewCompletionRepository(db)
	streakRepo := database.NewStreakRepository(db)
	activityRepo := database.NewDailyActivityRepository(db)
	protectionRepo := database.NewProtectionRepository(db)
	profileRepo := database.NewProfileRepository(db)
	settingsRepo := database.NewSettingsRepository(db)
	interactionRepo := database.NewInteractionRepository(db)
	reminderRepo := database.NewReminderRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)
	engineConfigRepo := database.NewEngineConfigRepository(db)

	clk := clock.New()

	// Engine configuration lives in the database so operators can adjust it
	// without a redeploy; fall back to defaults when the table is empty.
	engineCfg := streak.DefaultConfig()
	if stored, err := engineConfigRepo.GetOrDefault(context.Background()); err != nil {
		zapLogger.Warn("failed_to_load_engine_config_using_defaults", zap.Error(err))
	} else {
		engineCfg.ProtectionQuota = stored.ProtectionQuota
		engineCfg.GraceDays = stored.GraceDays
	}

	// Initialize services
	engine := streak.NewEngine(streakRepo, activityRepo, taskRepo, completionRepo, clk, engineCfg, zapLogger)
	personalization := personalizer.New(profileRepo, settingsRepo, completionRepo, interactionRepo, clk, zapLogger)
	taskService := tasks.NewService(taskRepo, completionRepo, engine, jobQueue, clk, zapLogger)
	taskService.SetReminderRepository(reminderRepo)
	dispatcher := notify.NewRedisDispatcher(redisClient, clk, zapLogger)

	// Initialize handlers
	taskHandler := handlers.NewTaskHandler(taskRepo, taskService)
	streakHandler := handlers.NewStreakHandler(engine, streakRepo, protectionRepo)
	personalizationHandler := handlers.NewPersonalizationHandler(personalization, profileRepo)
	reminderHandler := handlers.NewReminderHandler(reminderRepo, taskRepo, dispatcher, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, jobQueue)

	// Setup router
	r := mux.NewRouter()

	zapLogger.Info("setting_up_middleware")

	// OpenTelemetry tracing (outermost, if enabled)
	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("habitflow-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	// Request size limits (protects against DoS)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// Security headers (set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// CORS
	corsMW := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-User-ID"},
		AllowCredentials: true,
	})
	r.Use(corsMW.Handler)
	// Rate limit middleware (applied to API routes, limit config stored in DB)
	rateLimitMW, err := middleware.RateLimitFromDB(redisClient, ratelimitConfigRepo, "5-S")
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}
	// Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// Request timeout
	r.Use(middleware.Timeout(30 * time.Second))
	// Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// Logging (innermost, executes last before handler)
	r.Use(middleware.Logging(zapLogger))

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/health", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	// OpenAPI spec (public)
	openAPIPath := filepath.Join("api", "openapi.yaml")
	openAPIHandler := handlers.NewOpenAPIHandler(openAPIPath)
	openAPIHandler.RegisterRoutes(r)

	// API v1 routes (authenticated via X-User-ID set by the gateway)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitMW)
	apiRouter.Use(middleware.UserContext)

	tasksRouter := apiRouter.PathPrefix("/tasks").Subrouter()
	taskHandler.RegisterRoutes(tasksRouter)

	streaksRouter := apiRouter.PathPrefix("/streaks").Subrouter()
	streakHandler.RegisterRoutes(streaksRouter)

	remindersRouter := apiRouter.PathPrefix("/reminders").Subrouter()
	reminderHandler.RegisterRoutes(remindersRouter)

	personalizationHandler.RegisterRoutes(apiRouter)

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ dials the broker with exponential backoff. The broker is
// required: task completion enqueues learning jobs through it.
func connectRabbitMQ(amqpURL string, zapLogger *zap.Logger) queue.JobQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return jobQueue
		}

		lastErr = err
		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
