package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/config"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/logger"
	"github.com/benvon/habitflow/internal/notify"
	"github.com/benvon/habitflow/internal/personalizer"
	"github.com/benvon/habitflow/internal/queue"
	"github.com/benvon/habitflow/internal/scheduler"
	"github.com/benvon/habitflow/internal/streak"
	"github.com/benvon/habitflow/internal/workers"
	"github.com/redis/go-redis/v9"
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
	debugMode := cfg.WorkerDebugMode || *debugFlag

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

	zapLogger.Info("Starting worker",
		zap.Bool("debug_mode", debugMode),
		zap.Duration("scheduler_interval", cfg.SchedulerInterval),
	)

	// Initialize database connection
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to database")

	// Initialize repositories
	taskRepo := database.NewTaskRepository(db)
	completionRepo := database.NewCompletionRepository(db)
	streakRepo := database.NewStreakRepository(db)
	activityRepo := database.NewDailyActivityRepository(db)
	profileRepo := database.NewProfileRepository(db)
	settingsRepo := database.NewSettingsRepository(db)
	interactionRepo := database.NewInteractionRepository(db)
	reminderRepo := database.NewReminderRepository(db)
	jobRunRepo := database.NewJobRunRepository(db)
	engineConfigRepo := database.NewEngineConfigRepository(db)

	// Initialize RabbitMQ queue
	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to RabbitMQ",
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	// Redis backs the reminder schedule and the notification channel
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("Failed to close Redis connection", zap.Error(err))
		}
	}()

	clk := clock.New()
	dispatcher := notify.NewRedisDispatcher(redisClient, clk, zapLogger)

	engineCfg := streak.DefaultConfig()
	if stored, err := engineConfigRepo.GetOrDefault(context.Background()); err != nil {
		zapLogger.Warn("Failed to load engine config, using defaults", zap.Error(err))
	} else {
		engineCfg.ProtectionQuota = stored.ProtectionQuota
		engineCfg.GraceDays = stored.GraceDays
	}

	engine := streak.NewEngine(streakRepo, activityRepo, taskRepo, completionRepo, clk, engineCfg, zapLogger)
	personalization := personalizer.New(profileRepo, settingsRepo, completionRepo, interactionRepo, clk, zapLogger)

	worker := workers.NewPersonalizationWorker(
		personalization,
		engine,
		reminderRepo,
		jobRunRepo,
		dispatcher,
		jobQueue,
		clk,
		zapLogger,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Scheduler enqueues midnight resets and evening sweeps
	sched := scheduler.New(jobRunRepo, engineConfigRepo, jobQueue, cfg.SchedulerInterval, clk, zapLogger)
	go func() {
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("Scheduler stopped with error", zap.Error(err))
		}
	}()

	// DLQ garbage collector: hourly, 24h retention
	dlqGC := queue.NewGarbageCollector(jobQueue, 1*time.Hour, 24*time.Hour, zapLogger)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("DLQ garbage collector stopped with error", zap.Error(err))
		}
	}()

	// Start consuming messages
	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("Failed to start consuming messages", zap.Error(err))
	}

	zapLogger.Info("Worker started, consuming messages from queue")

	// Process messages
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("Message channel closed")
					return
				}
				handleMessage(ctx, worker, msg, zapLogger)
			}
		}
	}()

	// Handle errors
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("Queue error", zap.Error(err))
			}
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	zapLogger.Info("Shutdown signal received, stopping worker...")

	// Cancel context to stop processing
	cancel()

	zapLogger.Info("Worker stopped")
}

// handleMessage runs a job and settles the message. Failed jobs are either
// re-enqueued with backoff (then acked) or nacked to the dead letter queue
// once retries are exhausted.
func handleMessage(ctx context.Context, worker *workers.PersonalizationWorker, msg queue.MessageInterface, zapLogger *zap.Logger) {
	job := msg.GetJob()

	if job.IsExpired() {
		zapLogger.Warn("Dropping expired job",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		if err := msg.Ack(); err != nil {
			zapLogger.Error("Failed to ack expired job", zap.Error(err))
		}
		return
	}

	if err := worker.ProcessJob(ctx, job); err != nil {
		zapLogger.Error("Failed to process job",
			zap.Error(err),
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		if worker.HandleJobError(ctx, job, err) {
			if ackErr := msg.Ack(); ackErr != nil {
				zapLogger.Error("Failed to ack retried job", zap.Error(ackErr))
			}
		} else {
			if nackErr := msg.Nack(false); nackErr != nil {
				zapLogger.Error("Failed to nack failed job", zap.Error(nackErr))
			}
		}
		return
	}

	if err := msg.Ack(); err != nil {
		zapLogger.Error("Failed to ack job", zap.Error(err))
	}
}
