package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-bi/internal/config"
	"github.com/phrazzld/scry-bi/internal/events"
	"github.com/phrazzld/scry-bi/internal/generation"
	"github.com/phrazzld/scry-bi/internal/platform/gemini"
	"github.com/phrazzld/scry-bi/internal/platform/kafka"
	mongostore "github.com/phrazzld/scry-bi/internal/platform/mongo"
	"github.com/phrazzld/scry-bi/internal/platform/openai"
	"github.com/phrazzld/scry-bi/internal/platform/postgres"
	"github.com/phrazzld/scry-bi/internal/ratelimit"
	"github.com/phrazzld/scry-bi/internal/service"
	"github.com/phrazzld/scry-bi/internal/service/auth"
	"github.com/phrazzld/scry-bi/internal/store"
	"github.com/phrazzld/scry-bi/internal/task"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// application holds the shared dependencies of the server and releases
// them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	charts   store.ChartStore
	datasets store.DatasetStore

	jwtService   auth.JWTService
	limiter      ratelimit.Limiter
	aiClient     generation.Client
	chartService service.ChartService

	emitter   *events.InMemoryEventEmitter
	scheduler *task.Scheduler
	pipeline  *task.Pipeline

	// optional backends, closed in cleanup
	redisClient *redis.Client
	mongoClient *mongo.Client
	publisher   *kafka.Publisher
}

// newApplication wires every component from configuration. The database
// pool must already be open; on error it is closed along with everything
// else. Workers are not started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.charts = postgres.NewPostgresChartStore(db, logger)
	if err := app.setupDatasetStore(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	app.setupLimiter()

	if err := app.setupAIClient(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.setupEvents(); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.setupPipeline(); err != nil {
		app.cleanup()
		return nil, err
	}

	app.chartService, err = service.NewChartService(service.ChartServiceDeps{
		DB:       db,
		Charts:   app.charts,
		Datasets: app.datasets,
		Limiter:  app.limiter,
		Client:   app.aiClient,
		Pipeline: app.pipeline,
		ModelID:  cfg.LLM.ModelID,
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create chart service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

func (app *application) setupDatasetStore(ctx context.Context) error {
	switch app.config.Dataset.Backend {
	case "mongo":
		client, err := mongostore.Connect(ctx, app.config.Dataset)
		if err != nil {
			return fmt.Errorf("failed to connect dataset store: %w", err)
		}
		app.mongoClient = client
		app.datasets = mongostore.NewMongoDatasetStore(client, app.config.Dataset, app.logger)
	default:
		app.datasets = postgres.NewPostgresDatasetStore(app.db, app.logger)
	}
	app.logger.Info("Dataset store initialized", "backend", app.config.Dataset.Backend)
	return nil
}

func (app *application) setupLimiter() {
	rl := app.config.RateLimit
	switch rl.Backend {
	case "redis":
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     rl.RedisAddr,
			Password: rl.RedisPassword,
			DB:       rl.RedisDB,
		})
		app.limiter = ratelimit.NewRedisLimiter(app.redisClient, rl.Limit, rl.Window, app.logger)
	default:
		app.limiter = ratelimit.NewLocalLimiter(rl.Limit, rl.Window)
	}
	app.logger.Info("Rate limiter initialized",
		"backend", rl.Backend,
		"limit", rl.Limit,
		"window", rl.Window)
}

func (app *application) setupAIClient(ctx context.Context) error {
	var err error
	switch app.config.LLM.Provider {
	case "openai":
		app.aiClient, err = openai.NewClient(app.config.LLM, app.logger)
	default:
		app.aiClient, err = gemini.NewClient(ctx, app.config.LLM, app.logger)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize AI client: %w", err)
	}
	app.logger.Info("AI client initialized",
		"provider", app.config.LLM.Provider,
		"model_id", app.config.LLM.ModelID)
	return nil
}

func (app *application) setupEvents() error {
	app.emitter = events.NewInMemoryEventEmitter(app.logger)
	app.emitter.RegisterHandler(events.NewLogHandler(app.logger))

	if !app.config.Events.KafkaEnabled {
		return nil
	}
	publisher, err := kafka.NewPublisher(app.config.Events, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	app.publisher = publisher
	app.emitter.RegisterHandler(publisher)
	app.logger.Info("Chart status events published to Kafka", "topic", app.config.Events.KafkaTopic)
	return nil
}

func (app *application) setupPipeline() error {
	tc := app.config.Task

	app.scheduler = task.NewScheduler(task.SchedulerConfig{
		WorkerCount: tc.WorkerCount,
		QueueSize:   tc.QueueSize,
	}, app.logger)

	factory, err := task.NewChartTaskFactory(app.aiClient, app.charts, app.emitter, app.config.LLM.ModelID, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task factory: %w", err)
	}

	app.pipeline, err = task.NewPipeline(
		app.scheduler,
		factory,
		app.charts,
		app.datasets,
		task.NewBackoffRetryPolicy(tc.MaxAttempts, tc.RetryDelay),
		task.ResubmitPolicy{
			BaseDelay:    tc.ResubmitBaseDelay,
			MaxDelay:     tc.ResubmitMaxDelay,
			MaxResubmits: tc.MaxResubmits,
		},
		task.RecoveryPolicy{
			StuckAge:      tc.StuckAge,
			CheckInterval: tc.StuckCheckInterval,
		},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation pipeline: %w", err)
	}
	return nil
}

// startWorkers starts the pipeline and the stuck chart monitor and, if
// configured, recovers charts abandoned by a previous process.
func (app *application) startWorkers(ctx context.Context) error {
	app.scheduler.Start()
	app.logger.Info("Generation workers started",
		"worker_count", app.config.Task.WorkerCount,
		"queue_size", app.config.Task.QueueSize)

	go app.pipeline.RunStuckMonitor(ctx)

	if !app.config.Task.RecoverOnStart {
		return nil
	}
	if err := app.pipeline.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover pending charts: %w", err)
	}
	return nil
}

// cleanup releases resources in reverse order of creation.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("Error closing event publisher", "error", err)
		}
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("Error closing Redis client", "error", err)
		}
	}
	if app.mongoClient != nil {
		if err := app.mongoClient.Disconnect(context.Background()); err != nil {
			app.logger.Error("Error disconnecting dataset store", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
