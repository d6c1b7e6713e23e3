package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"ruleflow/internal/broker"
	"ruleflow/internal/changefeed"
	"ruleflow/internal/condition"
	"ruleflow/internal/config"
	"ruleflow/internal/constants"
	"ruleflow/internal/dispatch"
	"ruleflow/internal/dispatch/adapter"
	"ruleflow/internal/engine"
	"ruleflow/internal/ledger"
	"ruleflow/internal/logger"
	"ruleflow/internal/rules"
	"ruleflow/pkg/bootstrap"
	"ruleflow/pkg/cel"
	"ruleflow/pkg/health"
	"ruleflow/pkg/logging"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/middleware"
	"ruleflow/pkg/migrations"
	"ruleflow/pkg/retry"
	"ruleflow/pkg/tracing"
)

const serviceName = constants.ServiceNameEngine

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	mongoClient    *mongo.Client
	ledgerClose    func() error
	store          *rules.CachedStore
	engine         *engine.Engine
	ledger         ledger.Ledger
	health         *health.CheckerRegistry
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		health:      health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterEngineMetrics()
	metrics.RegisterDatabaseMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitProducer(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initEngine(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db
	if db != nil {
		a.health.Register(health.NewSQLChecker("postgresql", db))
		if a.Config.Database.RunMigrations {
			if err := migrations.Postgres(db); err != nil {
				return err
			}
		}
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	if rdb != nil {
		a.health.Register(health.NewRedisChecker(rdb))
	}

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient
	if mongoClient != nil {
		a.health.RegisterOptional(health.NewMongoDBChecker(mongoClient))
	}
	return nil
}

func (a *App) initEngine(ctx context.Context) error {
	celEvaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	repo, err := rules.OpenRepository(ctx, a.Config.Rules, a.db, rules.NewValidator(celEvaluator), serviceName, a.Logger)
	if err != nil {
		return err
	}

	var redisClient redis.UniversalClient
	if a.redis != nil {
		redisClient = a.redis
	}
	cache, err := rules.NewRuleCache(a.Config.Rules.Cache, redisClient)
	if err != nil {
		return err
	}
	a.store = rules.NewCachedStore(repo, cache,
		rules.WithStoreTimeout(a.Config.Engine.StoreTimeout),
		rules.WithStoreLogger(a.Logger.Named("rules")),
	)

	l, closeLedger, err := ledger.Open(ctx, a.Config.Ledger, a.db, serviceName, a.Config.Database.RunMigrations)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	a.ledger = l
	a.ledgerClose = closeLedger

	collab, err := a.collaborators(ctx)
	if err != nil {
		return err
	}
	dispatcher := dispatch.NewDispatcher(
		adapter.WithCircuitBreakers(collab, a.Config.CircuitBreaker),
		dispatch.WithActionTimeout(a.Config.Engine.ActionTimeout),
		dispatch.WithLogger(a.Logger.Named("dispatch")),
	)

	a.engine = engine.New(a.store, condition.NewEvaluator(celEvaluator), dispatcher, l,
		engine.WithConfig(a.Config.Engine),
		engine.WithLogger(a.Logger.Named("engine")),
	)

	initCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(initCtx, "Engine initialized",
		"rules_backend", a.Config.Rules.Backend,
		"cache_backend", a.Config.Rules.Cache.Backend,
		"ledger_driver", a.Config.Ledger.Driver,
	)
	return nil
}

// collaborators wires the external systems actions act upon. Unconfigured systems stay nil so
// their action types are reported as unsupported.
func (a *App) collaborators(ctx context.Context) (dispatch.Collaborators, error) {
	actions := a.Config.Actions
	var collab dispatch.Collaborators

	if a.Producer != nil {
		collab.Notifier = adapter.NewKafkaNotifier(a.Producer, actions.Notify.Topic, serviceName)
	}

	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		mongoDB := a.mongoClient.Database(dbName)
		if a.Config.Database.RunMigrations {
			if err := migrations.EnsureRecordsCollection(ctx, mongoDB, actions.Records.Collection); err != nil {
				return collab, err
			}
		}
		collab.Records = adapter.NewMongoRecordStore(mongoDB.Collection(actions.Records.Collection))
	}

	if actions.Ticketing.BaseURL != "" {
		collab.Tickets = adapter.NewHTTPTicketing(actions.Ticketing.BaseURL, actions.Ticketing.Token,
			&http.Client{Timeout: actions.Ticketing.Timeout})
	}

	policy := retry.Policy{
		MaxAttempts:     actions.Webhook.Retry.MaxAttempts,
		InitialInterval: actions.Webhook.Retry.InitialInterval,
		MaxInterval:     actions.Webhook.Retry.MaxInterval,
		Multiplier:      actions.Webhook.Retry.Multiplier,
		MaxElapsedTime:  actions.Webhook.Retry.MaxElapsedTime,
	}
	collab.Webhooks = adapter.NewHTTPWebhookInvoker(actions.Webhook.SigningSecret, policy,
		&http.Client{Timeout: actions.Webhook.Timeout}, a.Logger.Named("webhook"))

	return collab, nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	engine.NewHandler(a.engine, a.Logger).RegisterRoutes(router)
	ledger.NewHandler(a.ledger, a.Logger).RegisterRoutes(router)

	router.GET("/health", a.health.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	kafka := a.Config.Broker.Kafka

	eventConsumer, err := a.NewConsumer(serviceName, kafka.GroupID)
	switch {
	case errors.Is(err, broker.ErrDisabled):
		a.Logger.InfowCtx(ctx, "Broker disabled, domain events are accepted over HTTP only")
	case err != nil:
		return fmt.Errorf("failed to create event consumer: %w", err)
	default:
		eventHandler := engine.NewEventHandler(a.engine, a.Logger.Named("consumer"))
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting domain event consumer", "topic", kafka.EventTopic)
			return eventConsumer.Consume(gCtx, kafka.EventTopic, eventHandler.HandleDomainEvent)
		})
	}

	// Every instance drops its own cache, so each one reads rule changes in a group of its own.
	if eventConsumer != nil && kafka.RuleChangeTopic != "" {
		changeConsumer, err := a.NewConsumer(serviceName, changeGroupID(kafka.GroupID))
		if err != nil {
			return fmt.Errorf("failed to create rule change consumer: %w", err)
		}
		changeHandler := changefeed.NewHandler(a.store, a.Logger.Named("changefeed"))
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting rule change consumer", "topic", kafka.RuleChangeTopic)
			return changeConsumer.Consume(gCtx, kafka.RuleChangeTopic, changeHandler.HandleRuleChangeEvent)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down engine service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.ledgerClose != nil {
			if err := a.ledgerClose(); err != nil {
				errs = append(errs, fmt.Errorf("ledger close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(shutdownCtx, additionalShutdown)
}

func changeGroupID(groupID string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = uuid.NewString()
	}
	return fmt.Sprintf("%s-changes-%s", groupID, host)
}
