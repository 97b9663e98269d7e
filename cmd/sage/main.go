package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/sage/config"
	"github.com/Ramsey-B/sage/internal/repositories/alert"
	"github.com/Ramsey-B/sage/internal/repositories/alertrule"
	"github.com/Ramsey-B/sage/internal/repositories/history"
	"github.com/Ramsey-B/sage/internal/repositories/keyfigure"
	"github.com/Ramsey-B/sage/internal/repositories/planningdata"
	"github.com/Ramsey-B/sage/internal/repositories/timesetting"
	"github.com/Ramsey-B/sage/internal/repositories/version"
	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/events"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/middleware"
	sageredis "github.com/Ramsey-B/sage/pkg/redis"
	alertroutes "github.com/Ramsey-B/sage/pkg/routes/alert"
	alertruleroutes "github.com/Ramsey-B/sage/pkg/routes/alertrule"
	"github.com/Ramsey-B/sage/pkg/routes/health"
	historyroutes "github.com/Ramsey-B/sage/pkg/routes/history"
	keyfigureroutes "github.com/Ramsey-B/sage/pkg/routes/keyfigure"
	planningdataroutes "github.com/Ramsey-B/sage/pkg/routes/planningdata"
	timesettingroutes "github.com/Ramsey-B/sage/pkg/routes/timesetting"
	versionroutes "github.com/Ramsey-B/sage/pkg/routes/version"
	"github.com/Ramsey-B/sage/pkg/tracing"
	"github.com/Ramsey-B/sage/pkg/versioning"
)

const serviceVersion = "1.0.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	logger := newLogger(cfg)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		fatal(logger, err, "failed to connect to database")
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		fatal(logger, err, "failed to run migrations")
	}

	db := database.NewDatabaseInstance(sqlxDB, logger)

	var redisClient *sageredis.Client
	var locker versioning.Locker
	if cfg.RedisEnabled {
		redisClient, err = sageredis.NewClient(sageredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			fatal(logger, err, "failed to connect to Redis")
		}
		locker = versioning.NewRedisLocker(sageredis.NewLocker(redisClient, ""))
	} else {
		logger.Warn("Redis disabled; version write locks are per-instance only")
	}

	var producer *kafka.Producer
	var publisher events.Publisher
	if cfg.KafkaEnabled {
		producerConfig := kafka.DefaultProducerConfig()
		producerConfig.Brokers = cfg.KafkaBrokers
		producerConfig.Topic = cfg.KafkaOutputTopic
		producerConfig.BatchSize = cfg.KafkaBatchSize
		producerConfig.BatchTimeout = time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond
		producerConfig.RequiredAcks = cfg.KafkaRequiredAcks
		producerConfig.Compression = cfg.KafkaCompression

		producer, err = kafka.NewProducer(producerConfig, logger)
		if err != nil {
			fatal(logger, err, "failed to create Kafka producer")
		}
		publisher = producer
	} else {
		logger.Warn("Kafka disabled; planning events will not be published")
	}
	emitter := events.NewEmitter(publisher, logger)

	versionRepo := version.NewRepository(db, logger)
	manager := versioning.NewManager(versionRepo, locker, emitter, logger)
	resolver := horizon.NewResolver(nil)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		fatal(logger, err, "failed to create DI container")
	}
	register(logger, container, logger)
	register[database.DB](logger, container, db)
	register(logger, container, timesetting.NewRepository(db, logger))
	register(logger, container, keyfigure.NewRepository(db, logger))
	register(logger, container, versionRepo)
	register(logger, container, planningdata.NewRepository(db, logger))
	register(logger, container, alertrule.NewRepository(db, logger))
	register(logger, container, alert.NewRepository(db, logger))
	register(logger, container, history.NewRepository(db, logger))
	register(logger, container, resolver)
	register(logger, container, manager)
	register(logger, container, emitter)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	var redisPinger interface{ Ping(ctx context.Context) error }
	if redisClient != nil {
		redisPinger = redisClient
	}
	checker := health.NewChecker(sqlxDB, redisPinger, serviceVersion)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	timesettingroutes.Register(api.Group("/time-settings"))
	keyfigureroutes.Register(api.Group("/key-figures"))
	versionroutes.Register(api.Group("/versions"))
	planningdataroutes.Register(api.Group("/planning-data"))
	alertroutes.Register(api.Group("/alerts"))
	alertruleroutes.Register(api.Group("/alert-rules"))
	historyroutes.Register(api.Group("/history"))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	go func() {
		checker.SetReady(true)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			fatal(logger, err, "server stopped unexpectedly")
		}
	}()
	logger.Infof("%s listening on port %d", cfg.AppName, cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	checker.SetReady(false)
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("failed to shut down server cleanly")
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Error("failed to close Kafka producer")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Error("failed to close Redis client")
		}
	}
	if err := sqlxDB.Close(); err != nil {
		logger.WithError(err).Error("failed to close database")
	}
	_ = tp.Shutdown(ctx)
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Errorf("failed to create logger: %w", err))
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}
	service := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	return service.Migrate(cfg.DatabaseName, driver)
}

func register[T any](logger ectologger.Logger, container ectocontainer.DIContainer, instance T) {
	if err := ectoinject.RegisterInstance[T](container, instance); err != nil {
		fatal(logger, err, "failed to register dependency")
	}
}

func fatal(logger ectologger.Logger, err error, message string) {
	logger.WithError(err).Error(message)
	os.Exit(1)
}
