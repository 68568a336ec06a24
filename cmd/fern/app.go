package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/internal/repositories/sqlstore"
	"github.com/Ramsey-B/fern/pkg/compatibility"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/mergerecord"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/resolution"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type startOptions struct {
	migrate bool
	// sideEffects enables the post-merge hooks (merge records, events, graph projection)
	sideEffects bool
	tracing     bool
}

// app owns the process dependencies and the resolution service built on them
type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup
	health  *health.Checker

	db      database.DB
	hooks   []resolution.MergeHook
	records resolution.RecordReader
	service *resolution.Service
}

func newApp(cfg *config.Config, logger ectologger.Logger) *app {
	return &app{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:  health.NewChecker(cfg.Version),
	}
}

func (a *app) start(ctx context.Context, opts startOptions) error {
	cfg := a.cfg

	if opts.tracing {
		var shutdown func(context.Context) error
		a.startup.AddDependency(&startup.Dependency{
			Name: "tracing",
			StartFunc: func(ctx context.Context) error {
				var err error
				shutdown, err = tracing.NewProvider(ctx, tracing.ProviderConfig{
					ServiceName: cfg.AppName,
					Endpoint:    cfg.OTLPEndpoint,
					Insecure:    cfg.OTLPInsecure,
					Timeout:     cfg.OTLPTimeout,
					SampleRatio: cfg.TracingSampleRate,
				})
				return err
			},
			StopFunc: func(ctx context.Context) error {
				if shutdown == nil {
					return nil
				}
				return shutdown(ctx)
			},
		})
	}

	a.startup.AddDependency(&startup.Dependency{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			conn, err := database.Connect(ctx, a.logger, cfg.DatabaseDriver, cfg.DatabaseDSN(), database.PoolConfig{
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, &sql.TxOptions{Isolation: database.IsolationLevel(cfg.DatabaseMergeIsolation)})
			if err != nil {
				return err
			}
			a.db = conn
			a.health.AddCheck("database", conn.PingContext)
			return nil
		},
		StopFunc: func(context.Context) error {
			return a.db.Close()
		},
	})

	if opts.migrate {
		a.startup.AddDependency(&startup.Dependency{
			Name:     "migrations",
			Requires: []string{"database"},
			StartFunc: func(context.Context) error {
				source, dir := db.Migrations(cfg.DatabaseDriver)
				migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
					Version:      uint(cfg.DatabaseMigrationVersion),
					Force:        cfg.DatabaseMigrationForce,
					AutoRollback: cfg.DatabaseMigrationAutoRollback,
				}, source, dir)
				return migrations.Migrate(cfg.DatabaseDriver, a.db.Unwrap())
			},
		})
	}

	if opts.sideEffects {
		a.addSideEffects()
	}

	if err := a.startup.Start(ctx); err != nil {
		return err
	}

	rules, err := compatibility.LoadRules(cfg.CompatibilityRules)
	if err != nil {
		return err
	}

	serviceOpts := []resolution.Option{
		resolution.WithAnalyzer(compatibility.NewAnalyzer(rules, nil)),
		resolution.WithConfig(resolution.Config{
			DefaultMinScore:      cfg.MatchMinScore,
			DefaultMinConfidence: cfg.MatchMinConfidence,
		}),
		resolution.WithHooks(a.hooks...),
	}
	if a.records != nil {
		serviceOpts = append(serviceOpts, resolution.WithRecords(a.records))
	}

	a.service = resolution.NewService(sqlstore.New(a.db, a.logger), a.logger, serviceOpts...)
	return nil
}

// addSideEffects registers the optional post-merge backends. Hooks run in the order
// records, events, graph.
func (a *app) addSideEffects() {
	cfg := a.cfg

	if cfg.RedisEnabled {
		var client *redis.Client
		a.startup.AddDependency(&startup.Dependency{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				var err error
				client, err = redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, a.logger)
				if err != nil {
					return err
				}
				store := mergerecord.NewStore(client, cfg.MergeRecordTTL, a.logger)
				a.records = store
				a.hooks = append(a.hooks, store)
				a.health.AddOptionalCheck("redis", client.Ping)
				return nil
			},
			StopFunc: func(context.Context) error {
				return client.Close()
			},
		})
	}

	if cfg.KafkaEnabled {
		var producer *kafka.Producer
		a.startup.AddDependency(&startup.Dependency{
			Name: "kafka",
			StartFunc: func(context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, a.logger)
				a.hooks = append(a.hooks, events.NewEmitter(producer, a.logger))
				return nil
			},
			StopFunc: func(context.Context) error {
				return producer.Close()
			},
		})
	}

	if cfg.GraphEnabled {
		var client *graph.Client
		a.startup.AddDependency(&startup.Dependency{
			Name: "graph",
			StartFunc: func(ctx context.Context) error {
				var err error
				client, err = graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, a.logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				a.hooks = append(a.hooks, graph.NewProjection(client, a.logger))
				a.health.AddOptionalCheck("graph", client.VerifyConnectivity)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				return client.Close(ctx)
			},
		})
	}
}

func (a *app) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to stop dependencies cleanly")
	}
}
