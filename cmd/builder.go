package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"factoryops/api"
	"factoryops/api/health"
	apiintent "factoryops/api/intent"
	intentapp "factoryops/application/intent"
	"factoryops/config"
	"factoryops/domain/factory"
	"factoryops/domain/intent"
	"factoryops/domain/shared"
	"factoryops/infrastructure/classifier"
	"factoryops/infrastructure/metrics"
	"factoryops/infrastructure/persistence/gormdb"
	"factoryops/infrastructure/persistence/mocks"
	"factoryops/infrastructure/persistence/retry"
	"factoryops/infrastructure/rules"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// backend Storage behind the engine
type backend struct {
	repos     factory.Repositories
	tokens    intent.TokenRepository
	mutations intent.MutationLog
	uow       shared.UnitOfWork
	db        *gorm.DB // nil for the in-memory store
}

// AppBuilder builds an App with customizable components
type AppBuilder struct {
	cfg       *config.Config
	now       func() time.Time
	extractor intent.SlotExtractor
}

// NewBuilder creates a new AppBuilder
func NewBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg, now: time.Now}
}

// WithClock replaces the wall clock used by the engine and the rules.
func (b *AppBuilder) WithClock(now func() time.Time) *AppBuilder {
	b.now = now
	return b
}

// WithSlotExtractor overrides the configured classifier.
func (b *AppBuilder) WithSlotExtractor(e intent.SlotExtractor) *AppBuilder {
	b.extractor = e
	return b
}

// Build creates the App instance. The logger must already be initialised.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	logger.Info("Starting application",
		zap.String("app", b.cfg.App.Name),
		zap.String("version", b.cfg.App.Version),
		zap.String("env", b.cfg.App.Env))

	store, err := openBackend(b.cfg, b.now)
	if err != nil {
		return nil, err
	}

	evaluator, err := rules.LoadFile(b.cfg.Intent.RulesPath, rules.WithClock(b.now))
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	logger.Info("Validation rules loaded",
		zap.String("path", b.cfg.Intent.RulesPath),
		zap.Strings("groups", evaluator.Groups()))

	extractor := b.extractor
	if extractor == nil && b.cfg.Intent.Classifier.Enabled {
		g, err := classifier.NewGemini(ctx, b.cfg.Intent.Classifier)
		if err != nil {
			return nil, err
		}
		extractor = g
		logger.Info("Slot classifier enabled", zap.String("model", b.cfg.Intent.Classifier.Model))
	}

	prom := metrics.NewPrometheus()
	engine, err := newEngine(b.cfg, store, evaluator, prom, b.now)
	if err != nil {
		return nil, err
	}

	dispatcher := intentapp.NewDispatcher(engine,
		intentapp.NewDataOpHandler(engine, extractor),
		intentapp.NewMaterialHandler(engine, extractor),
		intentapp.NewQueryHandler(engine, extractor),
	)

	// a typed-nil *sql.DB would pass the nil check inside the health controller
	var pinger health.Pinger
	if store.db != nil {
		sqlDB, err := store.db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		pinger = sqlDB
	}

	var metricsHandler http.Handler
	if b.cfg.Metrics.Enabled {
		metricsHandler = prom.Handler()
	}

	router := api.NewRouter(b.cfg,
		health.NewController(b.cfg, pinger, evaluator.Groups()),
		apiintent.NewController(dispatcher),
		metricsHandler)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + b.cfg.Server.Port,
		Handler:      router.GetEngine(),
		ReadTimeout:  b.cfg.Server.ReadTimeout,
		WriteTimeout: b.cfg.Server.WriteTimeout,
	}

	app := &App{
		config: b.cfg,
		router: router,
		server: server,
		engine: engine,
		db:     store.db,
	}
	if b.cfg.Intent.Sweeper.Enabled {
		app.sweeper, err = intentapp.NewTokenSweeper(engine, b.cfg.Intent.Sweeper.Interval, b.cfg.Intent.Sweeper.Retention)
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

func newEngine(cfg *config.Config, store *backend, evaluator intent.RuleEvaluator, m intentapp.Metrics, now func() time.Time) (*intentapp.Engine, error) {
	policy, err := intent.ParseValidationPolicy(cfg.Intent.ValidationPolicy)
	if err != nil {
		return nil, err
	}
	confirm := make([]string, 0, len(cfg.Intent.ConfirmRequired))
	for _, code := range cfg.Intent.ConfirmRequired {
		confirm = append(confirm, strings.ToUpper(strings.TrimSpace(code)))
	}

	return intentapp.NewEngine(intentapp.Config{
		TokenTTL:         cfg.Intent.TokenTTL,
		EvaluatorTimeout: cfg.Intent.EvaluatorTimeout,
		Policy:           policy,
		ConfirmRequired:  confirm,
	}, intentapp.Dependencies{
		Entities:  factory.NewEntityStore(store.repos),
		Tokens:    store.tokens,
		Mutations: store.mutations,
		UoW:       store.uow,
		Evaluator: evaluator,
		Metrics:   m,
		Now:       now,
	}), nil
}

// openBackend selects the storage by database.type. The in-memory store is
// seeded with demo records.
func openBackend(cfg *config.Config, now func() time.Time) (*backend, error) {
	if cfg.Database.Type == "mock" {
		logger.Info("Using in-memory persistence layer with demo data")
		s := mocks.NewSeededStore(now())
		return &backend{
			repos:     s.Repositories(),
			tokens:    s.Tokens(),
			mutations: s.Mutations(),
			uow:       s.UnitOfWork(),
		}, nil
	}

	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate || cfg.IsDevelopment() {
		if err := gormdb.Migrate(db); err != nil {
			return nil, err
		}
	}
	return &backend{
		repos:     gormdb.NewRepositories(db),
		tokens:    gormdb.NewTokenRepository(db),
		mutations: gormdb.NewMutationLog(db),
		uow:       gormdb.NewUnitOfWork(db, retry.FromAppConfig(cfg)),
		db:        db,
	}, nil
}

// connect opens and pings the configured SQL database.
func connect(cfg *config.Config) (*gorm.DB, error) {
	dbConfig := &gormdb.Config{
		Driver:          cfg.Database.Type,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Username:        cfg.Database.Username,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SQLitePath:      cfg.Database.SQLitePath,
		LogLevel:        cfg.Database.LogLevel,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := dbConfig.Connect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gormdb.Ping(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Database.Type, err)
	}
	return db, nil
}
