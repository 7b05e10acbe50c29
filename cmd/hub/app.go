package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golearn/learning-hub/config"
	"github.com/golearn/learning-hub/internal/application/command"
	"github.com/golearn/learning-hub/internal/application/eventhandler"
	"github.com/golearn/learning-hub/internal/application/reward"
	"github.com/golearn/learning-hub/internal/application/saga"
	"github.com/golearn/learning-hub/internal/domain/achievement"
	"github.com/golearn/learning-hub/internal/domain/leaderboard"
	"github.com/golearn/learning-hub/internal/domain/learner"
	"github.com/golearn/learning-hub/internal/domain/lesson"
	"github.com/golearn/learning-hub/internal/domain/progress"
	"github.com/golearn/learning-hub/internal/domain/quiz"
	"github.com/golearn/learning-hub/internal/infrastructure/messaging"
	"github.com/golearn/learning-hub/internal/infrastructure/metrics"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/memory"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/mongo"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/postgres"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/projections"
	"github.com/golearn/learning-hub/internal/infrastructure/persistence/redis"
	"github.com/golearn/learning-hub/internal/interface/http/handlers"
	"github.com/golearn/learning-hub/pkg/logger"
	"github.com/golearn/learning-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// storage - общий контракт memory.Store и postgres.Store.
type storage interface {
	Learners() learner.Repository
	Lessons() lesson.Repository
	Quizzes() quiz.Repository
	Progress() progress.Repository
	Achievements() achievement.Repository
	Stats() achievement.StatsReader
	Ledger() achievement.Ledger
	PointsLog() achievement.HistoryReader
	Ping(ctx context.Context) error
}

// app - собранный граф зависимостей одного процесса.
type app struct {
	cfg *config.Config
	log *logger.Logger

	store   storage
	lessons lesson.Repository
	quizzes quiz.Repository

	// board - Redis или проекция в памяти процесса.
	board leaderboard.Board

	// sharedBoard - доска видна всем процессам (Redis).
	sharedBoard bool

	bus     *messaging.InMemoryEventBus
	metrics *metrics.Metrics
	ledger  *reward.Ledger
	flow    *saga.AchievementFlowSaga
	health  *handlers.CompositeHealthChecker

	closers []func()
}

// buildApp подключает хранилища и собирает ядро начислений.
// При ошибке уже открытые ресурсы закрываются.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger, flags *globalFlags) (_ *app, err error) {
	a := &app{
		cfg:    cfg,
		log:    log,
		health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	perLevel := cfg.Gamification.PointsPerLevel

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ОСНОВНОЕ ХРАНИЛИЩЕ (PostgreSQL или память процесса)
	// ─────────────────────────────────────────────────────────────────────────
	if flags.memory || cfg.Database.URL == "" {
		if cfg.IsProduction() {
			return nil, errors.New("in-process store is not allowed in production")
		}
		log.Warn("using in-process store, data is lost on exit")
		mem := memory.NewStore(perLevel)
		if err := seedAchievements(ctx, mem.Achievements()); err != nil {
			return nil, fmt.Errorf("seed achievements: %w", err)
		}
		a.store = mem
		a.health.AddCheck("store", handlers.NewPingCheck(mem))
	} else {
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.onClose(conn.Close)

		store := postgres.NewStore(conn, perLevel)
		a.store = store
		a.health.AddCheck("postgres", handlers.NewPingCheck(store))
	}
	a.lessons, a.quizzes = a.store.Lessons(), a.store.Quizzes()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. КАТАЛОГ В MONGODB (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Catalog.Backend == config.CatalogMongo {
		log.Info("connecting to MongoDB catalog...")
		client, err := mongo.Connect(ctx, mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		a.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		if err := client.InitializeIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}

		a.lessons = mongo.NewLessonRepository(client.Database())
		a.quizzes = mongo.NewQuizRepository(client.Database())
		a.health.AddCheck("mongo", handlers.NewPingCheck(client))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: КЕШ КАТАЛОГА И ЛИДЕРБОРД (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			// Без Redis сервис работает: каталог читается из хранилища, доска ведётся в памяти
			log.Warn("redis unavailable, catalog cache and shared leaderboard disabled", logger.Err(err))
		} else {
			a.onClose(func() { _ = cache.Close() })
			a.health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))

			if cfg.Catalog.CacheEnabled {
				cc := redis.NewCatalogCache(cache, a.lessons, a.quizzes, cfg.Catalog.CacheTTL, log)
				a.lessons, a.quizzes = cc.Lessons(), cc.Quizzes()
			}
			a.board = redis.NewLeaderboard(cache, perLevel, cfg.Gamification.LeaderboardSize)
			a.sharedBoard = true
		}
	}
	if a.board == nil {
		log.Info("using in-process leaderboard")
		a.board = projections.NewLeaderboardView(perLevel, cfg.Gamification.LeaderboardSize)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Observability.MetricsEnabled {
		a.metrics = metrics.New()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS И ПОДПИСЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	if cfg.Messaging.Workers > 0 {
		busCfg.Workers = cfg.Messaging.Workers
	}
	if a.metrics != nil {
		busCfg.Observer = a.metrics
	}
	a.bus = messaging.NewInMemoryEventBus(busCfg)

	var forwarder *messaging.RabbitForwarder
	onPoints := eventhandler.NewOnPointsAwardedHandler(a.board, cfg.Features, log, eventhandler.DefaultPointsAwardedConfig())
	if err := onPoints.Subscribe(a.bus); err != nil {
		return nil, fmt.Errorf("subscribe leaderboard updater: %w", err)
	}
	if cfg.Messaging.RabbitURL != "" {
		forwarder, err = messaging.DialRabbitForwarder(ctx, messaging.RabbitForwarderConfig{
			URL:      cfg.Messaging.RabbitURL,
			Exchange: cfg.Messaging.Exchange,
			Features: cfg.Features,
			Logger:   log,
		})
		if err != nil {
			log.Warn("rabbitmq unavailable, events stay in process", logger.Err(err))
			forwarder, err = nil, nil
		} else if err = forwarder.Attach(a.bus); err != nil {
			_ = forwarder.Close()
			return nil, fmt.Errorf("attach event forwarder: %w", err)
		}
	}

	// Шина закрывается раньше всего, что получает из неё события
	a.onClose(func() {
		_ = a.bus.Close()
		if forwarder != nil {
			_ = forwarder.Close()
		}
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЯДРО НАЧИСЛЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	var ledgerMetrics reward.Metrics
	if a.metrics != nil {
		ledgerMetrics = a.metrics
	}
	a.ledger = reward.NewLedger(a.store.Ledger(), a.bus, ledgerMetrics, log)
	a.flow = saga.NewAchievementFlowSaga(
		a.store.Stats(),
		a.store.Achievements(),
		a.ledger,
		log,
		saga.DefaultAchievementFlowConfig(),
	)

	return a, nil
}

// commandDeps возвращает зависимости обработчиков команд.
func (a *app) commandDeps() command.Dependencies {
	return command.Dependencies{
		Learners:  a.store.Learners(),
		Lessons:   a.lessons,
		Quizzes:   a.quizzes,
		Progress:  a.store.Progress(),
		Ledger:    a.ledger,
		Flow:      a.flow,
		Publisher: a.bus,
		Features:  a.cfg.Features,
		Clock:     timeutil.SystemClock{},
		Logger:    a.log,
	}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close освобождает ресурсы в обратном порядке открытия.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadConfig читает конфигурацию и настраивает логгер.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.App.Version == "" {
		cfg.App.Version = version
	}
	return cfg, setupLogger(cfg), nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Format = cfg.Observability.LogFormat
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

// connectPostgres открывает пул и при AutoMigrate применяет миграции.
func connectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	log.Info("connecting to database...")

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	if cfg.Database.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.MaxConnLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}
	return conn, nil
}

// redisConfig переносит настройки окружения поверх значений по умолчанию.
func redisConfig(rc config.RedisConfig) redis.Config {
	out := redis.DefaultConfig()
	out.URL = rc.URL
	out.Password = rc.Password
	out.DB = rc.DB
	if rc.Host != "" {
		out.Host = rc.Host
	}
	if rc.Port > 0 {
		out.Port = rc.Port
	}
	if rc.PoolSize > 0 {
		out.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		out.MinIdleConns = rc.MinIdleConns
	}
	if rc.DialTimeout > 0 {
		out.DialTimeout = rc.DialTimeout
	}
	if rc.ReadTimeout > 0 {
		out.ReadTimeout = rc.ReadTimeout
	}
	if rc.WriteTimeout > 0 {
		out.WriteTimeout = rc.WriteTimeout
	}
	if rc.KeyPrefix != "" {
		out.KeyPrefix = rc.KeyPrefix
	}
	return out
}
