// Точка входа реестра коллекционных записей.
// Загружает конфигурацию, подключается к PostgreSQL (или создаёт хранилище
// в памяти), применяет миграции, создаёт сервисный слой и API handlers,
// запускает фоновую очистку истёкших передач, topologymetrics,
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/collectible-registry/internal/api/handlers"
	"github.com/bigkaa/collectible-registry/internal/api/middleware"
	"github.com/bigkaa/collectible-registry/internal/api/openapi"
	"github.com/bigkaa/collectible-registry/internal/clock"
	"github.com/bigkaa/collectible-registry/internal/config"
	"github.com/bigkaa/collectible-registry/internal/database"
	"github.com/bigkaa/collectible-registry/internal/domain/ratelimit"
	"github.com/bigkaa/collectible-registry/internal/repository"
	"github.com/bigkaa/collectible-registry/internal/repository/memstore"
	"github.com/bigkaa/collectible-registry/internal/server"
	"github.com/bigkaa/collectible-registry/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Collectible Registry запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", cfg.Storage),
	)

	if os.Getenv("CR_DEPHEALTH_GROUP") == "" {
		logger.Warn("CR_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. Хранилище
	var (
		store     repository.Store
		pgChecker handlers.ReadinessChecker
		pgDB      *sql.DB
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		// 3.1 Применение миграций БД
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		// 3.2 Подключение к PostgreSQL (pgxpool)
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// 3.3 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
		// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
		// что позволяет обнаружить его исчерпание.
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		store = repository.NewPostgresStore(pool)
		pgChecker = database.NewReadinessChecker(pool)
	default:
		logger.Warn("Используется хранилище в памяти, данные не переживут перезапуск")
		store = memstore.New()
	}

	// 4. Источник высоты и исполнитель операций
	heights := clock.NewWallClock(cfg.GenesisTime, cfg.HeightInterval)
	engine := service.NewEngine(
		store,
		heights,
		ratelimit.Limits{Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		cfg.AdminSubject,
		logger,
	)
	if err := engine.Bootstrap(ctx); err != nil {
		logger.Error("Ошибка инициализации состояния протокола", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Состояние протокола готово",
		slog.Int64("height", engine.Height()),
		slog.String("admin", cfg.AdminSubject),
	)

	// 5. Services
	services := handlers.Services{
		Records:   service.NewRecordService(engine, logger),
		Access:    service.NewAccessService(engine, logger),
		Ledger:    service.NewAuthenticityService(engine, logger),
		Transfers: service.NewTransferService(engine, cfg.TransferDelay, logger),
		Protocol:  service.NewProtocolService(engine, logger),
		Limiter:   service.NewRateLimiter(engine),
	}

	// 6. Фоновая очистка истёкших передач
	sweeper := service.NewSweeper(services.Transfers, cfg.SweepInterval, logger)
	sweeper.Start(ctx)

	// 7. topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "collectible-registry",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 8. Readiness checkers (PostgreSQL + JWKS)
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, jwksChecker)

	// 9. OpenAPI-документ и валидатор запросов
	doc, err := openapi.Load()
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-документа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var validator *openapi.Validator
	if cfg.OpenAPIValidation {
		validator, err = openapi.NewValidator(doc, logger)
		if err != nil {
			logger.Error("Ошибка создания OpenAPI-валидатора", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 10. API handler (реализует openapi.ServerInterface)
	apiHandler := handlers.NewAPIHandler(healthHandler, services, doc, logger)

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, server.Options{
		JWTAuth:     jwtAuth,
		Idempotency: middleware.NewIdempotency(cfg.IdempotencyCacheSize, cfg.IdempotencyTTL),
		Validator:   validator,
	})
	runErr := srv.Run()

	// 13. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	sweeper.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Collectible Registry остановлен")
}
