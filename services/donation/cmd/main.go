// Donation Service — микросервис пожертвований приютам.
// Создаёт платёжные намерения в Stripe, обрабатывает webhook-уведомления
// и подтверждения клиента, публикует смены статусов через Outbox Pattern.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/pet-adoption/pkg/circuitbreaker"
	"example.com/pet-adoption/pkg/config"
	dbpkg "example.com/pet-adoption/pkg/db"
	"example.com/pet-adoption/pkg/healthcheck"
	"example.com/pet-adoption/pkg/jwt"
	"example.com/pet-adoption/pkg/kafka"
	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/pkg/metrics"
	"example.com/pet-adoption/pkg/outbox"
	"example.com/pet-adoption/pkg/tracing"
	"example.com/pet-adoption/services/donation/internal/dedup"
	"example.com/pet-adoption/services/donation/internal/gateway"
	"example.com/pet-adoption/services/donation/internal/handler"
	"example.com/pet-adoption/services/donation/internal/middleware"
	"example.com/pet-adoption/services/donation/internal/repository"
	"example.com/pet-adoption/services/donation/internal/service"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Инициализируем логгер
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})

	log := logger.With().Str("service", "donation-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Msg("Запуск Donation Service")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "donation-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	// Подключаемся к MySQL
	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	// Миграция схемы (donations + outbox)
	if err := db.AutoMigrate(&repository.DonationModel{}, &outbox.OutboxModel{}); err != nil {
		log.Fatal().Err(err).Msg("Ошибка миграции схемы БД")
	}

	// Подключаемся к Redis
	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	// Проверяем подключение к Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	cancel()
	log.Info().Msg("Подключение к Redis установлено")

	// ReadinessChecker для /readyz — проверяет MySQL и Redis
	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, rdb) },
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			"donation-service",
			metrics.WithReadinessCheck(readinessCheck),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Аутентификация ===

	// Валидатор JWT: подпись проверяется локально публичным ключом платформы,
	// отозванные токены отклоняются по blacklist в Redis.
	tokenValidator, err := jwt.NewValidator(jwt.Config{
		PublicKeyPath: cfg.JWT.PublicKeyPath,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка загрузки публичного ключа JWT")
	}
	tokenValidator.SetBlacklist(jwt.NewBlacklist(rdb))

	// === Инициализация бизнес-логики ===

	donationRepo := repository.NewDonationRepository(db)
	transitionEngine := service.NewTransitionEngine(donationRepo)

	// Платёжный шлюз Stripe за circuit breaker:
	// при деградации Stripe отдаём 503 сразу, не накапливая зависшие запросы.
	stripeGateway := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:      cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		RequestTimeout: cfg.Stripe.RequestTimeout,
	}, circuitbreaker.New("stripe"))

	dedupStore := dedup.NewStore(rdb, cfg.Donation.DedupRetention)

	creator := service.NewIntentCreator(donationRepo, stripeGateway, service.DonationLimits{
		MaxAmount:        cfg.Donation.MaxAmount,
		SupportsCurrency: cfg.Donation.SupportsCurrency,
	})
	confirmer := service.NewPaymentConfirmer(donationRepo, stripeGateway, transitionEngine)
	webhookProcessor := service.NewWebhookProcessor(stripeGateway, transitionEngine, dedupStore)
	queryService := service.NewQueryService(donationRepo)

	// Контекст для graceful shutdown фоновых воркеров
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	// === Outbox Worker ===

	var kafkaProducer *kafka.Producer
	var workersWg sync.WaitGroup

	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		// Создаём топики если не существуют
		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, kafka.DefaultTopics()); err != nil {
			log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
		}

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		// Outbox Worker: читает outbox → отправляет donation.status в Kafka.
		// Смена статуса фиксируется в одной транзакции с записью outbox,
		// доставка — at-least-once.
		outboxRepo := outbox.NewOutboxRepository(db, "donation")
		outboxWorker := outbox.NewOutboxWorker(outboxRepo, kafkaProducer, outbox.DefaultWorkerConfig(), "donation")
		workersWg.Add(1)
		go func() {
			defer workersWg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Паника в Donation Outbox Worker")
				}
			}()
			outboxWorker.Run(ctx)
		}()

		log.Info().Msg("Donation Outbox Worker запущен")
	} else {
		log.Warn().Msg("Kafka не настроена — публикация смен статусов отключена")
	}

	// === Инициализация middleware ===

	tracingMW := middleware.NewTracingMiddleware()

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimitMW = middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Redis:  rdb,
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		})
		log.Info().
			Int("limit", cfg.RateLimit.Limit).
			Dur("window", cfg.RateLimit.Window).
			Msg("Rate limiting включён")
	}

	authMW := middleware.NewAuthMiddleware(tokenValidator)

	// === Настройка роутера ===

	router := handler.NewRouter(handler.RouterConfig{
		DonationHandler: handler.NewDonationHandler(creator, confirmer, queryService),
		WebhookHandler:  handler.NewWebhookHandler(webhookProcessor),
		AuthMW:          authMW,
		RateLimitMW:     rateLimitMW,
		TracingMW:       tracingMW,
		ReadinessCheck:  readinessCheck,
		Debug:           cfg.IsDevelopment(),
	})

	// === HTTP сервер ===

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.HTTP.Addr()).
			Msg("HTTP сервер запущен")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Graceful Shutdown ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	// Даём время на завершение текущих запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка при остановке сервера")
	}

	// Останавливаем Outbox Worker
	cancel()
	workersWg.Wait()

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	// Закрываем подключение к MySQL
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

	// Останавливаем Metrics Server (если был запущен)
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	// Останавливаем Tracing
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Donation Service остановлен")
}
