package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordermgmt/internal/config"
	"ordermgmt/internal/domain/model"
	"ordermgmt/internal/handler"
	"ordermgmt/internal/infra/cache"
	"ordermgmt/internal/infra/db"
	"ordermgmt/internal/infra/messaging"
	infraRepo "ordermgmt/internal/infra/repository"
	"ordermgmt/internal/infra/webhook"
	"ordermgmt/internal/observability"
	"ordermgmt/internal/server"
	"ordermgmt/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// 閉じる必要のあるpublisher
type publisher interface {
	usecase.EventPublisher
	Close() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.GoEnv, cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return err
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	outboxRepo := infraRepo.NewOutboxGormRepository(gormDB)

	//cache
	var orderCache usecase.Cache
	switch cfg.CacheDriver {
	case "redis":
		rdb, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		orderCache = cache.NewRedis(rdb, cfg.CacheKeyPrefix)
	default:
		orderCache = cache.NewMemory(cfg.CacheMaxItems, cfg.CacheTTL, cfg.CacheKeyPrefix)
	}

	//queue
	var pub publisher
	if brokers := messaging.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		pub = messaging.NewKafkaPublisher(brokers, log)
	} else {
		log.Warn("KAFKA_BROKERS not set, lifecycle events will not be published")
		pub = messaging.NewDisabledPublisher(log)
	}
	defer func() { _ = pub.Close() }()

	//webhook
	notifier := webhook.NewNotifier(
		&http.Client{Timeout: cfg.WebhookTimeout},
		map[model.LifecycleEvent]string{
			model.EventOrderCreated:   cfg.WebhookOrderCreatedURL,
			model.EventOrderCancelled: cfg.WebhookOrderCancelledURL,
		},
		log,
	)

	//metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(usecase.OrderUsecaseDeps{
		Tx:           txm,
		Orders:       orderRepo,
		Products:     productRepo,
		Outbox:       outboxRepo,
		Cache:        orderCache,
		Publisher:    pub,
		Notifier:     notifier,
		IDs:          idGen,
		Clock:        clock,
		Logger:       log,
		Metrics:      metrics,
		CacheTTL:     cfg.CacheTTL,
		InfraTimeout: cfg.InfraTimeout,
	})
	productUC := usecase.NewProductUsecase(txm, productRepo, inventoryRepo, idGen, clock, log)
	relay := usecase.NewOutboxRelay(outboxRepo, notifier, pub, clock, log, metrics, usecase.OutboxRelayConfig{
		Interval:    cfg.OutboxInterval,
		Batch:       cfg.OutboxBatch,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Timeout:     cfg.InfraTimeout,
	})

	//Server
	srv := server.New(server.Deps{
		Orders:   handler.NewOrderHandler(orderUC),
		Products: handler.NewProductHandler(productUC),
		Log:      log,
		Metrics:  metrics,
		Gatherer: reg,
		//1リクエストで store/cache/queue を数回呼ぶ
		RequestTimeout: 4 * cfg.InfraTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(cfg.ListenAddr())
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(sctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := shutdownTracing(sctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("exited with error", zap.Error(err))
		return err
	}
	log.Info("bye")
	return nil
}
