package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-pipeline/internal/config"
	"order-pipeline/internal/database"
	"order-pipeline/internal/handler"
	"order-pipeline/internal/infrastructure/cache"
	"order-pipeline/internal/infrastructure/events"
	"order-pipeline/internal/infrastructure/payment"
	"order-pipeline/internal/logger"
	"order-pipeline/internal/metrics"
	"order-pipeline/internal/repo"
	"order-pipeline/internal/service"
	"order-pipeline/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	dbService := database.New(db, zl)
	defer dbService.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	publisher, err := newPublisher(cfg.Broker)
	if err != nil {
		return err
	}
	defer publisher.Close()

	snapshots, closeRedis := newSnapshotStore(ctx, cfg.Redis, zl)
	defer closeRedis()

	m := metrics.New()
	txRunner := database.NewTxRunner(db)
	orderRepo := repo.NewOrderRepo(db)
	productRepo := repo.NewProductRepo(db)
	cartRepo := repo.NewCartRepo(db)
	customerRepo := repo.NewCustomerRepo()
	paymentRepo := repo.NewPaymentRepo(db)

	gateway := payment.NewGateway(payment.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		TmnCode:     cfg.Gateway.TmnCode,
		HashSecret:  cfg.Gateway.HashSecret,
		ReturnURL:   cfg.Gateway.ReturnURL,
		Version:     cfg.Gateway.Version,
		Currency:    cfg.Gateway.Currency,
		Locale:      cfg.Gateway.Locale,
		AmountScale: cfg.Gateway.AmountScale,
	})

	orderService := service.NewOrderService(txRunner, orderRepo, productRepo, cartRepo, customerRepo, snapshots, publisher, gateway.Location(), zl)
	paymentService := service.NewPaymentService(txRunner, orderRepo, productRepo, paymentRepo, gateway, publisher, zl)
	lifecycleService := service.NewLifecycleService(txRunner, orderRepo, productRepo, publisher, zl)

	ttl := cfg.Sweep.PendingPaymentTTL
	if ttl < payment.ExpiryWindow {
		zl.Warn("pending payment ttl shorter than the gateway window, raising it",
			zap.Duration("configured", ttl), zap.Duration("ttl", payment.ExpiryWindow))
		ttl = payment.ExpiryWindow
	}
	sweeper := worker.NewReconciliationWorker(orderRepo, lifecycleService,
		cfg.Sweep.Interval, ttl, m.ExpiredOrders, zl)

	gin.SetMode(gin.ReleaseMode)
	h := handler.New(orderService, paymentService, lifecycleService, snapshots, dbService, m, cfg.FrontendURL, zl)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Router(cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newPublisher(cfg config.Broker) (events.Publisher, error) {
	switch cfg.Kind {
	case "kafka":
		return events.NewKafka(cfg.KafkaBrokers), nil
	case "rabbitmq":
		return events.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	default:
		return events.NewNoop(), nil
	}
}

// newSnapshotStore falls back to a store that keeps nothing when Redis is not configured or
// not reachable at startup.
func newSnapshotStore(ctx context.Context, cfg config.Redis, zl *zap.Logger) (cache.CartSnapshotStore, func()) {
	if cfg.Addr == "" {
		return cache.NewNoopSnapshotStore(), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		zl.Warn("redis unavailable, cart snapshots disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return cache.NewNoopSnapshotStore(), func() {}
	}
	return cache.NewRedisSnapshotStore(rdb), func() { _ = rdb.Close() }
}
