package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/shopmesh/orders-service/internal/clients"
	"github.com/shopmesh/orders-service/internal/config"
	"github.com/shopmesh/orders-service/internal/events"
	"github.com/shopmesh/orders-service/internal/metrics"
	"github.com/shopmesh/orders-service/internal/repository"
	"github.com/shopmesh/orders-service/internal/server"
	"github.com/shopmesh/orders-service/internal/service"
	"github.com/shopmesh/orders-service/internal/transport"
	"github.com/shopmesh/orders-service/pkg/logging"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	logger := logging.New("orders-service")
	defer logger.Sync()

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	orderRepo := repository.NewPostgresOrderRepository(db, logger)
	orderCache := repository.NewRedisOrderCache(cfg.Redis, logger)

	nc, err := nats.Connect(strings.Join(cfg.NATS.Servers, ","),
		nats.Name("orders-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Fatal("Failed to connect to NATS",
			zap.Strings("servers", cfg.NATS.Servers),
			zap.Error(err),
		)
	}
	defer nc.Close()

	productValidator := clients.NewNATSProductValidator(nc, cfg.Products, logger)

	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	orderService := service.NewOrderService(
		orderRepo,
		orderCache,
		productValidator,
		eventPublisher,
		cfg,
		logger,
	)

	busMetrics := metrics.NewBusMetrics("orders")

	router := transport.NewRouter(orderService, busMetrics, logger)
	if err := router.Subscribe(nc); err != nil {
		logger.Fatal("Failed to bind message patterns", zap.Error(err))
	}

	srv := server.New(cfg, db, orderCache, nc)
	go func() {
		logger.Info("Admin server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Admin server failed to start", zap.Error(err))
		}
	}()

	logger.Info("Orders service listening",
		zap.Strings("nats_servers", cfg.NATS.Servers),
		zap.Int("admin_port", cfg.Server.Port),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	router.Drain()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Admin server forced to shutdown", zap.Error(err))
	}

	logger.Info("Orders service exited")
}

func initDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name),
	)

	return db, nil
}
