package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/baajur/bn-api/internal/api"
	"github.com/baajur/bn-api/internal/cart"
	"github.com/baajur/bn-api/internal/config"
	kafkawrap "github.com/baajur/bn-api/internal/kafka"
	"github.com/baajur/bn-api/internal/lock"
	"github.com/baajur/bn-api/internal/logger"
	"github.com/baajur/bn-api/internal/refund"
	"github.com/baajur/bn-api/internal/report"
	"github.com/baajur/bn-api/internal/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	logg := logger.NewLogger()
	defer logg.Close()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		logg.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logg.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	// --- Dependencies ---
	st := store.New(bunDB)
	refundLock := lock.NewRedis(redisClient)

	var producer *kafkawrap.Producer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.RefundCreated, cfg.Kafka.Topics.PaymentSuccess}
		if err := kafkawrap.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			logg.Warn("KAFKA", fmt.Sprintf("Topic setup failed: %v", err))
		}
		producer = kafkawrap.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.RefundCreated)
		defer producer.Close()
	}

	cartSvc := newCartService(st, producer, logg)
	refundSvc := newRefundService(st, refundLock, producer, logg)
	reportSvc := report.NewService(st, logg)

	// --- Payment confirmations ---
	if cfg.Kafka.Enabled {
		consumer := kafkawrap.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentSuccess, cfg.Kafka.GroupID)
		defer consumer.Close()
		go consumer.Start(ctx, func(confirmation kafkawrap.PaymentConfirmation) {
			if err := cartSvc.ConfirmPayment(ctx, confirmation.OrderID, confirmation.AmountInCents); err != nil {
				logg.Error("ORDER", fmt.Sprintf("payment confirmation for %s rejected: %v", confirmation.OrderID, err))
			}
		})
	}

	// --- Router ---
	handler := &api.Handler{Cart: cartSvc, Refund: refundSvc, Report: reportSvc}
	r := chi.NewRouter()
	handler.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("SERVER", "Commerce service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("SERVER", "Shutdown signal received")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	logg.Info("SERVER", "Server exited gracefully")
}

func newCartService(st *store.Store, producer *kafkawrap.Producer, logg *logger.Logger) *cart.Service {
	if producer == nil {
		return cart.NewService(st, nil, logg)
	}
	return cart.NewService(st, producer, logg)
}

func newRefundService(st *store.Store, locker *lock.Redis, producer *kafkawrap.Producer, logg *logger.Logger) *refund.Service {
	if producer == nil {
		return refund.NewService(st, locker, nil, logg)
	}
	return refund.NewService(st, locker, producer, logg)
}
