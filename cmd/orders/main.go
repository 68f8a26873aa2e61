package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zdemoox/BHW3/internal/bus"
	"github.com/zdemoox/BHW3/internal/config"
	"github.com/zdemoox/BHW3/internal/event"
	"github.com/zdemoox/BHW3/internal/order"
	"github.com/zdemoox/BHW3/internal/outbox"
	"github.com/zdemoox/BHW3/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var cfg config.Orders
	if err := config.Load(&cfg); err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool, order.Migrations); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	rmq, err := bus.NewRabbitMQ(cfg.RabbitMQURL, log)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	if err := rmq.DeclareQueue(event.TopicPaymentTask); err != nil {
		log.Fatal("failed to declare queue", zap.Error(err))
	}

	st := order.NewPostgresStore(pool)
	svc := order.NewService(st, log)

	go outbox.NewPublisher(st, rmq, cfg.PollInterval, log).Start(ctx)
	go func() {
		if err := rmq.Consume(ctx, event.TopicPaymentResult, svc.HandlePaymentResult); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment-result consumer stopped", zap.Error(err))
		}
	}()

	r := mux.NewRouter()
	order.NewHandler(svc, log).Register(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("order service starting", zap.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}
