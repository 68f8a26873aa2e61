package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zdemoox/BHW3/internal/config"
	"github.com/zdemoox/BHW3/internal/gateway"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var cfg config.Gateway
	if err := config.Load(&cfg); err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	handler, err := gateway.New(gateway.Routes{
		"/orders":   cfg.OrdersURL,
		"/accounts": cfg.PaymentsURL,
	}, log)
	if err != nil {
		log.Fatal("failed to build gateway", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway starting",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("orders_backend", cfg.OrdersURL),
		zap.String("payments_backend", cfg.PaymentsURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}
