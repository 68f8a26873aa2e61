// Command demo runs the whole system in one process: both services on
// in-memory stores, wired through the in-memory bus instead of RabbitMQ.
// Useful for poking at the end-to-end flow without Docker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zdemoox/BHW3/internal/bus"
	"github.com/zdemoox/BHW3/internal/event"
	"github.com/zdemoox/BHW3/internal/order"
	"github.com/zdemoox/BHW3/internal/outbox"
	"github.com/zdemoox/BHW3/internal/payment"
)

type app struct {
	orderStore   *order.MemoryStore
	paymentStore *payment.MemoryStore
	orders       *order.Service
	payments     *payment.Service
	bus          *bus.InMemoryBus
	log          *zap.Logger
}

func newApp(log *zap.Logger) *app {
	a := &app{
		orderStore:   order.NewMemoryStore(),
		paymentStore: payment.NewMemoryStore(),
		bus:          bus.NewInMemoryBus(log),
		log:          log,
	}
	a.orders = order.NewService(a.orderStore, log)
	a.payments = payment.NewService(a.paymentStore, log)

	a.bus.Subscribe(event.TopicPaymentTask, a.payments.HandlePaymentTask)
	a.bus.Subscribe(event.TopicPaymentResult, a.orders.HandlePaymentResult)
	return a
}

// startLoops launches both outbox publishers and the inbox processor.
func (a *app) startLoops(ctx context.Context, interval time.Duration) {
	go outbox.NewPublisher(a.orderStore, a.bus, interval, a.log).Start(ctx)
	go outbox.NewPublisher(a.paymentStore, a.bus, interval, a.log).Start(ctx)
	go payment.NewProcessor(a.paymentStore, interval, a.log).Start(ctx)
}

// router mounts both services' routes on one server, standing in for the
// gateway in the single-process setup.
func (a *app) router() *mux.Router {
	r := mux.NewRouter()
	order.NewHandler(a.orders, a.log).Register(r)
	payment.NewHandler(a.payments, a.log).Register(r)
	return r
}

func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(log)
	a.startLoops(ctx, 2*time.Second)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}

	srv := &http.Server{Addr: addr, Handler: a.router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("demo starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}
