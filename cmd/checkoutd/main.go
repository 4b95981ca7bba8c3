// checkoutd serves the checkout Resource API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	checkout "github.com/unified-commerce/checkout/go"
	checkouthttp "github.com/unified-commerce/checkout/go/http"
)

type config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Production      bool          `envconfig:"PRODUCTION" default:"false"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process("CHECKOUT", &cfg); err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := newLogger(cfg.Production)
	defer logger.Sync()

	store := checkout.NewMemoryStore()
	router := checkouthttp.NewRouter(store, checkouthttp.WithLogger(logger))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("resource API listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down", zap.Int("checkouts_in_store", store.Len()))
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newLogger(production bool) *zap.Logger {
	if production {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return logger
}
