// checkout-gateway serves the tool-invocation binding, translating tool
// calls into Resource API requests against the configured upstream.
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
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/unified-commerce/checkout/go/mcp"
)

type config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8090"`
	UpstreamURL     string        `envconfig:"UPSTREAM_URL" default:"http://localhost:8080"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	SessionMaxIdle  time.Duration `envconfig:"SESSION_MAX_IDLE" default:"30m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Production      bool          `envconfig:"PRODUCTION" default:"false"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process("GATEWAY", &cfg); err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := newLogger(cfg.Production)
	defer logger.Sync()

	gw := mcp.NewGateway(mcp.GatewayConfig{
		UpstreamURL:     cfg.UpstreamURL,
		UpstreamTimeout: cfg.UpstreamTimeout,
		Logger:          logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": gw.Sessions().Len(),
		})
	})
	e.Any("/mcp", echo.WrapHandler(gw.Handler()))
	e.Any("/mcp/*", echo.WrapHandler(gw.Handler()))

	// The session table grows with distinct logical connections; sweep
	// idle entries so long deployments stay bounded.
	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.SessionMaxIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if evicted := gw.Sessions().EvictIdle(cfg.SessionMaxIdle); evicted > 0 {
					logger.Info("evicted idle sessions", zap.Int("count", evicted))
				}
			case <-stopSweep:
				return
			}
		}
	}()

	go func() {
		logger.Info("gateway listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("upstream", cfg.UpstreamURL))
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	close(stopSweep)

	logger.Info("shutting down", zap.Int("active_sessions", gw.Sessions().Len()))
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
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
