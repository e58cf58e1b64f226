package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/observerlab/observer/internal/metrics"
	"github.com/observerlab/observer/internal/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, debug, err := loadConfig(args)
	if err != nil {
		return err
	}

	log, err := buildLogger(debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg := metrics.NewRegistry()
	svc, err := server.New(cfg, log, reg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("observer listening",
			zap.String("addr", cfg.ListenAddr),
			zap.Float64("error_rate", cfg.ErrorRate))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadConfig merges flags over environment variables. Flags win.
func loadConfig(args []string) (server.Config, bool, error) {
	cfg := server.DefaultConfig()

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ERROR_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return server.Config{}, false, fmt.Errorf("ERROR_RATE: %w", err)
		}
		cfg.ErrorRate = rate
	}

	flags := pflag.NewFlagSet("observerd", pflag.ContinueOnError)
	listen := flags.String("listen", cfg.ListenAddr, "Address to listen on")
	errorRate := flags.Float64("error-rate", cfg.ErrorRate, "Probability that /simulate fails")
	minDelay := flags.Duration("min-delay", cfg.MinDelay, "Minimum simulated work duration")
	maxDelay := flags.Duration("max-delay", cfg.MaxDelay, "Maximum simulated work duration")
	debug := flags.Bool("debug", false, "Enable debug logging")
	if err := flags.Parse(args); err != nil {
		return server.Config{}, false, err
	}

	cfg.ListenAddr = *listen
	cfg.ErrorRate = *errorRate
	cfg.MinDelay = *minDelay
	cfg.MaxDelay = *maxDelay
	return cfg, *debug, nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	return zapCfg.Build()
}
