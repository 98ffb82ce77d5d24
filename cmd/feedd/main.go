package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quotewire/pricefeed/internal/config"
	"github.com/quotewire/pricefeed/internal/engine"
	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedd.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"venues", len(cfg.Venues),
		"pairs", len(cfg.Pairs),
	)

	// Shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	eng, err := engine.New(*cfg, m, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eng.Stop(shutdownCtx); err != nil {
			logger.Error("engine shutdown error", "error", err)
		}
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: newHandler(eng, m, cfg.Metrics.Path),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
	}

	logger.Info("feedd stopped")
}

// newHandler wires the health, metrics, and debug endpoints.
func newHandler(eng *engine.Engine, m *metrics.Metrics, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, m.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		venues := eng.Health()

		status := "healthy"
		unhealthy := 0
		for _, v := range venues {
			if !v.Healthy {
				unhealthy++
			}
		}
		switch {
		case unhealthy == len(venues):
			status = "unhealthy"
		case unhealthy > 0:
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": status,
			"venues": venues,
		})
	})

	mux.HandleFunc("/debug/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap := eng.GetLastSnapshot()

		type tick struct {
			Venue     string    `json:"venue"`
			Pair      string    `json:"pair"`
			Price     float64   `json:"price"`
			Change24h float64   `json:"change_24h"`
			Volume    float64   `json:"volume"`
			Timestamp time.Time `json:"timestamp"`
			Source    string    `json:"source"`
		}

		out := make([]tick, 0, len(snap))
		for _, t := range snap {
			out = append(out, tick{
				Venue:     t.Venue,
				Pair:      t.Pair,
				Price:     t.Price,
				Change24h: t.Change24h,
				Volume:    t.Volume,
				Timestamp: t.Timestamp,
				Source:    string(t.Source),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(out),
			"tickers": out,
		})
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Stats())
	})

	return mux
}
