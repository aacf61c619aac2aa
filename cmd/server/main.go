// Command gridcalc-server serves grid computations over a line-oriented TCP
// protocol.
//
// Usage:
//
//	gridcalc-server [--config FILE] [--listen ADDR] [--workers N] [--metrics-addr ADDR]
//
// Settings come from the optional YAML file, then GRIDCALC_* environment
// variables, then flags. SIGINT or SIGTERM stops the server: the listener
// and all open connections are closed and in-flight workers are awaited.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/gridcalc/internal/compute"
	"github.com/dreamware/gridcalc/internal/config"
	"github.com/dreamware/gridcalc/internal/logging"
	"github.com/dreamware/gridcalc/internal/server"
	"github.com/dreamware/gridcalc/internal/stats"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logFatal("gridcalc-server: %v", err)
	}
}

// flagValues holds the command-line overrides.
type flagValues struct {
	configPath  string
	listen      string
	workers     int
	metricsAddr string
	logLevel    string
	reusePort   bool
}

func newRootCmd() *cobra.Command {
	var fv flagValues
	cmd := &cobra.Command{
		Use:           "gridcalc-server",
		Short:         "Serve grid computations over TCP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fv.configPath, "config", "c", "", "YAML configuration file")
	f.StringVarP(&fv.listen, "listen", "l", "", "TCP address for the line protocol")
	f.IntVarP(&fv.workers, "workers", "w", 0, "connections served at once")
	f.StringVar(&fv.metricsAddr, "metrics-addr", "", "HTTP address for /metrics and /health")
	f.StringVar(&fv.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&fv.reusePort, "reuse-port", false, "set SO_REUSEPORT on the listener")
	return cmd
}

// loadConfig resolves file, environment and flags, then validates.
func loadConfig(cmd *cobra.Command, fv flagValues) (config.Config, error) {
	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Listen = fv.listen
	}
	if f.Changed("workers") {
		cfg.Workers = fv.workers
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = fv.metricsAddr
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = fv.logLevel
	}
	if f.Changed("reuse-port") {
		cfg.ReusePort = fv.reusePort
	}
	return cfg, cfg.Validate()
}

// run serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg config.Config, console io.Writer) error {
	logger, closer, err := logging.New(cfg.Logging, console)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := stats.NewMetrics(reg)
	agg := stats.NewAggregator()

	handler := server.NewHandler(server.HandlerConfig{
		Engine: compute.NewEngine(compute.Limits{
			MaxRangeValues: cfg.MaxRangeValues,
			MaxAssignments: cfg.MaxAssignments,
		}),
		Stats:             agg,
		Metrics:           metrics,
		Logger:            logger,
		MaxLineBytes:      cfg.MaxLineBytes,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RequestBurst:      cfg.RequestBurst,
	})
	srv := server.New(handler,
		server.WithWorkers(cfg.Workers),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithReusePort(cfg.ReusePort),
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listen %s: %w", cfg.MetricsAddr, err)
		}
		httpSrv := &http.Server{
			Handler:           newStatusMux(reg, srv, agg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", ln.Addr().String())
			if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Listen)
	})

	err = g.Wait()
	logger.Info("gridcalc stopped", "requests", agg.RequestCount())
	return err
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string  `json:"status"`
	Sessions int     `json:"sessions"`
	Requests uint64  `json:"requests"`
	AvgTime  float64 `json:"avg_time_seconds"`
	MaxTime  float64 `json:"max_time_seconds"`
}

// newStatusMux serves Prometheus metrics, a health summary and the list of
// live sessions.
func newStatusMux(reg *prometheus.Registry, srv *server.Server, agg *stats.Aggregator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := agg.Snapshot()
		writeJSON(w, healthResponse{
			Status:   "ok",
			Sessions: srv.ActiveSessions(),
			Requests: snap.Requests,
			AvgTime:  snap.AverageSeconds(),
			MaxTime:  snap.MaxSeconds(),
		})
	})
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, srv.Sessions())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}
