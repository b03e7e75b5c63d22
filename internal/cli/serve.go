package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Geethen/lidR/catalog"
	"github.com/Geethen/lidR/pointfile"
)

// ServeConfig holds the service configuration, loaded from environment
// variables.
type ServeConfig struct {
	LogLevel          string `env:"LOG_LEVEL" envDefault:"INFO"`
	HTTPPort          int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort       int    `env:"METRICS_PORT" envDefault:"8888"`
	CatalogDir        string `env:"CATALOG_DIR"`
	PoolSize          int    `env:"POOL_SIZE" envDefault:"4"`
	CacheMaxSize      int64  `env:"CACHE_MAX_SIZE" envDefault:"1024"`
	CacheItemsToPrune uint32 `env:"CACHE_ITEMS_TO_PRUNE" envDefault:"64"`
}

// NewServeCommand creates the "serve" command: expose ROI queries against
// one catalog over HTTP, with prometheus metrics on a separate port.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ROI queries against a catalog over HTTP",
		Long: `Serve region-of-interest queries against a single catalog over HTTP.

Configuration comes from the environment: CATALOG_DIR, HTTP_PORT,
METRICS_PORT, POOL_SIZE, CACHE_MAX_SIZE, CACHE_ITEMS_TO_PRUNE, LOG_LEVEL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command) error {
	var cfg ServeConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.CatalogDir == "" {
		return errors.New("CATALOG_DIR is required")
	}
	log := newLogger(cfg.LogLevel)

	// The root context is cancelled by main on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := catalog.NewMetrics(registry)

	store := pointfile.NewCachedStore(cfg.CacheMaxSize, cfg.CacheItemsToPrune)
	cat, err := catalog.Open(ctx, cfg.CatalogDir, store,
		catalog.WithLogger(log), catalog.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: newAPIHandler(cat, cfg.PoolSize),
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP API server listening", "address", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("HTTP API server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("HTTP metrics server listening", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("HTTP metrics server failed: %w", err)
		}
		return nil
	})

	<-ctx.Done()
	log.Warn("context cancelled, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP API server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP metrics server shutdown error", "error", err)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// queryRequest is the JSON body of POST /query, mirroring the batch ROI
// arrays of the planner.
type queryRequest struct {
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	R      []float64 `json:"r"`
	R2     []float64 `json:"r2,omitempty"`
	Buffer []float64 `json:"buffer,omitempty"`
	Names  []string  `json:"names,omitempty"`
}

type queryResponseItem struct {
	Name   string          `json:"name"`
	Points []catalog.Point `json:"points"`
	Zones  []uint8         `json:"zones,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func newAPIHandler(cat *catalog.Catalog, poolSize int) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		set := catalog.ROISet{X: req.X, Y: req.Y, R: req.R, R2: req.R2, Buffer: req.Buffer, Names: req.Names}
		results, err := cat.Query(r.Context(), set, catalog.QueryOptions{PoolSize: poolSize})
		if err != nil {
			var verr *catalog.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		items := make([]queryResponseItem, 0, len(results))
		for _, res := range results {
			item := queryResponseItem{Name: res.Unit}
			if res.Err != nil {
				item.Error = res.Err.Error()
			} else {
				item.Points = res.Batch.Points
				for _, z := range res.Batch.Zones {
					item.Zones = append(item.Zones, uint8(z))
				}
			}
			items = append(items, item)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("GET /summary", func(w http.ResponseWriter, r *http.Request) {
		summary, err := cat.Summarize(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	})

	return mux
}
