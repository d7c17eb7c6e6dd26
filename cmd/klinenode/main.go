package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/klinenode/internal/aggregate"
	"github.com/sawpanic/klinenode/internal/cache"
	"github.com/sawpanic/klinenode/internal/config"
	"github.com/sawpanic/klinenode/internal/fetch"
	"github.com/sawpanic/klinenode/internal/httpapi"
	"github.com/sawpanic/klinenode/internal/lifecycle"
	"github.com/sawpanic/klinenode/internal/metrics"
	"github.com/sawpanic/klinenode/internal/registry"
	"github.com/sawpanic/klinenode/internal/ring"
	"github.com/sawpanic/klinenode/internal/store"
	"github.com/sawpanic/klinenode/internal/upstream"
	"github.com/sawpanic/klinenode/internal/usecase"
)

const version = "klinenode-0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	root := &cobra.Command{
		Use:     "klinenode",
		Short:   "Multi-timeframe k-line data node",
		Version: version,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("klinenode exited with error")
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest/rollup pipeline and serve the read API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations to DB_URL and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return store.Migrate(cfg.DBURL)
		},
	}
}

func runServe(ctx context.Context, addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	st, err := store.New(cfg.DBURL, cfg.DBPoolSize)
	if err != nil {
		return err
	}
	if err := st.Connect(ctx); err != nil {
		return err
	}
	defer st.Close()

	client := upstream.NewHTTPClient(cfg.BinanceBase)

	var respCache cache.Cache
	var recentRing ring.Ring
	if cfg.CacheURL != "" {
		rc, err := cache.NewRedisCache(cfg.CacheURL)
		if err != nil {
			return err
		}
		respCache = rc
		rr, err := ring.NewRedisRing(cfg.CacheURL, ring.DefaultCapacity)
		if err != nil {
			return err
		}
		recentRing = rr
	} else {
		respCache = cache.NewMemoryCache(10_000)
		recentRing = ring.NewMemoryRing(ring.DefaultCapacity)
	}

	reg := registry.New(cfg.Symbols)
	fetcher := fetch.New(cfg, client, st)
	aggregator := aggregate.New(st, recentRing)
	metricsReg := metrics.New()
	fetcher.SetMetrics(metricsReg)
	aggregator.SetMetrics(metricsReg)

	getKlines := usecase.NewGetKlines(st, respCache, cfg.CacheTTLSecKlines)
	getKlines.SetMetrics(metricsReg)
	health := usecase.NewHealth(st, version)
	server := httpapi.NewServer(getKlines, health, reg, cfg.BinanceBase, cfg.QuoteAssets, metricsReg, log.Logger)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.EnableFetcher {
		log.Info().Strs("symbols", reg.GetAll()).Msg("running initial backfill")
		if err := fetcher.InitialFetchAll(runCtx, reg.GetAll()); err != nil {
			log.Error().Err(err).Msg("initial backfill failed")
		}
	}
	if cfg.EnableAggregator {
		log.Info().Msg("running initial aggregation pass")
		if err := aggregator.AggregateAllSymbols(runCtx, reg.GetAll()); err != nil {
			log.Error().Err(err).Msg("initial aggregation failed")
		}
	}

	if cfg.EnableFetcher {
		fetchSupervisor := &lifecycle.Supervisor{
			Name:    "fetch",
			Period:  55 * time.Second,
			Log:     log.Logger,
			Metrics: metricsReg,
			Task: func(ctx context.Context) error {
				return fetcher.IncrementalFetchAll(ctx, reg.GetAll())
			},
		}
		go fetchSupervisor.Run(runCtx)
	}
	if cfg.EnableAggregator {
		aggSupervisor := &lifecycle.Supervisor{
			Name:    "aggregate",
			Period:  60 * time.Second,
			Log:     log.Logger,
			Metrics: metricsReg,
			Task: func(ctx context.Context) error {
				return aggregator.AggregateAllSymbols(ctx, reg.GetAll())
			},
		}
		go aggSupervisor.Run(runCtx)
	}

	httpServer := &http.Server{Addr: addr, Handler: server.Router()}
	go func() {
		log.Info().Str("addr", addr).Msg("serving HTTP")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server exited")
		}
	}()

	<-runCtx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
