package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AmpyFin/ampyfin/internal/broker"
	"github.com/AmpyFin/ampyfin/internal/config"
	"github.com/AmpyFin/ampyfin/internal/engine"
	"github.com/AmpyFin/ampyfin/internal/ledger"
	"github.com/AmpyFin/ampyfin/internal/logx"
	"github.com/AmpyFin/ampyfin/internal/points"
	"github.com/AmpyFin/ampyfin/internal/pricefeed"
	"github.com/AmpyFin/ampyfin/internal/ranking"
	"github.com/AmpyFin/ampyfin/internal/strategy"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ampyfin",
		Short:         "Multi-strategy trading decision engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the trading engine loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})
	return root
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logx.Setup(cfg.App.LogLevel, cfg.App.ConsoleLog)

	store, err := ledger.Open(cfg.App.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	journal, err := engine.NewJournal(cfg.App.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	providers := strategy.DefaultRegistry()
	if err := seed(ctx, store, providers, cfg); err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}

	alpacaClient := broker.NewAlpacaClient(cfg.Broker.APIKey, cfg.Broker.APISecret, cfg.Broker.BaseURL)
	gateway := broker.NewAlpacaGateway(alpacaClient)
	feed := pricefeed.NewAlpacaFeed(cfg.Broker.APIKey, cfg.Broker.APISecret)
	clock := pricefeed.NewAlpacaClock(alpacaClient, cfg.Phases.EarlyHoursWindow.Std())
	universe := pricefeed.NewUniverseProvider(cfg.Universe, store)

	trader := broker.NewTrader(gateway, feed, store,
		cfg.Trading.StopLossPct, cfg.Trading.TakeProfitPct, cfg.Broker.PendingMaxRetries)
	ranker := ranking.New(store, cfg.Simulation.SentinelStrategies)
	tracker := points.NewTracker(store, cfg.Points)

	if cfg.App.MetricsListen != "" {
		go serveMetrics(cfg.App.MetricsListen)
	}

	controller := engine.NewController(cfg, store, feed, clock, universe, trader, ranker, tracker, providers, journal)
	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("engine shutdown complete")
	return nil
}

// seed makes sure every registered strategy has a simulation entry, an
// indicator period, and a rank coefficient before the first cycle.
func seed(ctx context.Context, store *ledger.Store, providers []strategy.Provider, cfg config.Config) error {
	for _, provider := range providers {
		name := provider.Name()
		if _, err := store.StrategyEntry(ctx, name); errors.Is(err, ledger.ErrNotFound) {
			entry := ledger.StrategyEntry{
				Strategy:       name,
				Holdings:       map[string]ledger.Holding{},
				AmountCash:     cfg.Simulation.StartingCash,
				PortfolioValue: cfg.Simulation.StartingCash,
			}
			if err := store.SaveStrategyEntry(ctx, entry); err != nil {
				return err
			}
			log.Info().Str("strategy", name).Msg("seeded simulation entry")
		} else if err != nil {
			return err
		}

		if _, err := store.IndicatorPeriod(ctx, name); errors.Is(err, ledger.ErrNotFound) {
			if err := store.SetIndicatorPeriod(ctx, name, provider.IdealPeriod()); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}

	ranker := ranking.New(store, cfg.Simulation.SentinelStrategies)
	return ranker.SeedCoefficients(ctx, len(providers))
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("listen", listen).Msg("metrics listener starting")
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Error().Err(err).Msg("metrics listener stopped")
	}
}
