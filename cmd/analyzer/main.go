package main

import (
	"context"
	"net/http"
	"os"

	"github.com/shopspring/decimal"

	"feelens/internal/adapters/chainfactory"
	"feelens/internal/adapters/config"
	noopTracker "feelens/internal/adapters/errors/noop"
	sentryTracker "feelens/internal/adapters/errors/sentry"
	"feelens/internal/analysis"
	"feelens/internal/metrics"
	"feelens/internal/report"
	"feelens/pkg/errors"
	"feelens/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	tracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(tracker)
	defer tracker.Flush(context.Background())

	metrics.Init()
	if cfg.App.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.App.MetricsAddr, metrics.Handler()); err != nil {
				log.Warnf("metrics endpoint stopped: %v", err)
			}
		}()
	}

	ctx := context.Background()
	factory := chainfactory.New(cfg)

	failed := 0
	for _, network := range cfg.Networks.Enabled {
		if err := runNetwork(ctx, cfg, factory, network, log); err != nil {
			failed++
			explain(ctx, network, err, log)
		}
	}

	if failed == len(cfg.Networks.Enabled) {
		os.Exit(1)
	}
}

func runNetwork(ctx context.Context, cfg *config.Config, factory *chainfactory.Factory, network string, log *logger.Logger) error {
	adapter, err := factory.Adapter(network)
	if err != nil {
		return err
	}
	tokens, err := factory.Tokens(network)
	if err != nil {
		return err
	}

	normalizer := analysis.NewNormalizer(
		adapter.Family(),
		tokens,
		decimal.NewFromFloat(cfg.Analysis.UTXOMaxFeeRate),
	)
	sampler := analysis.NewPeerSampler(
		adapter,
		normalizer,
		cfg.Analysis.MaxNetworkExamples,
		cfg.Analysis.MaxConcurrentPeerFetches,
		log,
	)
	orchestrator := analysis.NewOrchestrator(adapter, normalizer, sampler, log)

	rep, err := orchestrator.Run(ctx, analysis.RunConfig{
		Network:            network,
		Address:            factory.Address(network),
		MaxMyTransactions:  cfg.Analysis.MaxMyTransactions,
		MaxNetworkExamples: cfg.Analysis.MaxNetworkExamples,
	})
	if err != nil {
		return err
	}

	path, err := report.Write(cfg.Report.ResultsDir, rep)
	if err != nil {
		return err
	}
	log.Infow("report saved", "network", network, "path", path)

	return report.Render(os.Stdout, rep)
}

// explain renders a distinct user-facing message per outcome class.
func explain(ctx context.Context, network string, err error, log *logger.Logger) {
	var confErr *errors.ConfigurationError
	switch {
	case errors.As(err, &confErr):
		log.Errorw("network skipped: configuration incomplete",
			"network", network, "key", confErr.Key, "reason", confErr.Message)
	case errors.Is(err, errors.ErrInvalidAddress):
		log.Errorw("network skipped: wallet address is malformed",
			"network", network, "error", err)
	case errors.Is(err, errors.ErrNoData):
		log.Warnw("no transactions found, nothing to analyze",
			"network", network)
	case errors.Is(err, errors.ErrTransientFetch), errors.Is(err, errors.ErrRateLimitExceeded):
		log.Errorw("network skipped: data source unavailable, try again later",
			"network", network, "error", err)
	default:
		// unexpected failures go to the error tracker with context
		log.ErrorWithContext(ctx, err, map[string]string{"network": network})
	}
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noopTracker.New()
	}

	tracker, err := sentryTracker.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noopTracker.New()
	}
	log.Info("Sentry error tracking enabled")
	return tracker
}
