package analysis

import (
	"context"
	"strings"
	"time"

	"feelens/internal/adapters/chains"
	"feelens/internal/domain/fees"
	"feelens/internal/metrics"
	"feelens/pkg/errors"
	"feelens/pkg/logger"
)

// RunConfig carries the per-network inputs of one analysis run.
type RunConfig struct {
	Network            string
	Address            string
	MaxMyTransactions  int
	MaxNetworkExamples int
}

// Orchestrator drives one network run as a straight-line pipeline:
// validate, fetch and normalize the user's transactions, sample peers,
// aggregate, diff. Retries happen inside the adapters; this layer only
// iterates bounded per-item work.
type Orchestrator struct {
	adapter    chains.Adapter
	normalizer *Normalizer
	sampler    *PeerSampler
	log        *logger.Logger
}

// NewOrchestrator wires the pipeline for one network.
func NewOrchestrator(adapter chains.Adapter, normalizer *Normalizer, sampler *PeerSampler, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		adapter:    adapter,
		normalizer: normalizer,
		sampler:    sampler,
		log:        log,
	}
}

// Run executes the pipeline and returns the finished report. Errors are
// typed: *errors.ConfigurationError for bad configuration,
// ErrInvalidAddress, ErrNoData for an empty wallet, and classified fetch
// errors for data-source failures.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*fees.Report, error) {
	start := time.Now()

	if err := o.validate(cfg); err != nil {
		metrics.AnalysisRuns.WithLabelValues(cfg.Network, "error").Inc()
		return nil, err
	}

	o.log.Infow("starting fee analysis",
		"network", cfg.Network,
		"max_my_transactions", cfg.MaxMyTransactions,
		"max_network_examples", cfg.MaxNetworkExamples,
	)

	raws, err := o.adapter.FetchUserTransactions(ctx, cfg.Address, nil, cfg.MaxMyTransactions)
	if err != nil {
		metrics.AnalysisRuns.WithLabelValues(cfg.Network, "error").Inc()
		return nil, errors.Wrapf(err, "fetching transactions for %s", cfg.Network)
	}

	var counters fees.RunCounters
	subjects := o.normalizer.NormalizeAll(raws, true, &counters)
	if len(subjects) == 0 {
		metrics.AnalysisRuns.WithLabelValues(cfg.Network, "no_data").Inc()
		return nil, errors.Wrapf(errors.ErrNoData, "address %s on %s", cfg.Address, cfg.Network)
	}

	o.log.Infow("collected user transactions",
		"network", cfg.Network,
		"subjects", len(subjects),
		"skipped_malformed", counters.MalformedRecords,
		"skipped_unmapped", counters.UnmappedTokens,
	)

	peers, peerCounters := o.sampler.Sample(ctx, subjects)
	counters.Merge(peerCounters)

	records := make([]fees.FeeRecord, 0, len(subjects)+len(peers))
	records = append(records, subjects...)
	records = append(records, peers...)

	results := Diff(Aggregate(records))

	elapsed := time.Since(start)
	metrics.AnalysisRuns.WithLabelValues(cfg.Network, "success").Inc()
	metrics.AnalysisDuration.WithLabelValues(cfg.Network).Observe(elapsed.Seconds())
	metrics.RecordsSkipped.WithLabelValues(cfg.Network, "malformed").Add(float64(counters.MalformedRecords))
	metrics.RecordsSkipped.WithLabelValues(cfg.Network, "unmapped_token").Add(float64(counters.UnmappedTokens))
	metrics.RecordsSkipped.WithLabelValues(cfg.Network, "filtered").Add(float64(counters.FilteredRecords))

	o.log.Infow("analysis complete",
		"network", cfg.Network,
		"assets", len(results),
		"peers", len(peers),
		"peer_fetch_failures", counters.PeerFetchFailures,
		"duration", elapsed,
	)

	return &fees.Report{
		Network:     cfg.Network,
		Address:     cfg.Address,
		GeneratedAt: time.Now().UTC(),
		Settings: fees.RunSettings{
			MaxMyTransactions:  cfg.MaxMyTransactions,
			MaxNetworkExamples: cfg.MaxNetworkExamples,
		},
		Results:  results,
		Counters: counters,
	}, nil
}

// validate fails fast on configuration problems before any network call.
func (o *Orchestrator) validate(cfg RunConfig) error {
	if cfg.Network == "" {
		return errors.NewConfigurationError("NETWORKS", "network name is empty")
	}
	if cfg.Address == "" {
		return errors.NewConfigurationError(strings.ToUpper(cfg.Network)+"_ADDRESS", "wallet address is not configured")
	}
	if cfg.MaxMyTransactions <= 0 {
		return errors.NewConfigurationError("MAX_MY_TRANSACTIONS", "must be a positive integer")
	}
	if cfg.MaxNetworkExamples <= 0 {
		return errors.NewConfigurationError("MAX_NETWORK_EXAMPLES", "must be a positive integer")
	}
	if o.adapter == nil {
		return errors.NewConfigurationError("NETWORKS", "no adapter configured for "+cfg.Network)
	}
	if err := o.adapter.ValidateAddress(cfg.Address); err != nil {
		return err
	}
	return nil
}
