package analysis

import (
	"context"
	"sync"

	"feelens/internal/adapters/chains"
	"feelens/internal/domain/fees"
	"feelens/internal/metrics"
	"feelens/pkg/logger"
)

// PeerSampler retrieves comparable network transactions for each subject
// transaction: peers sharing the subject's block on EVM chains, or its
// surrounding window on UTXO chains. Peer fetches for distinct
// blocks/windows are independent and run concurrently; all results are
// merged and deduplicated at a single aggregation point.
type PeerSampler struct {
	adapter     chains.Adapter
	normalizer  *Normalizer
	maxPeers    int
	concurrency int
	log         *logger.Logger
}

// NewPeerSampler creates a sampler bounded by maxPeers per fetch and
// concurrency parallel fetches.
func NewPeerSampler(adapter chains.Adapter, normalizer *Normalizer, maxPeers, concurrency int, log *logger.Logger) *PeerSampler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &PeerSampler{
		adapter:     adapter,
		normalizer:  normalizer,
		maxPeers:    maxPeers,
		concurrency: concurrency,
		log:         log,
	}
}

// refGroup collects the distinct asset keys of all subjects sharing one
// block/window, so one fetch serves them all.
type refGroup struct {
	ref    chains.PeerRef
	assets map[string]bool
}

type fetchResult struct {
	idx      int
	peers    []fees.FeeRecord
	counters fees.RunCounters
	err      error
}

// Sample fetches, normalizes and deduplicates peers for the subjects.
// A failed fetch degrades to zero peers for that block/window and is
// counted, never fatal. Each peer tx id appears at most once in the
// result even when subjects share a block, and the user's own
// transactions are never returned as peers.
func (s *PeerSampler) Sample(ctx context.Context, subjects []fees.FeeRecord) ([]fees.FeeRecord, fees.RunCounters) {
	groups := groupByRef(subjects)
	if len(groups) == 0 {
		return nil, fees.RunCounters{}
	}

	results := make([]fetchResult, len(groups))
	resultCh := make(chan fetchResult, len(groups))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.concurrency)

	for i, g := range groups {
		wg.Add(1)
		go func(idx int, g refGroup) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			resultCh <- s.fetchGroup(ctx, idx, g)
		}(i, g)
	}

	wg.Wait()
	close(resultCh)

	for r := range resultCh {
		results[r.idx] = r
	}

	// single-writer merge: dedup by tx id, subjects pre-seeded so the
	// user's own transactions never count as peers
	seen := make(map[string]bool, len(subjects))
	for _, sub := range subjects {
		seen[sub.TxID] = true
	}

	var peers []fees.FeeRecord
	var counters fees.RunCounters
	for i, r := range results {
		if r.err != nil {
			counters.PeerFetchFailures++
			metrics.PeerFetchFailures.WithLabelValues(s.adapter.Name()).Inc()
			s.log.Warnw("peer fetch failed, continuing without peers",
				"network", s.adapter.Name(),
				"block", groups[i].ref.BlockHeight,
				"error", r.err,
			)
			continue
		}
		counters.Merge(r.counters)
		for _, p := range r.peers {
			if seen[p.TxID] {
				continue
			}
			seen[p.TxID] = true
			peers = append(peers, p)
		}
	}

	return peers, counters
}

// fetchGroup runs one peer fetch and normalizes the results against the
// group's asset set. Counters stay local to the goroutine; the merge
// phase folds them in.
func (s *PeerSampler) fetchGroup(ctx context.Context, idx int, g refGroup) fetchResult {
	raws, err := s.adapter.FetchPeerTransactions(ctx, g.ref, s.maxPeers)
	if err != nil {
		return fetchResult{idx: idx, err: err}
	}

	res := fetchResult{idx: idx}
	for _, raw := range raws {
		rec, ok := s.normalizer.Normalize(raw, false, &res.counters)
		if !ok {
			continue
		}
		// cross-asset peers are not comparable
		if !g.assets[rec.AssetKey] {
			continue
		}
		res.peers = append(res.peers, rec)
	}
	return res
}

// groupByRef buckets subjects by block reference in first-seen order.
func groupByRef(subjects []fees.FeeRecord) []refGroup {
	index := make(map[int64]int, len(subjects))
	var groups []refGroup

	for _, sub := range subjects {
		i, ok := index[sub.BlockRef]
		if !ok {
			i = len(groups)
			index[sub.BlockRef] = i
			groups = append(groups, refGroup{
				ref: chains.PeerRef{
					BlockHeight: sub.BlockRef,
					Timestamp:   sub.Timestamp,
				},
				assets: make(map[string]bool),
			})
		}
		groups[i].assets[sub.AssetKey] = true
	}
	return groups
}
