package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mean is an arithmetic mean over the records that carried the field.
// Count is the number of contributing records; a Mean with Count 0 is
// undefined and must never be used as a divisor.
type Mean struct {
	Count int             `json:"count"`
	Value decimal.Decimal `json:"value"`
}

// Defined reports whether any record contributed to the mean.
func (m Mean) Defined() bool {
	return m.Count > 0
}

// StatsSummary aggregates one group (mine or network) for one asset key.
// Count is the group size; per-field counts may be smaller when some
// records lack a field (gas_used on UTXO records, for example).
type StatsSummary struct {
	Count     int  `json:"count"`
	GasUsed   Mean `json:"gas_used"`
	GasLimit  Mean `json:"gas_limit"`
	UnitPrice Mean `json:"unit_price"`
	FeeTotal  Mean `json:"fee_total"`
}

// AssetStats pairs the two group summaries for one asset key.
type AssetStats struct {
	AssetKey string       `json:"asset_key"`
	Mine     StatsSummary `json:"mine"`
	Network  StatsSummary `json:"network"`
}

// DiffResult reports the signed percentage differentials between the
// user's group and the network group for one asset key. A nil delta is
// undefined: either side's mean was zero or a group was empty.
type DiffResult struct {
	AssetKey string       `json:"asset_key"`
	Mine     StatsSummary `json:"mine"`
	Network  StatsSummary `json:"network"`

	FeeDeltaPct       *decimal.Decimal `json:"fee_delta_pct,omitempty"`
	GasUsedDeltaPct   *decimal.Decimal `json:"gas_used_delta_pct,omitempty"`
	GasLimitDeltaPct  *decimal.Decimal `json:"gas_limit_delta_pct,omitempty"`
	UnitPriceDeltaPct *decimal.Decimal `json:"unit_price_delta_pct,omitempty"`

	// True when the asset had no successfully sampled peers
	NoComparisonAvailable bool `json:"no_comparison_available"`
}

// RunCounters records per-item data-quality skips accumulated over a run.
// These never abort the run.
type RunCounters struct {
	MalformedRecords  int `json:"skipped_malformed"`
	UnmappedTokens    int `json:"skipped_unmapped_token"`
	FilteredRecords   int `json:"skipped_filtered"`
	PeerFetchFailures int `json:"peer_fetch_failures"`
}

// Merge adds other's counts into c.
func (c *RunCounters) Merge(other RunCounters) {
	c.MalformedRecords += other.MalformedRecords
	c.UnmappedTokens += other.UnmappedTokens
	c.FilteredRecords += other.FilteredRecords
	c.PeerFetchFailures += other.PeerFetchFailures
}

// RunSettings echoes the tunables a report was produced with.
type RunSettings struct {
	MaxMyTransactions  int `json:"max_my_transactions"`
	MaxNetworkExamples int `json:"max_network_examples"`
}

// Report is the finished outcome of one network run, a plain structured
// value ready for JSON or tabular rendering by the caller.
type Report struct {
	Network     string       `json:"network"`
	Address     string       `json:"address"`
	GeneratedAt time.Time    `json:"generated_at"`
	Settings    RunSettings  `json:"settings"`
	Results     []DiffResult `json:"results"`
	Counters    RunCounters  `json:"counters"`
}
