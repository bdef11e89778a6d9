package analysis

import (
	"github.com/shopspring/decimal"

	"feelens/internal/domain/fees"
)

var hundred = decimal.NewFromInt(100)

// Diff computes the signed percentage differentials between the user's
// group and the network group for every aggregated asset. Division by an
// undefined or zero mean never happens: such deltas stay nil. An asset
// with no sampled peers still reports the user's summary, flagged
// no_comparison_available.
func Diff(stats []fees.AssetStats) []fees.DiffResult {
	out := make([]fees.DiffResult, 0, len(stats))
	for _, s := range stats {
		res := fees.DiffResult{
			AssetKey: s.AssetKey,
			Mine:     s.Mine,
			Network:  s.Network,
		}

		if s.Network.Count == 0 {
			res.NoComparisonAvailable = true
			out = append(out, res)
			continue
		}

		res.FeeDeltaPct = deltaPct(s.Mine.FeeTotal, s.Network.FeeTotal)
		res.GasUsedDeltaPct = deltaPct(s.Mine.GasUsed, s.Network.GasUsed)
		res.GasLimitDeltaPct = deltaPct(s.Mine.GasLimit, s.Network.GasLimit)
		res.UnitPriceDeltaPct = deltaPct(s.Mine.UnitPrice, s.Network.UnitPrice)
		out = append(out, res)
	}
	return out
}

// deltaPct returns (mine - network) / network * 100, or nil when the
// comparison is undefined: an empty side or a zero mean.
func deltaPct(mine, network fees.Mean) *decimal.Decimal {
	if !mine.Defined() || !network.Defined() {
		return nil
	}
	if mine.Value.IsZero() || network.Value.IsZero() {
		return nil
	}
	d := mine.Value.Sub(network.Value).Div(network.Value).Mul(hundred)
	return &d
}
