package analysis

import (
	"github.com/shopspring/decimal"

	"feelens/internal/domain/fees"
)

// fieldSum accumulates one field across the records that carry it.
type fieldSum struct {
	count int
	sum   decimal.Decimal
}

func (f *fieldSum) add(v decimal.Decimal) {
	f.count++
	f.sum = f.sum.Add(v)
}

func (f fieldSum) mean() fees.Mean {
	if f.count == 0 {
		return fees.Mean{}
	}
	return fees.Mean{
		Count: f.count,
		Value: f.sum.Div(decimal.NewFromInt(int64(f.count))),
	}
}

type groupAccumulator struct {
	count     int
	gasUsed   fieldSum
	gasLimit  fieldSum
	unitPrice fieldSum
	feeTotal  fieldSum
}

func (g *groupAccumulator) add(r fees.FeeRecord) {
	g.count++
	if r.GasUsed != nil {
		g.gasUsed.add(decimal.NewFromInt(int64(*r.GasUsed)))
	}
	if r.GasLimit != nil {
		g.gasLimit.add(decimal.NewFromInt(int64(*r.GasLimit)))
	}
	g.unitPrice.add(r.UnitPrice)
	g.feeTotal.add(r.FeeTotal)
}

func (g *groupAccumulator) summary() fees.StatsSummary {
	return fees.StatsSummary{
		Count:     g.count,
		GasUsed:   g.gasUsed.mean(),
		GasLimit:  g.gasLimit.mean(),
		UnitPrice: g.unitPrice.mean(),
		FeeTotal:  g.feeTotal.mean(),
	}
}

type assetAccumulator struct {
	mine    groupAccumulator
	network groupAccumulator
}

// Aggregate groups records by asset key, then by mine/network, and
// reduces each group to per-field means. Fields absent on a record (gas
// on UTXO chains) are excluded from that field's mean rather than
// counted as zero. Asset order is first-seen over the input, so output
// is stable for identical input.
func Aggregate(records []fees.FeeRecord) []fees.AssetStats {
	index := make(map[string]int)
	var order []string
	var accs []*assetAccumulator

	for _, r := range records {
		i, ok := index[r.AssetKey]
		if !ok {
			i = len(accs)
			index[r.AssetKey] = i
			order = append(order, r.AssetKey)
			accs = append(accs, &assetAccumulator{})
		}
		if r.IsMine {
			accs[i].mine.add(r)
		} else {
			accs[i].network.add(r)
		}
	}

	out := make([]fees.AssetStats, 0, len(order))
	for i, key := range order {
		out = append(out, fees.AssetStats{
			AssetKey: key,
			Mine:     accs[i].mine.summary(),
			Network:  accs[i].network.summary(),
		})
	}
	return out
}
