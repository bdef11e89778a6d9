package analysis

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"feelens/internal/adapters/chains"
	"feelens/internal/domain/fees"
)

// cpfp heuristics carried over from the network analyzer: a transaction
// with many inputs and a very low fee rate is likely paying for a parent
// and would drag the network mean down.
const (
	cpfpMinInputs = 5
)

var cpfpMaxFeeRate = decimal.NewFromInt(2)

// Normalizer converts provider-shaped raw records into FeeRecords. It is
// a pure mapping: malformed records are dropped and counted, never
// coerced to zero.
type Normalizer struct {
	family chains.Family
	tokens chains.TokenTable

	// peer records with a fee rate above the cap are dropped as
	// outliers; zero disables the cap
	maxPeerFeeRate decimal.Decimal
}

// NewNormalizer creates a normalizer for one chain family.
func NewNormalizer(family chains.Family, tokens chains.TokenTable, maxPeerFeeRate decimal.Decimal) *Normalizer {
	return &Normalizer{
		family:         family,
		tokens:         tokens,
		maxPeerFeeRate: maxPeerFeeRate,
	}
}

// Normalize maps one raw record to a FeeRecord. The boolean reports
// whether the record survived; drops are tallied in counters.
func (n *Normalizer) Normalize(raw chains.RawRecord, isMine bool, counters *fees.RunCounters) (fees.FeeRecord, bool) {
	switch {
	case raw.EVM != nil:
		return n.normalizeEVM(raw.EVM, isMine, counters)
	case raw.UTXO != nil:
		return n.normalizeUTXO(raw.UTXO, isMine, counters)
	default:
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}
}

// NormalizeAll maps a batch, preserving order of the survivors.
func (n *Normalizer) NormalizeAll(raws []chains.RawRecord, isMine bool, counters *fees.RunCounters) []fees.FeeRecord {
	out := make([]fees.FeeRecord, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := n.Normalize(raw, isMine, counters); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (n *Normalizer) normalizeEVM(r *chains.EVMRecord, isMine bool, counters *fees.RunCounters) (fees.FeeRecord, bool) {
	if r.Hash == "" {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}

	gasUsed, err1 := parseChainUint(r.GasUsed)
	gasPrice, err2 := parseChainUint(r.GasPrice)
	gasLimit, err3 := parseChainUint(r.Gas)
	block, err4 := parseChainUint(r.BlockNumber)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}

	assetKey, ok := n.resolveEVMAsset(r)
	if !ok {
		counters.UnmappedTokens++
		return fees.FeeRecord{}, false
	}

	// timestamp is informational on EVM records; peers group by block
	timestamp, _ := parseChainUint(r.TimeStamp)

	// fee recomputed from gas, not trusted from the provider
	fee := decimal.NewFromInt(int64(gasUsed)).Mul(decimal.NewFromInt(int64(gasPrice)))

	rec := fees.FeeRecord{
		TxID:      r.Hash,
		AssetKey:  assetKey,
		GasUsed:   fees.Uint64Ptr(gasUsed),
		GasLimit:  fees.Uint64Ptr(gasLimit),
		UnitPrice: decimal.NewFromInt(int64(gasPrice)),
		FeeTotal:  fee,
		BlockRef:  int64(block),
		Timestamp: int64(timestamp),
		IsMine:    isMine,
	}
	if err := rec.Validate(); err != nil {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}
	return rec, true
}

// resolveEVMAsset maps a record to its asset key. Account endpoints
// already imply the asset; block records are matched against the token
// table the way peers were detected.
func (n *Normalizer) resolveEVMAsset(r *chains.EVMRecord) (string, bool) {
	switch r.Source {
	case chains.EVMSourceTxList:
		return fees.AssetKeyNative, true
	case chains.EVMSourceTokenTx:
		key, ok := n.tokens.KeyFor(r.ContractAddress)
		return key, ok
	case chains.EVMSourceBlock:
		input := strings.ToLower(r.Input)
		if strings.HasPrefix(input, "0xa9059cbb") {
			key, ok := n.tokens.KeyFor(r.To)
			if !ok || key == fees.AssetKeyNative {
				return "", false
			}
			return key, true
		}
		return fees.AssetKeyNative, true
	default:
		return "", false
	}
}

func (n *Normalizer) normalizeUTXO(r *chains.UTXORecord, isMine bool, counters *fees.RunCounters) (fees.FeeRecord, bool) {
	if r.TxID == "" {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}

	if !r.Confirmed || r.HasCoinbase {
		counters.FilteredRecords++
		return fees.FeeRecord{}, false
	}

	// a confirmed non-coinbase transaction always pays a fee; zero means
	// the explorer omitted the field
	if r.Fee <= 0 {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}

	vsize := r.Weight / 4
	if vsize <= 0 {
		vsize = r.Size
	}
	if vsize <= 0 {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}

	fee := decimal.NewFromInt(r.Fee)
	feeRate := fee.Div(decimal.NewFromInt(vsize))

	if !isMine {
		// likely child-pays-for-parent, not a representative fee
		if r.VinCount > cpfpMinInputs && feeRate.LessThan(cpfpMaxFeeRate) {
			counters.FilteredRecords++
			return fees.FeeRecord{}, false
		}
		if n.maxPeerFeeRate.IsPositive() && feeRate.GreaterThan(n.maxPeerFeeRate) {
			counters.FilteredRecords++
			return fees.FeeRecord{}, false
		}
	}

	rec := fees.FeeRecord{
		TxID:      r.TxID,
		AssetKey:  fees.AssetKeyNative,
		UnitPrice: feeRate,
		FeeTotal:  fee,
		BlockRef:  r.BlockHeight,
		Timestamp: r.BlockTime,
		IsMine:    isMine,
	}
	if err := rec.Validate(); err != nil {
		counters.MalformedRecords++
		return fees.FeeRecord{}, false
	}
	return rec, true
}

// parseChainUint parses provider numerics in either decimal ("42000") or
// 0x-prefixed hex ("0xa410") form.
func parseChainUint(v string) (uint64, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return strconv.ParseUint(v[2:], 16, 64)
	}
	return strconv.ParseUint(v, 10, 64)
}
