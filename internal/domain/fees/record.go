package fees

import (
	"github.com/shopspring/decimal"

	"feelens/pkg/errors"
)

// AssetKeyNative is the reserved asset key for a chain's native currency.
// Token assets keep their configured keys (usdt, usdc, ...).
const AssetKeyNative = "native"

// FeeRecord is the normalized, chain-agnostic unit of analysis.
// Once constructed it is never mutated.
type FeeRecord struct {
	TxID     string `json:"tx_id"`
	AssetKey string `json:"asset_key"`

	// EVM only; nil for UTXO records
	GasUsed  *uint64 `json:"gas_used,omitempty"`
	GasLimit *uint64 `json:"gas_limit,omitempty"`

	// Gas price in the smallest price unit (EVM) or fee per virtual byte (UTXO)
	UnitPrice decimal.Decimal `json:"unit_price"`

	// Total fee in the chain's base denomination, always present
	FeeTotal decimal.Decimal `json:"fee_total"`

	// Block height; peer grouping key on EVM, window anchor on UTXO
	BlockRef int64 `json:"block_ref"`

	// Unix seconds; peer grouping key on UTXO chains
	Timestamp int64 `json:"timestamp"`

	// Distinguishes subject transactions from peer samples
	IsMine bool `json:"is_mine"`
}

// Validate checks the FeeRecord invariants.
func (r FeeRecord) Validate() error {
	if r.TxID == "" {
		return errors.NewValidationError("tx_id", "must not be empty", r.TxID)
	}
	if r.AssetKey == "" {
		return errors.NewValidationError("asset_key", "must not be empty", r.AssetKey)
	}
	if r.FeeTotal.IsNegative() {
		return errors.NewValidationError("fee_total", "must not be negative", r.FeeTotal)
	}
	if r.GasUsed != nil && r.GasLimit != nil && *r.GasUsed > *r.GasLimit {
		return errors.NewValidationError("gas_used", "must not exceed gas_limit", *r.GasUsed)
	}
	return nil
}

// Uint64Ptr is a small helper for building optional gas fields.
func Uint64Ptr(v uint64) *uint64 {
	return &v
}
