package chains

import (
	"context"
)

// Family tags the closed set of supported chain fee models.
type Family string

const (
	// FamilyEVM covers account-based chains priced by gas (ethereum,
	// arbitrum, polygon, ...)
	FamilyEVM Family = "evm"

	// FamilyUTXO covers UTXO chains priced by fee rate per virtual byte
	FamilyUTXO Family = "utxo"
)

// PeerRef identifies where peer transactions of a subject transaction
// live: the exact block on EVM chains, a window around the confirmation
// height on UTXO chains.
type PeerRef struct {
	BlockHeight int64
	Timestamp   int64
}

// Adapter is the per-network data-source contract. Adapters return
// provider-shaped raw records and never normalize; they validate
// addresses before calling out, clamp limits, rate-limit themselves and
// classify failures as transient or not.
type Adapter interface {
	Name() string
	Family() Family

	// ValidateAddress checks the address format for this chain without
	// any network call.
	ValidateAddress(address string) error

	// FetchUserTransactions returns the most recent raw records for the
	// address, up to limit per configured asset. An empty assets slice
	// means all configured assets; UTXO adapters ignore the filter.
	FetchUserTransactions(ctx context.Context, address string, assets []string, limit int) ([]RawRecord, error)

	// FetchPeerTransactions returns raw records sharing the subject's
	// block or window, up to limit per asset.
	FetchPeerTransactions(ctx context.Context, ref PeerRef, limit int) ([]RawRecord, error)
}
