package chainfactory

import (
	"feelens/internal/adapters/chains"
	"feelens/internal/adapters/chains/esplora"
	"feelens/internal/adapters/chains/etherscan"
	"feelens/internal/adapters/chains/retry"
	"feelens/internal/adapters/config"
	"feelens/pkg/errors"
)

// Factory builds chain adapters from configuration. Credential and chain
// id problems surface here as ConfigurationError, before any network call.
type Factory struct {
	cfg *config.Config
}

// New creates a new adapter factory
func New(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// Adapter returns the adapter for a configured network name.
func (f *Factory) Adapter(network string) (chains.Adapter, error) {
	switch network {
	case "ethereum":
		return f.evm(network, f.cfg.Networks.EthereumChainID, f.cfg.Networks.EthereumTokens)
	case "arbitrum":
		return f.evm(network, f.cfg.Networks.ArbitrumChainID, f.cfg.Networks.ArbitrumTokens)
	case "polygon":
		return f.evm(network, f.cfg.Networks.PolygonChainID, f.cfg.Networks.PolygonTokens)
	case "litecoin":
		return esplora.NewClient(esplora.Config{
			Network:           network,
			BaseURL:           f.cfg.Esplora.BaseURL,
			WindowBlocks:      f.cfg.Analysis.UTXOWindowBlocks,
			FallbackRecent:    f.cfg.Analysis.UTXOFallbackRecentBlocks,
			HTTPTimeout:       f.cfg.Esplora.HTTPTimeout,
			RequestsPerMinute: f.cfg.Esplora.RequestsPerMinute,
			Retry:             f.retryConfig(),
		})
	default:
		return nil, errors.NewConfigurationError("NETWORKS", "unknown network "+network)
	}
}

// Address returns the configured wallet address for a network. An empty
// string means the address is not configured.
func (f *Factory) Address(network string) string {
	switch network {
	case "ethereum":
		return f.cfg.Networks.EthereumAddress
	case "arbitrum":
		return f.cfg.Networks.ArbitrumAddress
	case "polygon":
		return f.cfg.Networks.PolygonAddress
	case "litecoin":
		return f.cfg.Networks.LitecoinAddress
	default:
		return ""
	}
}

// Tokens returns the validated token table for an EVM network; UTXO
// networks get an empty table.
func (f *Factory) Tokens(network string) (chains.TokenTable, error) {
	switch network {
	case "ethereum":
		return chains.NewTokenTable(f.cfg.Networks.EthereumTokens)
	case "arbitrum":
		return chains.NewTokenTable(f.cfg.Networks.ArbitrumTokens)
	case "polygon":
		return chains.NewTokenTable(f.cfg.Networks.PolygonTokens)
	default:
		return chains.TokenTable{}, nil
	}
}

func (f *Factory) evm(network string, chainID int64, tokens map[string]string) (chains.Adapter, error) {
	table, err := chains.NewTokenTable(tokens)
	if err != nil {
		return nil, err
	}
	return etherscan.NewClient(etherscan.Config{
		Network:           network,
		APIKey:            f.cfg.Etherscan.APIKey,
		BaseURL:           f.cfg.Etherscan.BaseURL,
		ChainID:           chainID,
		Tokens:            table,
		HTTPTimeout:       f.cfg.Etherscan.HTTPTimeout,
		RequestsPerMinute: f.cfg.Etherscan.RequestsPerMinute,
		Retry:             f.retryConfig(),
	})
}

func (f *Factory) retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	if f.cfg.Analysis.RetryMaxAttempts > 0 {
		cfg.MaxRetries = f.cfg.Analysis.RetryMaxAttempts
	}
	if f.cfg.Analysis.RetryBaseDelay > 0 {
		cfg.InitialDelay = f.cfg.Analysis.RetryBaseDelay
	}
	return cfg
}
