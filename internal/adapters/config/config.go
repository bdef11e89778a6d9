package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"feelens/pkg/errors"
)

type Config struct {
	App           AppConfig
	Etherscan     EtherscanConfig
	Esplora       EsploraConfig
	Networks      NetworkAddresses
	Analysis      AnalysisConfig
	Report        ReportConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"feelens"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty disables the Prometheus scrape endpoint; runs are short-lived
	// so scraping is opt-in.
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// EtherscanConfig covers every EVM network in scope; the v2 multichain
// endpoint selects the network by chain id per request.
type EtherscanConfig struct {
	APIKey            string        `envconfig:"ETHERSCAN_API_KEY"`
	BaseURL           string        `envconfig:"ETHERSCAN_BASE_URL" default:"https://api.etherscan.io/v2/api"`
	RequestsPerMinute int           `envconfig:"ETHERSCAN_REQUESTS_PER_MINUTE" default:"280"`
	HTTPTimeout       time.Duration `envconfig:"ETHERSCAN_HTTP_TIMEOUT" default:"30s"`
}

// EsploraConfig points at an Esplora-compatible UTXO explorer.
// Public instances need no credential.
type EsploraConfig struct {
	BaseURL           string        `envconfig:"ESPLORA_BASE_URL" default:"https://litecoinspace.org/api"`
	RequestsPerMinute int           `envconfig:"ESPLORA_REQUESTS_PER_MINUTE" default:"120"`
	HTTPTimeout       time.Duration `envconfig:"ESPLORA_HTTP_TIMEOUT" default:"30s"`
}

// NetworkAddresses holds the wallet address and chain wiring per network.
// Token maps bind asset keys to contract addresses; the zero address marks
// the native asset.
type NetworkAddresses struct {
	Enabled []string `envconfig:"NETWORKS" default:"ethereum,litecoin"`

	EthereumAddress string            `envconfig:"ETHEREUM_ADDRESS"`
	EthereumChainID int64             `envconfig:"ETHEREUM_CHAIN_ID" default:"1"`
	EthereumTokens  map[string]string `envconfig:"ETHEREUM_TOKENS" default:"native:0x0000000000000000000000000000000000000000,usdt:0xdAC17F958D2ee523a2206206994597C13D831ec7,usdc:0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	ArbitrumAddress string            `envconfig:"ARBITRUM_ADDRESS"`
	ArbitrumChainID int64             `envconfig:"ARBITRUM_CHAIN_ID" default:"42161"`
	ArbitrumTokens  map[string]string `envconfig:"ARBITRUM_TOKENS" default:"native:0x0000000000000000000000000000000000000000,usdt:0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9,usdc:0xaf88d065e77c8cc2239327c5edb3a432268e5831"`

	PolygonAddress string            `envconfig:"POLYGON_ADDRESS"`
	PolygonChainID int64             `envconfig:"POLYGON_CHAIN_ID" default:"137"`
	PolygonTokens  map[string]string `envconfig:"POLYGON_TOKENS" default:"native:0x0000000000000000000000000000000000000000,usdt:0xc2132d05d31c914a87c6611c10748aeb04b58e8f,usdc:0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"`

	LitecoinAddress string `envconfig:"LITECOIN_ADDRESS"`
}

// AnalysisConfig carries the engine tunables.
type AnalysisConfig struct {
	MaxMyTransactions  int `envconfig:"MAX_MY_TRANSACTIONS" default:"10"`
	MaxNetworkExamples int `envconfig:"MAX_NETWORK_EXAMPLES" default:"20"`

	MaxConcurrentPeerFetches int `envconfig:"MAX_CONCURRENT_PEER_FETCHES" default:"4"`

	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`

	// UTXO peer window policy: peers are sampled from blocks at the
	// subject's confirmation height +/- UTXOWindowBlocks. When the window
	// holds no foreign transactions and the fallback is enabled, the most
	// recent blocks are used instead.
	UTXOWindowBlocks         int     `envconfig:"UTXO_WINDOW_BLOCKS" default:"1"`
	UTXOFallbackRecentBlocks bool    `envconfig:"UTXO_FALLBACK_RECENT_BLOCKS" default:"true"`
	UTXOMaxFeeRate           float64 `envconfig:"UTXO_MAX_FEE_RATE" default:"8.0"`
}

type ReportConfig struct {
	ResultsDir string `envconfig:"RESULTS_DIR" default:"results"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}

// NetworkEnabled reports whether a network name appears in NETWORKS.
func (c *Config) NetworkEnabled(name string) bool {
	for _, n := range c.Networks.Enabled {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}
