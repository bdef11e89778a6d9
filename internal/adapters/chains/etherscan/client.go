package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"feelens/internal/adapters/chains"
	"feelens/internal/adapters/chains/ratelimit"
	"feelens/internal/adapters/chains/retry"
	"feelens/internal/domain/fees"
	"feelens/internal/metrics"
	"feelens/pkg/errors"
)

const (
	defaultBaseURL     = "https://api.etherscan.io/v2/api"
	defaultHTTPTimeout = 30 * time.Second
	defaultRPM         = 280

	// ERC-20 transfer(address,uint256) selector
	transferSelector = "0xa9059cbb"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Config configures an Etherscan-family client. The v2 multichain
// endpoint serves every EVM network in scope, selected by ChainID.
type Config struct {
	Network string
	APIKey  string
	BaseURL string
	ChainID int64
	Tokens  chains.TokenTable

	HTTPClient        *http.Client
	HTTPTimeout       time.Duration
	RequestsPerMinute int
	Retry             retry.Config
}

// NewClient creates a new EVM chain adapter backed by Etherscan.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Network == "" {
		return nil, errors.NewValidationError("network", "must not be empty", cfg.Network)
	}
	if cfg.APIKey == "" {
		return nil, errors.NewConfigurationError("ETHERSCAN_API_KEY", "etherscan API key is required for EVM networks")
	}
	if cfg.ChainID <= 0 {
		return nil, errors.NewConfigurationError(strings.ToUpper(cfg.Network)+"_CHAIN_ID", "chain id must be a positive integer")
	}
	if cfg.Tokens.Len() == 0 {
		return nil, errors.NewConfigurationError(strings.ToUpper(cfg.Network)+"_TOKENS", "at least one asset mapping is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Client{
		cfg:     cfg,
		limiter: ratelimit.NewLimiter(cfg.Network, cfg.RequestsPerMinute),
		retrier: retry.New(cfg.Retry, chains.IsTransient),
	}, nil
}

// Client fetches raw transaction records from an Etherscan-family API.
type Client struct {
	cfg     Config
	limiter *ratelimit.Limiter
	retrier *retry.Middleware
}

func (c *Client) Name() string {
	return c.cfg.Network
}

func (c *Client) Family() chains.Family {
	return chains.FamilyEVM
}

// ValidateAddress checks the 0x-prefixed 20-byte hex format.
func (c *Client) ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return errors.Wrapf(errors.ErrInvalidAddress, "%q is not a valid EVM address", address)
	}
	return nil
}

// accountTx is the account-module response item (decimal string fields).
type accountTx struct {
	Hash            string `json:"hash"`
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Gas             string `json:"gas"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	Input           string `json:"input"`
	ContractAddress string `json:"contractAddress"`
}

// FetchUserTransactions pulls the most recent transactions per configured
// asset: txlist for the native asset, tokentx per token contract.
func (c *Client) FetchUserTransactions(ctx context.Context, address string, assets []string, limit int) ([]chains.RawRecord, error) {
	if err := c.ValidateAddress(address); err != nil {
		return nil, err
	}
	limit = chains.ClampLimit(limit)

	wanted := make(map[string]bool, len(assets))
	for _, a := range assets {
		wanted[strings.ToLower(a)] = true
	}

	var out []chains.RawRecord
	for _, key := range c.cfg.Tokens.Keys() {
		if len(wanted) > 0 && !wanted[key] {
			continue
		}
		contract, _ := c.cfg.Tokens.ContractFor(key)

		params := url.Values{
			"module":  []string{"account"},
			"address": []string{address},
			"page":    []string{"1"},
			"offset":  []string{strconv.Itoa(limit)},
			"sort":    []string{"desc"},
		}
		source := chains.EVMSourceTokenTx
		endpoint := "account.tokentx"
		if contract == chains.ZeroAddress {
			params.Set("action", "txlist")
			source = chains.EVMSourceTxList
			endpoint = "account.txlist"
		} else {
			params.Set("action", "tokentx")
			params.Set("contractaddress", contract)
		}

		var txs []accountTx
		result, err := c.call(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		if result != nil {
			if err := json.Unmarshal(result, &txs); err != nil {
				return nil, errors.Wrapf(errors.ErrFetch, "%s: malformed %s response: %v", c.cfg.Network, endpoint, err)
			}
		}

		for _, tx := range txs {
			out = append(out, chains.RawRecord{EVM: &chains.EVMRecord{
				Source:          source,
				Hash:            tx.Hash,
				BlockNumber:     tx.BlockNumber,
				TimeStamp:       tx.TimeStamp,
				From:            tx.From,
				To:              tx.To,
				Value:           tx.Value,
				Gas:             tx.Gas,
				GasPrice:        tx.GasPrice,
				GasUsed:         tx.GasUsed,
				Input:           tx.Input,
				ContractAddress: tx.ContractAddress,
			}})
		}
	}

	return out, nil
}

// proxyTx is a transaction object from eth_getBlockByNumber (hex fields).
type proxyTx struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Gas         string `json:"gas"`
	GasPrice    string `json:"gasPrice"`
	Input       string `json:"input"`
}

// FetchPeerTransactions collects, per configured asset, up to limit
// transfers from the subject's block. Gas used comes from each peer's
// receipt; the block object only carries the gas limit.
func (c *Client) FetchPeerTransactions(ctx context.Context, ref chains.PeerRef, limit int) ([]chains.RawRecord, error) {
	limit = chains.ClampLimit(limit)

	params := url.Values{
		"module":  []string{"proxy"},
		"action":  []string{"eth_getBlockByNumber"},
		"tag":     []string{"0x" + strconv.FormatInt(ref.BlockHeight, 16)},
		"boolean": []string{"true"},
	}
	result, err := c.call(ctx, "proxy.getBlockByNumber", params)
	if err != nil {
		return nil, err
	}

	var block struct {
		Timestamp    string    `json:"timestamp"`
		Transactions []proxyTx `json:"transactions"`
	}
	if result != nil {
		if err := json.Unmarshal(result, &block); err != nil {
			return nil, errors.Wrapf(errors.ErrFetch, "%s: malformed block %d response: %v", c.cfg.Network, ref.BlockHeight, err)
		}
	}

	counts := make(map[string]int, c.cfg.Tokens.Len())
	var out []chains.RawRecord
	for _, tx := range block.Transactions {
		key, ok := c.detectAsset(tx)
		if !ok || counts[key] >= limit {
			continue
		}

		gasUsed, err := c.fetchReceiptGasUsed(ctx, tx.Hash)
		if err != nil {
			// one unreadable receipt must not sink the block
			continue
		}

		out = append(out, chains.RawRecord{EVM: &chains.EVMRecord{
			Source:      chains.EVMSourceBlock,
			Hash:        tx.Hash,
			BlockNumber: tx.BlockNumber,
			TimeStamp:   block.Timestamp,
			From:        tx.From,
			To:          tx.To,
			Value:       tx.Value,
			Gas:         tx.Gas,
			GasPrice:    tx.GasPrice,
			GasUsed:     gasUsed,
			Input:       tx.Input,
		}})
		counts[key]++
	}

	return out, nil
}

// detectAsset matches a block transaction against the configured assets:
// an ERC-20 transfer call to a known token contract, or a plain value
// transfer for the native asset.
func (c *Client) detectAsset(tx proxyTx) (string, bool) {
	to := strings.ToLower(tx.To)
	if to == "" {
		return "", false
	}

	input := strings.ToLower(tx.Input)
	if strings.HasPrefix(input, transferSelector) {
		key, ok := c.cfg.Tokens.KeyFor(to)
		if ok && key != fees.AssetKeyNative {
			return key, true
		}
		return "", false
	}

	if _, ok := c.cfg.Tokens.ContractFor(fees.AssetKeyNative); !ok {
		return "", false
	}
	if input != "" && input != "0x" {
		return "", false
	}
	if v, err := parseHexUint(tx.Value); err != nil || v == 0 {
		return "", false
	}
	return fees.AssetKeyNative, true
}

func (c *Client) fetchReceiptGasUsed(ctx context.Context, txHash string) (string, error) {
	params := url.Values{
		"module": []string{"proxy"},
		"action": []string{"eth_getTransactionReceipt"},
		"txhash": []string{txHash},
	}
	result, err := c.call(ctx, "proxy.getTransactionReceipt", params)
	if err != nil {
		return "", err
	}

	var receipt struct {
		GasUsed string `json:"gasUsed"`
	}
	if result == nil || string(result) == "null" {
		return "", errors.Wrapf(errors.ErrFetch, "%s: no receipt for %s", c.cfg.Network, txHash)
	}
	if err := json.Unmarshal(result, &receipt); err != nil {
		return "", errors.Wrapf(errors.ErrFetch, "%s: malformed receipt for %s: %v", c.cfg.Network, txHash, err)
	}
	return receipt.GasUsed, nil
}

// call performs one rate-limited, retried API request and returns the
// provider's result payload.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	params.Set("apikey", c.cfg.APIKey)
	params.Set("chainid", strconv.FormatInt(c.cfg.ChainID, 10))

	var result json.RawMessage
	attempt := 0
	err := c.retrier.Do(ctx, func() error {
		if attempt > 0 {
			metrics.FetchRetries.WithLabelValues(c.cfg.Network).Inc()
		}
		attempt++

		var err error
		result, err = c.doRequest(ctx, endpoint, params)
		return err
	})
	return result, err
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "error").Inc()
		return nil, errors.Wrapf(errors.ErrTransientFetch, "%s %s: %v", c.cfg.Network, endpoint, err)
	}
	defer resp.Body.Close()

	metrics.ChainAPILatency.WithLabelValues(c.cfg.Network, endpoint).Observe(time.Since(start).Seconds())

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "error").Inc()
		return nil, errors.Wrapf(errors.ErrTransientFetch, "%s %s: reading body: %v", c.cfg.Network, endpoint, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "rate_limited").Inc()
	}
	if err := chains.ClassifyHTTPStatus(resp.StatusCode, c.cfg.Network); err != nil {
		if resp.StatusCode != http.StatusTooManyRequests {
			metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "error").Inc()
		}
		return nil, err
	}

	result, err := parseEnvelope(payload, c.cfg.Network)
	if err != nil {
		metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "error").Inc()
		return nil, err
	}

	metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "success").Inc()
	return result, nil
}

// parseEnvelope unwraps both Etherscan envelope shapes: the account
// module's {status,message,result} and the proxy module's JSON-RPC
// {jsonrpc,result} responses.
func parseEnvelope(payload []byte, network string) (json.RawMessage, error) {
	var env struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Wrapf(errors.ErrFetch, "%s: malformed response: %v", network, err)
	}

	if env.Error != nil {
		return nil, errors.Wrapf(errors.ErrFetch, "%s: %s", network, env.Error.Message)
	}
	if env.JSONRPC != "" || env.Status == "1" {
		return env.Result, nil
	}

	// status "0": empty result sets and API errors share the shape
	msg := env.Message
	var detail string
	_ = json.Unmarshal(env.Result, &detail)

	switch {
	case strings.Contains(msg, "No transactions found"):
		return nil, nil
	case strings.Contains(strings.ToLower(msg+detail), "rate limit"):
		return nil, errors.Wrapf(errors.ErrRateLimitExceeded, "%s: %s", network, firstNonEmpty(detail, msg))
	default:
		return nil, errors.Wrapf(errors.ErrFetch, "%s: %s", network, firstNonEmpty(detail, msg))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "unknown error"
}

func parseHexUint(v string) (uint64, error) {
	v = strings.TrimPrefix(strings.ToLower(v), "0x")
	if v == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	return strconv.ParseUint(v, 16, 64)
}
