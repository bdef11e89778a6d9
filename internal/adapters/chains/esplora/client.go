package esplora

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"feelens/internal/adapters/chains"
	"feelens/internal/adapters/chains/ratelimit"
	"feelens/internal/adapters/chains/retry"
	"feelens/internal/metrics"
	"feelens/pkg/errors"
)

const (
	defaultBaseURL     = "https://litecoinspace.org/api"
	defaultHTTPTimeout = 30 * time.Second
	defaultRPM         = 120

	// recent-block fallback never walks more than this many blocks
	maxFallbackBlocks = 5
)

var (
	legacyAddressPattern = regexp.MustCompile(`^[LM3][1-9A-HJ-NP-Za-km-z]{25,34}$`)
	bech32AddressPattern = regexp.MustCompile(`^ltc1[ac-hj-np-z02-9]{8,87}$`)
)

// Config configures an Esplora-family client for a UTXO chain.
type Config struct {
	Network string
	BaseURL string

	// Peer window policy: sample from blocks at the subject's
	// confirmation height +/- WindowBlocks; when the window holds no
	// foreign transactions and FallbackRecent is set, use the most
	// recent blocks instead.
	WindowBlocks   int
	FallbackRecent bool

	HTTPClient        *http.Client
	HTTPTimeout       time.Duration
	RequestsPerMinute int
	Retry             retry.Config
}

// NewClient creates a new UTXO chain adapter backed by an Esplora API.
// Public Esplora instances need no credential.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Network == "" {
		return nil, errors.NewValidationError("network", "must not be empty", cfg.Network)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.WindowBlocks < 0 {
		return nil, errors.NewValidationError("window_blocks", "must not be negative", cfg.WindowBlocks)
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

// Client fetches raw transaction records from an Esplora-family API.
type Client struct {
	cfg     Config
	limiter *ratelimit.Limiter
	retrier *retry.Middleware
}

func (c *Client) Name() string {
	return c.cfg.Network
}

func (c *Client) Family() chains.Family {
	return chains.FamilyUTXO
}

// ValidateAddress accepts legacy base58 (L/M/3) and bech32 (ltc1)
// litecoin addresses.
func (c *Client) ValidateAddress(address string) error {
	if legacyAddressPattern.MatchString(address) || bech32AddressPattern.MatchString(strings.ToLower(address)) {
		return nil
	}
	return errors.Wrapf(errors.ErrInvalidAddress, "%q is not a valid %s address", address, c.cfg.Network)
}

// esploraTx mirrors the provider's transaction shape.
type esploraTx struct {
	TxID   string `json:"txid"`
	Size   int64  `json:"size"`
	Weight int64  `json:"weight"`
	Fee    int64  `json:"fee"`
	Vin    []struct {
		IsCoinbase bool `json:"is_coinbase"`
	} `json:"vin"`
	Vout []struct {
		Value int64 `json:"value"`
	} `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
		BlockTime   int64 `json:"block_time"`
	} `json:"status"`
}

func (t esploraTx) toRaw() chains.RawRecord {
	hasCoinbase := false
	for _, in := range t.Vin {
		if in.IsCoinbase {
			hasCoinbase = true
			break
		}
	}
	return chains.RawRecord{UTXO: &chains.UTXORecord{
		TxID:        t.TxID,
		Fee:         t.Fee,
		Size:        t.Size,
		Weight:      t.Weight,
		VinCount:    len(t.Vin),
		VoutCount:   len(t.Vout),
		HasCoinbase: hasCoinbase,
		Confirmed:   t.Status.Confirmed,
		BlockHeight: t.Status.BlockHeight,
		BlockTime:   t.Status.BlockTime,
	}}
}

// FetchUserTransactions returns the address's most recent transactions.
// UTXO chains carry a single (native) asset, so the filter is ignored.
func (c *Client) FetchUserTransactions(ctx context.Context, address string, _ []string, limit int) ([]chains.RawRecord, error) {
	if err := c.ValidateAddress(address); err != nil {
		return nil, err
	}
	limit = chains.ClampLimit(limit)

	var txs []esploraTx
	if err := c.getJSON(ctx, "/address/"+address+"/txs", "address.txs", &txs); err != nil {
		return nil, err
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}

	out := make([]chains.RawRecord, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.toRaw())
	}
	return out, nil
}

// FetchPeerTransactions samples raw transactions from the blocks around
// the subject's confirmation height. A single user's transaction rarely
// shares a UTXO block with enough foreign traffic, hence the window. When
// even the window is empty of foreign transactions the client can fall
// back to the most recent blocks.
func (c *Client) FetchPeerTransactions(ctx context.Context, ref chains.PeerRef, limit int) ([]chains.RawRecord, error) {
	limit = chains.ClampLimit(limit)

	var heights []int64
	for h := ref.BlockHeight - int64(c.cfg.WindowBlocks); h <= ref.BlockHeight+int64(c.cfg.WindowBlocks); h++ {
		if h > 0 {
			heights = append(heights, h)
		}
	}

	out, err := c.collectBlocks(ctx, heights, limit)
	if err != nil {
		return nil, err
	}

	if countForeign(out) <= 1 && c.cfg.FallbackRecent {
		recent, err := c.recentHeights(ctx, ref.BlockHeight)
		if err != nil {
			return nil, err
		}
		fallback, err := c.collectBlocks(ctx, recent, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, fallback...)
		if len(out) > limit {
			out = out[:limit]
		}
	}

	return out, nil
}

// collectBlocks gathers raw transactions from the given heights, bounded
// by the fetch limit. A height past the chain tip is skipped, not fatal.
func (c *Client) collectBlocks(ctx context.Context, heights []int64, limit int) ([]chains.RawRecord, error) {
	var out []chains.RawRecord
	for _, height := range heights {
		if len(out) >= limit {
			break
		}

		hash, err := c.blockHash(ctx, height)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, err
		}

		var txs []esploraTx
		if err := c.getJSON(ctx, "/block/"+hash+"/txs", "block.txs", &txs); err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if len(out) >= limit {
				break
			}
			out = append(out, tx.toRaw())
		}
	}
	return out, nil
}

// recentHeights returns the most recent block heights, excluding the
// subject's own height which the window already covered.
func (c *Client) recentHeights(ctx context.Context, exclude int64) ([]int64, error) {
	var blocks []struct {
		Height int64 `json:"height"`
	}
	if err := c.getJSON(ctx, "/blocks", "blocks", &blocks); err != nil {
		return nil, err
	}

	var heights []int64
	for _, b := range blocks {
		if b.Height == exclude {
			continue
		}
		heights = append(heights, b.Height)
		if len(heights) >= maxFallbackBlocks {
			break
		}
	}
	return heights, nil
}

func (c *Client) blockHash(ctx context.Context, height int64) (string, error) {
	body, err := c.get(ctx, "/block-height/"+strconv.FormatInt(height, 10), "block-height")
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(body))
	if hash == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "%s: no block at height %d", c.cfg.Network, height)
	}
	return hash, nil
}

func (c *Client) getJSON(ctx context.Context, path, endpoint string, v interface{}) error {
	body, err := c.get(ctx, path, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(errors.ErrFetch, "%s %s: malformed response: %v", c.cfg.Network, endpoint, err)
	}
	return nil
}

// get performs one rate-limited, retried request against the explorer.
func (c *Client) get(ctx context.Context, path, endpoint string) ([]byte, error) {
	var body []byte
	attempt := 0
	err := c.retrier.Do(ctx, func() error {
		if attempt > 0 {
			metrics.FetchRetries.WithLabelValues(c.cfg.Network).Inc()
		}
		attempt++

		var err error
		body, err = c.doRequest(ctx, path, endpoint)
		return err
	})
	return body, err
}

func (c *Client) doRequest(ctx context.Context, path, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
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

	if resp.StatusCode == http.StatusNotFound {
		metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "error").Inc()
		return nil, errors.Wrapf(errors.ErrNotFound, "%s %s: http 404", c.cfg.Network, endpoint)
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "error").Inc()
		return nil, errors.Wrapf(errors.ErrTransientFetch, "%s %s: reading body: %v", c.cfg.Network, endpoint, err)
	}

	metrics.ChainAPICalls.WithLabelValues(c.cfg.Network, endpoint, "success").Inc()
	return body, nil
}

func countForeign(records []chains.RawRecord) int {
	n := 0
	for _, r := range records {
		if r.UTXO != nil && !r.UTXO.HasCoinbase {
			n++
		}
	}
	return n
}
