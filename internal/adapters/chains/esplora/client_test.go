package esplora

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feelens/internal/adapters/chains"
	"feelens/internal/adapters/chains/retry"
	"feelens/pkg/errors"
)

const testAddress = "ltc1qw508d6qejxtdg4y5r3zarvary0c5xw7kgmn4n9"

func newTestClient(t *testing.T, baseURL string, window int, fallback bool) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Network:           "litecoin",
		BaseURL:           baseURL,
		WindowBlocks:      window,
		FallbackRecent:    fallback,
		RequestsPerMinute: 60_000,
		Retry: retry.Config{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	})
	require.NoError(t, err)
	return client
}

func TestNewClientHonorsHTTPTimeout(t *testing.T) {
	client, err := NewClient(Config{
		Network:     "litecoin",
		HTTPTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.cfg.HTTPClient.Timeout)

	client, err = NewClient(Config{Network: "litecoin"})
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPTimeout, client.cfg.HTTPClient.Timeout)
}

func TestValidateAddress(t *testing.T) {
	client := newTestClient(t, "http://unused", 1, false)

	for _, addr := range []string{
		"LM2WMpR1Rp6j3Sa59cMXMs1SPzj9eXpGc1",
		"MJRSgZ3UUFcTBTBAaN38XAXvZLwRe8WVw7",
		"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy",
		testAddress,
	} {
		assert.NoError(t, client.ValidateAddress(addr), addr)
	}

	for _, addr := range []string{
		"",
		"0x742d35cc6634c0532925a3b844bc454e4438f44e",
		"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		"Lshort",
	} {
		assert.ErrorIs(t, client.ValidateAddress(addr), errors.ErrInvalidAddress, addr)
	}
}

func TestFetchUserTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address/"+testAddress+"/txs", r.URL.Path)
		fmt.Fprint(w, `[
			{"txid":"tx1","size":250,"weight":800,"fee":20000,
			 "vin":[{"is_coinbase":false}],"vout":[{"value":100000},{"value":50000}],
			 "status":{"confirmed":true,"block_height":2600000,"block_time":1700000000}},
			{"txid":"tx2","size":180,"weight":600,"fee":9000,
			 "vin":[{"is_coinbase":false}],"vout":[{"value":70000}],
			 "status":{"confirmed":false}},
			{"txid":"tx3","size":300,"weight":1200,"fee":30000,
			 "vin":[{"is_coinbase":false}],"vout":[{"value":200000}],
			 "status":{"confirmed":true,"block_height":2599990,"block_time":1699990000}}
		]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1, false)
	records, err := client.FetchUserTransactions(context.Background(), testAddress, nil, 2)
	require.NoError(t, err)

	// most recent first, truncated to the limit
	require.Len(t, records, 2)
	r := records[0].UTXO
	require.NotNil(t, r)
	assert.Equal(t, "tx1", r.TxID)
	assert.Equal(t, int64(20_000), r.Fee)
	assert.Equal(t, int64(800), r.Weight)
	assert.Equal(t, 1, r.VinCount)
	assert.Equal(t, 2, r.VoutCount)
	assert.True(t, r.Confirmed)
	assert.False(t, r.HasCoinbase)
	assert.Equal(t, int64(2_600_000), r.BlockHeight)

	assert.Equal(t, "tx2", records[1].UTXO.TxID)
	assert.False(t, records[1].UTXO.Confirmed)
}

func TestFetchUserTransactionsRejectsBadAddressWithoutCalling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1, false)
	_, err := client.FetchUserTransactions(context.Background(), "not-an-address", nil, 5)

	assert.ErrorIs(t, err, errors.ErrInvalidAddress)
	assert.Equal(t, int32(0), calls.Load())
}

func blockTxsJSON(prefix string, n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"txid":"%s-%d","size":200,"weight":800,"fee":%d,
			"vin":[{"is_coinbase":false}],"vout":[{"value":10000}],
			"status":{"confirmed":true,"block_height":100,"block_time":1700000000}}`,
			prefix, i, 10000+i)
	}
	return out + "]"
}

func TestFetchPeerTransactionsWindow(t *testing.T) {
	var blocksCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-height/99":
			fmt.Fprint(w, "hash99")
		case "/block-height/100":
			fmt.Fprint(w, "hash100")
		case "/block-height/101":
			fmt.Fprint(w, "hash101")
		case "/block/hash99/txs":
			fmt.Fprint(w, blockTxsJSON("b99", 2))
		case "/block/hash100/txs":
			fmt.Fprint(w, blockTxsJSON("b100", 2))
		case "/block/hash101/txs":
			fmt.Fprint(w, blockTxsJSON("b101", 2))
		case "/blocks":
			blocksCalls.Add(1)
			fmt.Fprint(w, "[]")
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1, true)
	records, err := client.FetchPeerTransactions(context.Background(), chains.PeerRef{BlockHeight: 100}, 10)
	require.NoError(t, err)

	require.Len(t, records, 6)
	assert.Equal(t, "b99-0", records[0].UTXO.TxID)
	assert.Equal(t, "b101-1", records[5].UTXO.TxID)
	assert.Equal(t, int32(0), blocksCalls.Load(), "a populated window needs no fallback")
}

func TestFetchPeerTransactionsHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-height/99":
			fmt.Fprint(w, "hash99")
		case "/block/hash99/txs":
			fmt.Fprint(w, blockTxsJSON("b99", 5))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, false)
	records, err := client.FetchPeerTransactions(context.Background(), chains.PeerRef{BlockHeight: 99}, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestFetchPeerTransactionsSkipsMissingHeights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-height/99":
			fmt.Fprint(w, "hash99")
		case "/block-height/100":
			fmt.Fprint(w, "hash100")
		case "/block-height/101":
			// past the chain tip
			w.WriteHeader(http.StatusNotFound)
		case "/block/hash99/txs":
			fmt.Fprint(w, blockTxsJSON("b99", 1))
		case "/block/hash100/txs":
			fmt.Fprint(w, blockTxsJSON("b100", 1))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1, false)
	records, err := client.FetchPeerTransactions(context.Background(), chains.PeerRef{BlockHeight: 100}, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFetchPeerTransactionsFallsBackToRecentBlocks(t *testing.T) {
	coinbaseOnly := `[
		{"txid":"cb","size":300,"weight":1200,"fee":0,
		 "vin":[{"is_coinbase":true}],"vout":[{"value":625000000}],
		 "status":{"confirmed":true,"block_height":100,"block_time":1700000000}}
	]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-height/100":
			fmt.Fprint(w, "hash100")
		case "/block/hash100/txs":
			fmt.Fprint(w, coinbaseOnly)
		case "/blocks":
			fmt.Fprint(w, `[{"height":200},{"height":100},{"height":199}]`)
		case "/block-height/200":
			fmt.Fprint(w, "hash200")
		case "/block-height/199":
			fmt.Fprint(w, "hash199")
		case "/block/hash200/txs":
			fmt.Fprint(w, blockTxsJSON("b200", 2))
		case "/block/hash199/txs":
			fmt.Fprint(w, blockTxsJSON("b199", 2))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, true)
	records, err := client.FetchPeerTransactions(context.Background(), chains.PeerRef{BlockHeight: 100}, 10)
	require.NoError(t, err)

	// the coinbase from the subject's block plus the fallback sample;
	// the subject's own height is not revisited
	require.Len(t, records, 5)
	assert.Equal(t, "cb", records[0].UTXO.TxID)
	assert.Equal(t, "b200-0", records[1].UTXO.TxID)
	assert.Equal(t, "b199-1", records[4].UTXO.TxID)
}

func TestFetchPeerTransactionsFallbackRespectsLimit(t *testing.T) {
	coinbaseOnly := `[
		{"txid":"cb","size":300,"weight":1200,"fee":0,
		 "vin":[{"is_coinbase":true}],"vout":[{"value":625000000}],
		 "status":{"confirmed":true,"block_height":100,"block_time":1700000000}}
	]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-height/100":
			fmt.Fprint(w, "hash100")
		case "/block/hash100/txs":
			fmt.Fprint(w, coinbaseOnly)
		case "/blocks":
			fmt.Fprint(w, `[{"height":200}]`)
		case "/block-height/200":
			fmt.Fprint(w, "hash200")
		case "/block/hash200/txs":
			fmt.Fprint(w, blockTxsJSON("b200", 4))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	// the window's residue plus the fallback sample never exceed the limit
	client := newTestClient(t, srv.URL, 0, true)
	records, err := client.FetchPeerTransactions(context.Background(), chains.PeerRef{BlockHeight: 100}, 3)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "cb", records[0].UTXO.TxID)
	assert.Equal(t, "b200-1", records[2].UTXO.TxID)
}

func TestFetchPeerTransactionsNoFallbackWhenDisabled(t *testing.T) {
	var blocksCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-height/100":
			fmt.Fprint(w, "hash100")
		case "/block/hash100/txs":
			fmt.Fprint(w, "[]")
		case "/blocks":
			blocksCalls.Add(1)
			fmt.Fprint(w, "[]")
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0, false)
	records, err := client.FetchPeerTransactions(context.Background(), chains.PeerRef{BlockHeight: 100}, 10)
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Equal(t, int32(0), blocksCalls.Load())
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 1, false)
	records, err := client.FetchUserTransactions(context.Background(), testAddress, nil, 5)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(3), calls.Load())
}
