package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feelens/internal/domain/fees"
)

func TestNewTokenTable(t *testing.T) {
	table, err := NewTokenTable(map[string]string{
		"eth":  "0x0000000000000000000000000000000000000000",
		"usdt": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		"usdc": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	})
	require.NoError(t, err)

	// zero address entry is exposed under the reserved native key,
	// whatever the configured name
	key, ok := table.KeyFor(ZeroAddress)
	require.True(t, ok)
	assert.Equal(t, fees.AssetKeyNative, key)

	// contract lookup is case-insensitive
	key, ok = table.KeyFor("0xDAC17F958D2EE523A2206206994597C13D831EC7")
	require.True(t, ok)
	assert.Equal(t, "usdt", key)

	_, ok = table.KeyFor("0x1111111111111111111111111111111111111111")
	assert.False(t, ok)

	// native first, then sorted
	assert.Equal(t, []string{"native", "usdc", "usdt"}, table.Keys())
	assert.Equal(t, 3, table.Len())
}

func TestNewTokenTableRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		tokens map[string]string
	}{
		{
			name:   "empty contract",
			tokens: map[string]string{"usdt": ""},
		},
		{
			name: "duplicate contract",
			tokens: map[string]string{
				"usdt":   "0xdAC17F958D2ee523a2206206994597C13D831ec7",
				"tether": "0xdac17f958d2ee523a2206206994597c13d831ec7",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenTable(tt.tokens)
			assert.Error(t, err)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-5))
	assert.Equal(t, 20, ClampLimit(20))
	assert.Equal(t, maxFetchLimit, ClampLimit(10_000))
}
