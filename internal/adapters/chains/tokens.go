package chains

import (
	"sort"
	"strings"

	"feelens/internal/domain/fees"
	"feelens/pkg/errors"
)

// ZeroAddress marks the native asset in token configuration.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TokenTable is the validated asset-key <-> contract-address mapping for
// one EVM network, loaded once at configuration time. The entry bound to
// the zero address is always exposed under the reserved native key.
type TokenTable struct {
	byKey      map[string]string // asset key -> lowercase contract
	byContract map[string]string // lowercase contract -> asset key
	keys       []string          // native first, then sorted
}

// NewTokenTable validates and indexes a key -> contract configuration map.
func NewTokenTable(tokens map[string]string) (TokenTable, error) {
	t := TokenTable{
		byKey:      make(map[string]string, len(tokens)),
		byContract: make(map[string]string, len(tokens)),
	}

	for key, contract := range tokens {
		key = strings.ToLower(strings.TrimSpace(key))
		contract = strings.ToLower(strings.TrimSpace(contract))
		if key == "" || contract == "" {
			return TokenTable{}, errors.NewValidationError("tokens", "empty asset key or contract", tokens)
		}
		if contract == ZeroAddress {
			key = fees.AssetKeyNative
		}
		if _, dup := t.byKey[key]; dup {
			return TokenTable{}, errors.NewValidationError("tokens", "duplicate asset key", key)
		}
		if _, dup := t.byContract[contract]; dup {
			return TokenTable{}, errors.NewValidationError("tokens", "duplicate contract address", contract)
		}
		t.byKey[key] = contract
		t.byContract[contract] = key
	}

	for key := range t.byKey {
		if key != fees.AssetKeyNative {
			t.keys = append(t.keys, key)
		}
	}
	sort.Strings(t.keys)
	if _, ok := t.byKey[fees.AssetKeyNative]; ok {
		t.keys = append([]string{fees.AssetKeyNative}, t.keys...)
	}

	return t, nil
}

// Keys returns the configured asset keys, native first.
func (t TokenTable) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// ContractFor returns the contract address bound to an asset key.
func (t TokenTable) ContractFor(key string) (string, bool) {
	c, ok := t.byKey[strings.ToLower(key)]
	return c, ok
}

// KeyFor resolves a contract address to its asset key. The zero address
// resolves to the native key.
func (t TokenTable) KeyFor(contract string) (string, bool) {
	k, ok := t.byContract[strings.ToLower(contract)]
	return k, ok
}

// Len returns the number of configured assets.
func (t TokenTable) Len() int {
	return len(t.byKey)
}
