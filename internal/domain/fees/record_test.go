package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validRecord() FeeRecord {
	return FeeRecord{
		TxID:      "0xabc",
		AssetKey:  AssetKeyNative,
		GasUsed:   Uint64Ptr(42_000),
		GasLimit:  Uint64Ptr(50_000),
		UnitPrice: decimal.NewFromInt(30),
		FeeTotal:  decimal.NewFromInt(1_260_000),
		BlockRef:  21_000_000,
		Timestamp: 1_700_000_000,
		IsMine:    true,
	}
}

func TestFeeRecordValidate(t *testing.T) {
	assert.NoError(t, validRecord().Validate())

	tests := []struct {
		name   string
		mutate func(*FeeRecord)
	}{
		{
			name:   "empty tx id",
			mutate: func(r *FeeRecord) { r.TxID = "" },
		},
		{
			name:   "empty asset key",
			mutate: func(r *FeeRecord) { r.AssetKey = "" },
		},
		{
			name:   "negative fee",
			mutate: func(r *FeeRecord) { r.FeeTotal = decimal.NewFromInt(-1) },
		},
		{
			name:   "gas used above limit",
			mutate: func(r *FeeRecord) { r.GasUsed = Uint64Ptr(60_000) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			assert.Error(t, rec.Validate())
		})
	}
}

func TestFeeRecordValidateWithoutGasFields(t *testing.T) {
	rec := validRecord()
	rec.GasUsed = nil
	rec.GasLimit = nil
	assert.NoError(t, rec.Validate(), "gas fields are optional")
}

func TestMeanDefined(t *testing.T) {
	assert.False(t, Mean{}.Defined())
	assert.True(t, Mean{Count: 1, Value: decimal.Zero}.Defined(), "a zero mean is still defined")
}

func TestRunCountersMerge(t *testing.T) {
	c := RunCounters{MalformedRecords: 1, FilteredRecords: 2}
	c.Merge(RunCounters{MalformedRecords: 3, UnmappedTokens: 4, PeerFetchFailures: 5})

	assert.Equal(t, RunCounters{
		MalformedRecords:  4,
		UnmappedTokens:    4,
		FilteredRecords:   2,
		PeerFetchFailures: 5,
	}, c)
}
