package chains

// EVMSource names the provider endpoint an EVM record came from. The
// account endpoints already imply the asset; block records need token
// detection during normalization.
type EVMSource string

const (
	EVMSourceTxList  EVMSource = "txlist"
	EVMSourceTokenTx EVMSource = "tokentx"
	EVMSourceBlock   EVMSource = "block"
)

// EVMRecord carries an Etherscan-family transaction as the provider sent
// it. Numeric fields stay strings: the account endpoints answer in
// decimal, the proxy endpoints in 0x-prefixed hex.
type EVMRecord struct {
	Source          EVMSource
	Hash            string
	BlockNumber     string
	TimeStamp       string
	From            string
	To              string
	Value           string
	Gas             string
	GasPrice        string
	GasUsed         string
	Input           string
	ContractAddress string
}

// UTXORecord carries an Esplora-shaped transaction.
type UTXORecord struct {
	TxID        string
	Fee         int64
	Size        int64
	Weight      int64
	VinCount    int
	VoutCount   int
	HasCoinbase bool
	Confirmed   bool
	BlockHeight int64
	BlockTime   int64
}

// RawRecord is a provider-shaped record from one of the chain families.
// Exactly one variant is set, matching the adapter's Family.
type RawRecord struct {
	EVM  *EVMRecord
	UTXO *UTXORecord
}
