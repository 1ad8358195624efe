package blockchain

import "github.com/ethereum/go-ethereum/common"

const (
	Multicall3Address = "0xcA11bde05977b3631167028862bE2a173976CA11"
	MorphoBlueAddress = "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb"
)

const (
	ChainIDMainnet int64 = 1
	ChainIDBase    int64 = 8453
)

var (
	Multicall3 = common.HexToAddress(Multicall3Address)
	MorphoBlue = common.HexToAddress(MorphoBlueAddress)
)
