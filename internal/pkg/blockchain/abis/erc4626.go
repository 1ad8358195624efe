package abis

import "github.com/ethereum/go-ethereum/accounts/abi"

// GetERC4626ABI returns the subset of the ERC-4626 vault interface used for
// MetaMorpho deposits and withdrawals.
func GetERC4626ABI() (*abi.ABI, error) {
	return ParseABI(`[
		{
			"inputs": [],
			"name": "asset",
			"outputs": [{"name": "", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "decimals",
			"outputs": [{"name": "", "type": "uint8"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "totalAssets",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "assets", "type": "uint256"}],
			"name": "previewDeposit",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [{"name": "owner", "type": "address"}],
			"name": "maxWithdraw",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "assets", "type": "uint256"},
				{"name": "receiver", "type": "address"}
			],
			"name": "deposit",
			"outputs": [{"name": "shares", "type": "uint256"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "assets", "type": "uint256"},
				{"name": "receiver", "type": "address"},
				{"name": "owner", "type": "address"}
			],
			"name": "withdraw",
			"outputs": [{"name": "shares", "type": "uint256"}],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
}
