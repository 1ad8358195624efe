package blockchain

import (
	"encoding/hex"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"
)

// DecodeRevert turns revert data into a readable reason: the Error(string)
// message, a Panic(uint256) code, or the hex selector of a custom error.
// Empty data yields an empty string.
func DecodeRevert(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		return reason
	}
	if len(data) >= 4 {
		return "custom error 0x" + hex.EncodeToString(data[:4])
	}
	return "0x" + hex.EncodeToString(data)
}

// RevertReason extracts a readable revert reason from an RPC error. Nodes
// attach the raw revert data to the error; when they do not, the error
// message itself is returned.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if b, decodeErr := hex.DecodeString(trimHexPrefix(raw)); decodeErr == nil {
				if reason := DecodeRevert(b); reason != "" {
					return reason
				}
			}
		}
	}
	return err.Error()
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
