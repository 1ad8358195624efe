package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// JSONRPCRequest represents a JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is a JSON-RPC error object. Data carries revert data.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// RPCHandler answers one JSON-RPC method. Returning a non-nil *RPCError
// sends an error response; otherwise result is JSON-encoded.
type RPCHandler func(params []json.RawMessage) (result any, rpcErr *RPCError)

// MockEthRPC is a scriptable JSON-RPC node.
type MockEthRPC struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandler
	calls    map[string]int
}

// StartMockEthRPC creates a mock Ethereum node answering the given methods.
// Unknown methods get -32601, like a node that does not implement them.
// Batch requests are supported.
func StartMockEthRPC(t *testing.T, handlers map[string]RPCHandler) *MockEthRPC {
	t.Helper()

	m := &MockEthRPC{handlers: handlers, calls: make(map[string]int)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		trimmed := strings.TrimSpace(string(body))
		if strings.HasPrefix(trimmed, "[") {
			var reqs []JSONRPCRequest
			if err := json.Unmarshal(body, &reqs); err != nil {
				WriteRPCError(w, json.RawMessage(`1`), -32700, "parse error")
				return
			}
			responses := make([]json.RawMessage, len(reqs))
			for i, req := range reqs {
				responses[i] = m.answer(req)
			}
			_ = json.NewEncoder(w).Encode(responses)
			return
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			WriteRPCError(w, json.RawMessage(`1`), -32700, "parse error")
			return
		}
		_, _ = w.Write(m.answer(req))
	}))
	t.Cleanup(m.Close)
	return m
}

// Calls returns how often method was called.
func (m *MockEthRPC) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockEthRPC) answer(req JSONRPCRequest) json.RawMessage {
	m.mu.Lock()
	m.calls[req.Method]++
	handler, ok := m.handlers[req.Method]
	m.mu.Unlock()

	if !ok {
		return encodeRPCError(req.ID, &RPCError{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"})
	}

	var params []json.RawMessage
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}
	result, rpcErr := handler(params)
	if rpcErr != nil {
		return encodeRPCError(req.ID, rpcErr)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return encodeRPCError(req.ID, &RPCError{Code: -32603, Message: err.Error()})
	}
	return encodeRPCResult(req.ID, resultJSON)
}

func encodeRPCResult(id, result json.RawMessage) json.RawMessage {
	out, _ := json.Marshal(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"result":  result,
	})
	return out
}

func encodeRPCError(id json.RawMessage, rpcErr *RPCError) json.RawMessage {
	errJSON, _ := json.Marshal(rpcErr)
	out, _ := json.Marshal(map[string]json.RawMessage{
		"jsonrpc": json.RawMessage(`"2.0"`),
		"id":      id,
		"error":   errJSON,
	})
	return out
}

// WriteRPCResult writes a JSON-RPC success response.
func WriteRPCResult(w http.ResponseWriter, id, result json.RawMessage) {
	_, _ = w.Write(encodeRPCResult(id, result))
}

// WriteRPCError writes a JSON-RPC error response.
func WriteRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	_, _ = w.Write(encodeRPCError(id, &RPCError{Code: code, Message: message}))
}

// BlockHeader returns a minimal eth_getBlockByNumber result for blockNum.
func BlockHeader(blockNum int64, baseFeeWei int64) map[string]string {
	timestamp := 1700000000 + blockNum*12
	return map[string]string{
		"hash":             fmt.Sprintf("0x%064x", blockNum),
		"parentHash":       fmt.Sprintf("0x%064x", blockNum-1),
		"sha3Uncles":       "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347",
		"miner":            "0x0000000000000000000000000000000000000000",
		"stateRoot":        "0x0000000000000000000000000000000000000000000000000000000000000000",
		"transactionsRoot": "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421",
		"receiptsRoot":     "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421",
		"logsBloom":        "0x" + strings.Repeat("0", 512),
		"difficulty":       "0x0",
		"number":           fmt.Sprintf("0x%x", blockNum),
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0x0",
		"timestamp":        fmt.Sprintf("0x%x", timestamp),
		"extraData":        "0x",
		"mixHash":          "0x0000000000000000000000000000000000000000000000000000000000000000",
		"nonce":            "0x0000000000000000",
		"baseFeePerGas":    fmt.Sprintf("0x%x", baseFeeWei),
	}
}

// Receipt returns a minimal eth_getTransactionReceipt result.
func Receipt(txHash string, blockNum int64, success bool) map[string]any {
	status := "0x1"
	if !success {
		status = "0x0"
	}
	return map[string]any{
		"type":              "0x2",
		"status":            status,
		"cumulativeGasUsed": "0x5208",
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
		"logsBloom":         "0x" + strings.Repeat("0", 512),
		"logs":              []any{},
		"transactionHash":   txHash,
		"transactionIndex":  "0x0",
		"blockHash":         fmt.Sprintf("0x%064x", blockNum),
		"blockNumber":       fmt.Sprintf("0x%x", blockNum),
		"contractAddress":   nil,
	}
}

// ParamString decodes params[i] as a JSON string.
func ParamString(params []json.RawMessage, i int) string {
	if i >= len(params) {
		return ""
	}
	var s string
	_ = json.Unmarshal(params[i], &s)
	return s
}
