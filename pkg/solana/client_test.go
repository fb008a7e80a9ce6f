package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/content-purchase/pkg/retry"
)

type rpcRequest struct {
	Id     interface{}       `json:"id"`
	Method string            `json:"method"`
	Params json.RawMessage `json:"params"`
}

// testNode is a JSON-RPC server that replies to each method with a canned
// result or error object.
type testNode struct {
	mu      sync.Mutex
	results map[string]interface{}
	errors  map[string]interface{}
	calls   map[string]int
}

func newTestNode(t *testing.T) (*testNode, *client) {
	node := &testNode{
		results: make(map[string]interface{}),
		errors:  make(map[string]interface{}),
		calls:   make(map[string]int),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		node.mu.Lock()
		node.calls[req.Method]++
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.Id}
		if rpcErr, ok := node.errors[req.Method]; ok {
			resp["error"] = rpcErr
		} else {
			resp["result"] = node.results[req.Method]
		}
		node.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	c := NewWithRPCOptions(server.URL, nil).(*client)
	c.retrier = retry.NewRetrier(retry.RetriableErrors(errRateLimited, errServiceError), retry.Limit(3))
	return node, c
}

func (n *testNode) callCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[method]
}

func TestClient_GetAccountInfo(t *testing.T) {
	node, c := newTestNode(t)

	address, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	node.results["getAccountInfo"] = map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   nil,
	}
	_, err = c.GetAccountInfo(address, CommitmentFinalized)
	assert.Equal(t, ErrNoAccountInfo, err)

	node.results["getAccountInfo"] = map[string]interface{}{
		"context": map[string]interface{}{"slot": 2},
		"value": map[string]interface{}{
			"lamports":   2039280,
			"owner":      base58.Encode(owner),
			"data":       []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "base64"},
			"executable": false,
		},
	}
	info, err := c.GetAccountInfo(address, CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, owner, info.Owner)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)
	assert.EqualValues(t, 2039280, info.Lamports)
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	node, c := newTestNode(t)

	var expected Blockhash
	expected[0] = 7
	node.results["getLatestBlockhash"] = map[string]interface{}{
		"value": map[string]interface{}{
			"blockhash":            expected.String(),
			"lastValidBlockHeight": 100,
		},
	}

	for i := 0; i < 5; i++ {
		actual, err := c.GetLatestBlockhash()
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
	assert.Equal(t, 1, node.callCount("getLatestBlockhash"))
}

func TestClient_GetLatestBlockhash_InvalidLength(t *testing.T) {
	node, c := newTestNode(t)

	node.results["getLatestBlockhash"] = map[string]interface{}{
		"value": map[string]interface{}{"blockhash": base58.Encode([]byte{1, 2, 3})},
	}
	_, err := c.GetLatestBlockhash()
	assert.Error(t, err)
}

func TestClient_SubmitTransaction(t *testing.T) {
	node, c := newTestNode(t)

	payer, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	txn := NewTransaction(payer, NewInstruction(payer, []byte("hello"), NewAccountMeta(payer, true)))
	require.NoError(t, txn.Sign(key))

	node.results["sendTransaction"] = txn.Signatures[0].String()
	sig, err := c.SubmitTransaction(txn, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, txn.Signatures[0], sig)

	node.errors["sendTransaction"] = map[string]interface{}{
		"code":    -32002,
		"message": "Transaction simulation failed: Blockhash not found",
		"data": map[string]interface{}{
			"err":  "BlockhashNotFound",
			"logs": []string{},
		},
	}
	_, err = c.SubmitTransaction(txn, CommitmentConfirmed)
	assert.True(t, IsBlockhashNotFound(err))

	node.errors["sendTransaction"] = map[string]interface{}{
		"code":    -32002,
		"message": "Transaction simulation failed",
		"data": map[string]interface{}{
			"err": map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 1}}},
		},
	}
	_, err = c.SubmitTransaction(txn, CommitmentConfirmed)
	txErr, ok := err.(*TransactionError)
	require.True(t, ok)
	require.NotNil(t, txErr.Instruction)
	assert.Equal(t, 1, txErr.Instruction.Index)

	_, err = c.SubmitTransaction(Transaction{}, CommitmentConfirmed)
	assert.Error(t, err)
}

func TestClient_RetriesUnhealthyNode(t *testing.T) {
	node, c := newTestNode(t)

	address, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	node.errors["getAccountInfo"] = map[string]interface{}{
		"code":    rpcNodeUnhealthyCode,
		"message": "Node is unhealthy",
	}
	_, err = c.GetAccountInfo(address, CommitmentFinalized)
	assert.Error(t, err)
	assert.Equal(t, 3, node.callCount("getAccountInfo"))

	node.errors["getAccountInfo"] = map[string]interface{}{
		"code":    -32602,
		"message": "Invalid param",
	}
	_, err = c.GetAccountInfo(address, CommitmentFinalized)
	assert.Error(t, err)
	assert.Equal(t, 4, node.callCount("getAccountInfo"))
}
