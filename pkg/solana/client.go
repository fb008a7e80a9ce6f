package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/content-purchase/pkg/retry"
	"github.com/code-payments/content-purchase/pkg/retry/backoff"
)

// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
const rpcNodeUnhealthyCode = -32005

// blockhashRefreshInterval is the nominal lifetime of a cached blockhash. It is
// well under the ~60s validity window of a blockhash.
const blockhashRefreshInterval = 2 * time.Second

type Commitment struct {
	Commitment string `json:"commitment"`
}

var (
	CommitmentProcessed = Commitment{Commitment: "processed"}
	CommitmentConfirmed = Commitment{Commitment: "confirmed"}
	CommitmentFinalized = Commitment{Commitment: "finalized"}
)

var ErrNoAccountInfo = errors.New("no account info")

// AccountInfo is the raw state of an on-chain account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// Client is the subset of the Solana JSON-RPC API used to build and submit
// purchase transactions.
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetLatestBlockhash() (Blockhash, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)
}

var (
	errRateLimited  = errors.New("rate limited")
	errServiceError = errors.New("service error")
)

type client struct {
	log     *logrus.Entry
	rpc     jsonrpc.RPCClient
	retrier retry.Retrier

	blockhashMu      sync.RWMutex
	blockhash        Blockhash
	blockhashFetched time.Time
}

// New returns a client for the RPC node at endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return &client{
		log: logrus.StandardLogger().WithField("type", "solana/client"),
		rpc: jsonrpc.NewClientWithOpts(endpoint, opts),
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(500*time.Millisecond), 5*time.Second, 0.1),
		),
	}
}

// call invokes method, retrying when the node is rate limiting or unhealthy.
// Any other RPC error is returned as is.
func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		err := c.rpc.CallFor(out, method, params...)

		var rpcErr *jsonrpc.RPCError
		if !errors.As(err, &rpcErr) {
			return err
		}

		switch {
		case rpcErr.Code == 429:
			c.log.WithField("method", method).Warn("rate limited")
			return errRateLimited
		case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
			c.log.WithField("method", method).WithError(err).Warn("rpc node unavailable")
			return errServiceError
		}
		return err
	})
	return err
}

// GetLatestBlockhash returns a recent confirmed blockhash. Results are reused
// for a jittered interval so concurrent purchases don't each hit the node.
func (c *client) GetLatestBlockhash() (Blockhash, error) {
	window := time.Duration(float64(blockhashRefreshInterval) * (0.8 + 0.4*rand.Float64()))

	c.blockhashMu.RLock()
	cached, fetched := c.blockhash, c.blockhashFetched
	c.blockhashMu.RUnlock()

	if cached != (Blockhash{}) && time.Since(fetched) < window {
		return cached, nil
	}

	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getLatestBlockhash", CommitmentConfirmed); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed to send request")
	}

	decoded, err := base58.Decode(resp.Value.Blockhash)
	if err != nil {
		return Blockhash{}, errors.Wrap(err, "invalid base58 encoded blockhash")
	}

	var hash Blockhash
	if len(decoded) != len(hash) {
		return Blockhash{}, errors.Errorf("invalid blockhash length: %d", len(decoded))
	}
	copy(hash[:], decoded)

	c.blockhashMu.Lock()
	c.blockhash = hash
	c.blockhashFetched = time.Now()
	c.blockhashMu.Unlock()

	return hash, nil
}

// SubmitTransaction sends a signed transaction, simulating it at commitment
// first. Preflight rejections are returned as *TransactionError.
func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	if len(txn.Signatures) == 0 {
		return Signature{}, errors.New("transaction has no signatures")
	}
	sig := txn.Signatures[0]

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var sigStr string
	err := c.call(&sigStr, "sendTransaction", txn.ToBase64(), config)
	if err == nil {
		return sig, nil
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return sig, errors.Wrap(err, "sendTransaction() failed to send request")
	}

	txErr, parseErr := parseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, errors.Wrap(err, "sendTransaction() rejected")
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.String(),
		"error_key": txErr.ErrorKey(),
	}).Debug("transaction rejected in preflight")

	return sig, txErr
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp struct {
		Value *struct {
			Lamports   uint64   `json:"lamports"`
			Owner      string   `json:"owner"`
			Data       []string `json:"data"`
			Executable bool     `json:"executable"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed to send request")
	}
	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	owner, err := base58.Decode(resp.Value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base58 encoded owner")
	}

	info := AccountInfo{
		Owner:      owner,
		Lamports:   resp.Value.Lamports,
		Executable: resp.Value.Executable,
	}
	if len(resp.Value.Data) > 0 {
		info.Data, err = base64.StdEncoding.DecodeString(resp.Value.Data[0])
		if err != nil {
			return AccountInfo{}, errors.Wrap(err, "invalid base64 encoded data")
		}
	}
	return info, nil
}
