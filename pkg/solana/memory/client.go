package memory

import (
	"crypto/ed25519"
	"crypto/rand"
	"sync"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

// Client is an in memory solana.Client. Submitted transactions are verified
// against the current blockhash and fee payer signature, then recorded.
type Client struct {
	mu sync.Mutex

	accounts  map[string]solana.AccountInfo
	blockhash solana.Blockhash
	submitted []solana.Transaction

	blockhashErr error
	submitErr    error
}

func NewClient() *Client {
	c := &Client{
		accounts: make(map[string]solana.AccountInfo),
	}
	rand.Read(c.blockhash[:])
	return c
}

func (c *Client) GetAccountInfo(address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.accounts[base58.Encode(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	cloned := info
	cloned.Data = append([]byte(nil), info.Data...)
	return cloned, nil
}

func (c *Client) GetLatestBlockhash() (solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blockhashErr != nil {
		return solana.Blockhash{}, c.blockhashErr
	}
	return c.blockhash, nil
}

func (c *Client) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(txn.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}

	sig := txn.Signatures[0]
	if c.submitErr != nil {
		return sig, c.submitErr
	}
	if txn.Message.RecentBlockhash != c.blockhash {
		return sig, solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}
	if !ed25519.Verify(txn.Message.Accounts[0], txn.Message.Marshal(), sig[:]) {
		return sig, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	c.submitted = append(c.submitted, txn)
	return sig, nil
}

// SetAccount stores account info at address, replacing any existing value.
func (c *Client) SetAccount(address ed25519.PublicKey, info solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accounts[base58.Encode(address)] = info
}

// SetTokenAccount stores an initialized token account at address.
func (c *Client) SetTokenAccount(address, mint, owner ed25519.PublicKey, quarks uint64) {
	account := token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: quarks,
		State:  token.AccountStateInitialized,
	}

	c.SetAccount(address, solana.AccountInfo{
		Data:  account.Marshal(),
		Owner: token.ProgramKey,
	})
}

// RotateBlockhash replaces the current blockhash, expiring the previous one.
func (c *Client) RotateBlockhash() solana.Blockhash {
	c.mu.Lock()
	defer c.mu.Unlock()

	rand.Read(c.blockhash[:])
	return c.blockhash
}

func (c *Client) SetBlockhashError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockhashErr = err
}

func (c *Client) SetSubmitError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitErr = err
}

// Submitted returns every transaction accepted so far.
func (c *Client) Submitted() []solana.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]solana.Transaction(nil), c.submitted...)
}
