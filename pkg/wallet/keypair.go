package wallet

import (
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/solana"
)

const (
	metricsStructName = "wallet.keypair"
)

var ErrNotConnected = errors.New("wallet is not connected")

// Keypair is a wallet backed by a local ed25519 key.
type Keypair struct {
	log *logrus.Entry
	key ed25519.PrivateKey

	mu        sync.RWMutex
	connected bool
}

func NewKeypair(key ed25519.PrivateKey) *Keypair {
	return &Keypair{
		log:       logrus.StandardLogger().WithField("type", "wallet/keypair"),
		key:       key,
		connected: true,
	}
}

// NewKeypairFromBase58 loads a keypair from its 64 byte base58 encoding.
func NewKeypairFromBase58(encoded string) (*Keypair, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 private key")
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid private key size: %d", len(decoded))
	}
	return NewKeypair(ed25519.PrivateKey(decoded)), nil
}

func (k *Keypair) Connect() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.connected = true
}

func (k *Keypair) Disconnect() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.connected = false
}

// PublicKey returns nil while disconnected.
func (k *Keypair) PublicKey() ed25519.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if !k.connected {
		return nil
	}
	return k.key.Public().(ed25519.PublicKey)
}

// SendTransaction signs txn with the wallet key and submits it through
// connection.
func (k *Keypair) SendTransaction(ctx context.Context, txn solana.Transaction, connection solana.Client) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SendTransaction")
	defer tracer.End()

	sig, err := k.sendTransaction(ctx, txn, connection)
	if err != nil {
		tracer.OnError(err)
	}
	return sig, err
}

func (k *Keypair) sendTransaction(ctx context.Context, txn solana.Transaction, connection solana.Client) (solana.Signature, error) {
	if k.PublicKey() == nil {
		return solana.Signature{}, ErrNotConnected
	}
	if connection == nil {
		return solana.Signature{}, errors.New("no connection")
	}
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	if err := txn.Sign(k.key); err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}

	log := k.log.WithFields(logrus.Fields{
		"method":    "SendTransaction",
		"signature": txn.Signatures[0].String(),
	})

	sig, err := connection.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		log.WithError(err).Warn("failed to submit transaction")
		return sig, err
	}

	log.Debug("submitted transaction")
	return sig, nil
}
