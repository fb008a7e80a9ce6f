package data

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/solana"
	"github.com/code-payments/content-purchase/pkg/solana/token"
)

const (
	blockchainProviderMetricsName = "data.blockchain_provider"
)

type BlockchainData interface {
	SubmitBlockchainTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	GetBlockchainAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (*solana.AccountInfo, error)
	GetBlockchainLatestBlockhash(ctx context.Context) (solana.Blockhash, error)
	GetBlockchainTokenAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (*token.Account, error)
}

type BlockchainProvider struct {
	sc solana.Client
	tc *token.Client
}

func NewBlockchainProvider(solanaEndpoint string, mint ed25519.PublicKey) (BlockchainData, error) {
	return NewBlockchainProviderWithClient(solana.New(solanaEndpoint), mint), nil
}

func NewBlockchainProviderWithClient(sc solana.Client, mint ed25519.PublicKey) BlockchainData {
	return &BlockchainProvider{
		sc: sc,
		tc: token.NewClient(sc, mint),
	}
}

// Solana
// --------------------------------------------------------------------------------

func (dp *BlockchainProvider) SubmitBlockchainTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, blockchainProviderMetricsName, "SubmitBlockchainTransaction")
	defer tracer.End()

	res, err := dp.sc.SubmitTransaction(*tx, solana.CommitmentProcessed)
	if err != nil {
		tracer.OnError(err)
	}
	return res, err
}

func (dp *BlockchainProvider) GetBlockchainAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (*solana.AccountInfo, error) {
	tracer := metrics.TraceMethodCall(ctx, blockchainProviderMetricsName, "GetBlockchainAccountInfo")
	defer tracer.End()

	accountInfo, err := dp.sc.GetAccountInfo(account, commitment)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return &accountInfo, nil
}

func (dp *BlockchainProvider) GetBlockchainLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	tracer := metrics.TraceMethodCall(ctx, blockchainProviderMetricsName, "GetBlockchainLatestBlockhash")
	defer tracer.End()

	res, err := dp.sc.GetLatestBlockhash()
	if err != nil {
		tracer.OnError(err)
	}
	return res, err
}

func (dp *BlockchainProvider) GetBlockchainTokenAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment solana.Commitment) (*token.Account, error) {
	tracer := metrics.TraceMethodCall(ctx, blockchainProviderMetricsName, "GetBlockchainTokenAccountInfo")
	defer tracer.End()

	res, err := dp.tc.GetAccount(account, commitment)
	if err != nil {
		tracer.OnError(err)
	}
	return res, err
}
