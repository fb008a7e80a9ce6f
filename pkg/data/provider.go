package data

import (
	"context"
	"crypto/ed25519"

	pg "github.com/code-payments/content-purchase/pkg/database/postgres"
	"github.com/code-payments/content-purchase/pkg/solana"
)

type Provider interface {
	BlockchainData
	DatabaseData

	GetBlockchainDataProvider() BlockchainData
	GetDatabaseDataProvider() DatabaseData
}

type provider struct {
	*BlockchainProvider
	*DatabaseProvider
}

func NewDataProvider(ctx context.Context, dbConfig *pg.Config, solanaEndpoint string, mint ed25519.PublicKey) (Provider, error) {
	blockchain, err := NewBlockchainProvider(solanaEndpoint, mint)
	if err != nil {
		return nil, err
	}

	db, err := NewDatabaseProvider(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	return &provider{
		BlockchainProvider: blockchain.(*BlockchainProvider),
		DatabaseProvider:   db.(*DatabaseProvider),
	}, nil
}

// NewTestDataProvider returns a provider backed by in memory stores and the
// provided solana client.
func NewTestDataProvider(sc solana.Client, mint ed25519.PublicKey) Provider {
	return &provider{
		BlockchainProvider: NewBlockchainProviderWithClient(sc, mint).(*BlockchainProvider),
		DatabaseProvider:   NewTestDatabaseProvider().(*DatabaseProvider),
	}
}

func (p *provider) GetBlockchainDataProvider() BlockchainData {
	return p.BlockchainProvider
}
func (p *provider) GetDatabaseDataProvider() DatabaseData {
	return p.DatabaseProvider
}
