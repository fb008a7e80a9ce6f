package purchase

import (
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type ContentType string

const (
	ContentTypeTrack ContentType = "track"
	ContentTypeAlbum ContentType = "album"
)

type AccessType string

const (
	AccessTypeStream   AccessType = "stream"
	AccessTypeDownload AccessType = "download"
)

func (t AccessType) IsValid() bool {
	return t == AccessTypeStream || t == AccessTypeDownload
}

// Access is what the buyer already holds for a piece of content.
type Access struct {
	Stream   bool
	Download bool
}

func (a Access) Has(t AccessType) bool {
	switch t {
	case AccessTypeStream:
		return a.Stream
	case AccessTypeDownload:
		return a.Download
	}
	return false
}

// ContentAccessInfo is a point in time view of a piece of content as seen by a
// buyer. It is read once per purchase attempt and never mutated.
type ContentAccessInfo struct {
	ContentId   string
	ContentType ContentType
	OwnerId     string

	IsStreamGated      bool
	IsDownloadGated    bool
	StreamConditions   *AccessGate
	DownloadConditions *AccessGate

	Access Access

	// Block at which the content was last updated, recorded in the purchase
	// memo so indexers can attribute the price the buyer saw.
	BlockNumber uint64
}

// RawSplit is a payee share as published by the content directory. A split
// either names an existing token account (PayoutWallet) or an eth wallet whose
// user bank receives the funds.
type RawSplit struct {
	UserId       string
	Percentage   decimal.Decimal
	EthWallet    *common.Address
	PayoutWallet ed25519.PublicKey
	Amount       uint64
}

// ResolvedSplit is a payee share bound to a concrete token account.
type ResolvedSplit struct {
	UserId      string
	Destination ed25519.PublicKey
	Amount      uint64
}

// ExternalWallet is a wallet the buyer signs with directly.
type ExternalWallet struct {
	Address ed25519.PublicKey
	Adapter WalletAdapter
}

// Intent is a buyer's request to purchase access to a piece of content.
type Intent struct {
	BuyerId     string
	ContentId   string
	ContentType ContentType

	// ConfirmedPrice is the price, in dollars, the buyer agreed to.
	ConfirmedPrice decimal.Decimal

	// ExtraAmount is an optional tip, in dollars, paid on top of the price.
	ExtraAmount decimal.Decimal

	// AccessType optionally requests download access. Stream access is
	// purchased by default.
	AccessType AccessType

	// Wallet selects the wallet path. When nil the purchase is funded from
	// the buyer's user bank through the relay.
	Wallet *ExternalWallet

	// Buyer authenticates the relay path.
	Buyer Authenticator
}
