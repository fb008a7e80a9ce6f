package purchase

import (
	"fmt"
)

type GateKind uint8

const (
	GateKindNone GateKind = iota
	GateKindFollow
	GateKindTip
	GateKindCollectible
	GateKindUsdcPurchase
)

func (k GateKind) String() string {
	switch k {
	case GateKindNone:
		return "none"
	case GateKindFollow:
		return "follow"
	case GateKindTip:
		return "tip"
	case GateKindCollectible:
		return "collectible"
	case GateKindUsdcPurchase:
		return "usdc_purchase"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// AccessGate is the condition guarding stream or download access. Only the
// field matching Kind is set.
type AccessGate struct {
	Kind GateKind

	FollowUserId string
	TipUserId    string
	Collectible  *CollectibleGate
	UsdcPurchase *UsdcPurchase
}

type CollectibleGate struct {
	Chain   string
	Address string
}

// UsdcPurchase gates content behind a payment split across payees.
type UsdcPurchase struct {
	PriceCents uint64
	Splits     []RawSplit
}

func NewFollowGate(userId string) *AccessGate {
	return &AccessGate{Kind: GateKindFollow, FollowUserId: userId}
}

func NewTipGate(userId string) *AccessGate {
	return &AccessGate{Kind: GateKindTip, TipUserId: userId}
}

func NewCollectibleGate(chain, address string) *AccessGate {
	return &AccessGate{Kind: GateKindCollectible, Collectible: &CollectibleGate{Chain: chain, Address: address}}
}

func NewUsdcPurchaseGate(priceCents uint64, splits ...RawSplit) *AccessGate {
	return &AccessGate{
		Kind: GateKindUsdcPurchase,
		UsdcPurchase: &UsdcPurchase{
			PriceCents: priceCents,
			Splits:     splits,
		},
	}
}

// purchase returns the USDC purchase condition, if this gate is one.
func (g *AccessGate) purchase() (*UsdcPurchase, bool) {
	if g == nil {
		return nil, false
	}

	switch g.Kind {
	case GateKindUsdcPurchase:
		return g.UsdcPurchase, g.UsdcPurchase != nil
	case GateKindNone, GateKindFollow, GateKindTip, GateKindCollectible:
		return nil, false
	}
	return nil, false
}
