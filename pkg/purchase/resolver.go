package purchase

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/code-payments/content-purchase/pkg/usdc"
)

// Resolution is the price and payee splits that apply to a purchase.
type Resolution struct {
	PriceCents  uint64
	PriceQuarks uint64
	Splits      []RawSplit
	AccessType  AccessType
}

// Resolve determines what buyerId must pay for access to the content. Stream
// conditions take precedence. When they are not a purchase gate, download
// conditions apply and download access is purchased instead. Requesting
// download access explicitly selects the download conditions whenever they
// are a purchase gate.
//
// Resolve only reads info, so repeated calls yield identical results.
func Resolve(info *ContentAccessInfo, buyerId string, requested AccessType) (*Resolution, error) {
	if info == nil {
		return nil, ErrContentNotFound
	}
	if len(requested) > 0 && !requested.IsValid() {
		return nil, errors.Wrapf(ErrInvalidInstructionInput, "unknown access type %q", requested)
	}

	if buyerId == info.OwnerId {
		return nil, ErrSelfPurchase
	}

	if !info.IsStreamGated && !info.IsDownloadGated {
		return nil, errors.Wrap(ErrNotPurchasable, "content is free")
	}

	streamGate, isStreamPurchase := info.StreamConditions.purchase()
	downloadGate, isDownloadPurchase := info.DownloadConditions.purchase()

	var gate *UsdcPurchase
	var accessType AccessType
	switch {
	case requested == AccessTypeDownload && isDownloadPurchase:
		gate, accessType = downloadGate, AccessTypeDownload
	case isStreamPurchase:
		gate, accessType = streamGate, AccessTypeStream
	case isDownloadPurchase:
		gate, accessType = downloadGate, AccessTypeDownload
	default:
		return nil, errors.Wrap(ErrNotPurchasable, "no purchase gate")
	}

	if gate.PriceCents == 0 {
		return nil, errors.Wrap(ErrNotPurchasable, "purchase gate has no price")
	}

	if info.Access.Has(accessType) {
		return nil, errors.Wrapf(ErrAlreadyOwned, "%s access", accessType)
	}

	priceQuarks, err := usdc.CentsToQuarks(gate.PriceCents)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}

	splits := make([]RawSplit, len(gate.Splits))
	copy(splits, gate.Splits)

	return &Resolution{
		PriceCents:  gate.PriceCents,
		PriceQuarks: priceQuarks,
		Splits:      splits,
		AccessType:  accessType,
	}, nil
}

// ValidatePrice fails when the confirmed price, in dollars, is below the
// resolved price. The comparison is made in quarks, with the confirmed
// price truncated to whole quarks.
func ValidatePrice(confirmed decimal.Decimal, res *Resolution) error {
	if res == nil {
		return errors.Wrap(ErrInvalidInstructionInput, "resolution is required")
	}

	if confirmed.IsNegative() {
		return errors.Wrap(ErrPriceChanged, "confirmed price is negative")
	}

	confirmedQuarks, err := usdc.DollarsToQuarks(confirmed)
	switch {
	case errors.Is(err, usdc.ErrAmountTooLarge):
		// Above every price a resolution can carry
		return nil
	case err != nil:
		return errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}

	if confirmedQuarks < res.PriceQuarks {
		return errors.Wrapf(
			ErrPriceChanged,
			"confirmed %s, current price is %s",
			usdc.StrFromQuarks(confirmedQuarks),
			usdc.StrFromQuarks(res.PriceQuarks),
		)
	}

	return nil
}

// extraQuarks converts an optional tip, in dollars, to quarks.
func extraQuarks(extra decimal.Decimal) (uint64, error) {
	if extra.IsNegative() {
		return 0, errors.Wrap(ErrInvalidInstructionInput, "extra amount is negative")
	}

	quarks, err := usdc.DollarsToQuarks(extra)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidInstructionInput, err.Error())
	}
	return quarks, nil
}
