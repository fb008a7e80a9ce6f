package purchase

import (
	"context"
	"crypto/ed25519"
	"math/bits"

	"github.com/pkg/errors"
)

// PreparedSplits are the resolved payees of a purchase along with the tip
// and the complete amount transferred.
type PreparedSplits struct {
	Splits []ResolvedSplit
	Extra  uint64
	Total  uint64
}

// RouteAmounts returns the amount routed to each destination, in split
// order. The extra amount is credited to the first payee so the routed
// amounts sum to Total.
func (s *PreparedSplits) RouteAmounts() []uint64 {
	amounts := make([]uint64, len(s.Splits))
	for i, split := range s.Splits {
		amounts[i] = split.Amount
	}
	if len(amounts) > 0 {
		amounts[0] += s.Extra
	}
	return amounts
}

func (s *PreparedSplits) Destinations() []ed25519.PublicKey {
	destinations := make([]ed25519.PublicKey, len(s.Splits))
	for i, split := range s.Splits {
		destinations[i] = split.Destination
	}
	return destinations
}

// SplitAmount is the sum of the payee splits, excluding the extra amount.
func (s *PreparedSplits) SplitAmount() uint64 {
	return s.Total - s.Extra
}

// SplitPreparer binds raw payee splits to token accounts.
type SplitPreparer struct {
	resolver SplitResolutionService
	mint     ed25519.PublicKey
}

func NewSplitPreparer(resolver SplitResolutionService, mint ed25519.PublicKey) *SplitPreparer {
	return &SplitPreparer{
		resolver: resolver,
		mint:     mint,
	}
}

// Prepare resolves each raw split to a destination. Splits naming an eth
// wallet pay into that wallet's user bank, which the resolution service
// derives and, when missing on chain, creates. Other splits pay their payout
// wallet directly.
func (p *SplitPreparer) Prepare(ctx context.Context, raw []RawSplit, extraQuarks uint64) (*PreparedSplits, error) {
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrInvalidInstructionInput, "no payment splits")
	}

	prepared := &PreparedSplits{
		Splits: make([]ResolvedSplit, len(raw)),
		Extra:  extraQuarks,
	}

	var sum uint64
	for i, split := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		destination, err := p.resolveDestination(ctx, split)
		if err != nil {
			return nil, errors.Wrapf(err, "split %d", i)
		}

		var carry uint64
		sum, carry = bits.Add64(sum, split.Amount, 0)
		if carry != 0 {
			return nil, errors.Wrap(ErrInvalidInstructionInput, "split amounts overflow")
		}

		prepared.Splits[i] = ResolvedSplit{
			UserId:      split.UserId,
			Destination: destination,
			Amount:      split.Amount,
		}
	}

	total, carry := bits.Add64(sum, extraQuarks, 0)
	if carry != 0 {
		return nil, errors.Wrap(ErrInvalidInstructionInput, "total amount overflows")
	}
	prepared.Total = total

	return prepared, nil
}

func (p *SplitPreparer) resolveDestination(ctx context.Context, split RawSplit) (ed25519.PublicKey, error) {
	if split.EthWallet == nil {
		if len(split.PayoutWallet) != ed25519.PublicKeySize {
			return nil, errors.Wrap(ErrInvalidInstructionInput, "split has no destination")
		}
		return split.PayoutWallet, nil
	}

	if p.resolver == nil {
		return nil, errors.Wrap(ErrInvalidInstructionInput, "no split resolution service")
	}

	destination, err := p.resolver.DeriveOrCreateAccount(ctx, *split.EthWallet, p.mint)
	if err != nil {
		return nil, classify(err, ErrNetworkFailure, "failed to resolve user bank")
	}
	if len(destination) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrInvalidInstructionInput, "resolved destination is invalid")
	}

	return destination, nil
}
