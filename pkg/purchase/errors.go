package purchase

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrContentNotFound         = errors.New("content not found")
	ErrNotPurchasable          = errors.New("content is not available for purchase")
	ErrAlreadyOwned            = errors.New("buyer already has the requested access")
	ErrSelfPurchase            = errors.New("buyer is the content owner")
	ErrPriceChanged            = errors.New("price increased since it was confirmed")
	ErrInvalidInstructionInput = errors.New("invalid instruction input")
	ErrSplitMismatch           = errors.New("split amounts do not sum to the total")
	ErrWalletNotConnected      = errors.New("wallet is not connected")
	ErrUnauthenticated         = errors.New("buyer identity is not authenticated")
	ErrRelayFailure            = errors.New("relay failure")
	ErrNetworkFailure          = errors.New("network failure")
	ErrStaleCheckpoint         = errors.New("transaction checkpoint expired")
	ErrRateLimited             = errors.New("too many purchase attempts")
)

// Kind is the stable, loggable classification of a purchase failure.
type Kind string

const (
	KindNone                    Kind = ""
	KindUnknown                 Kind = "unknown"
	KindContentNotFound         Kind = "content_not_found"
	KindNotPurchasable          Kind = "not_purchasable"
	KindAlreadyOwned            Kind = "already_owned"
	KindSelfPurchase            Kind = "self_purchase"
	KindPriceChanged            Kind = "price_changed"
	KindInvalidInstructionInput Kind = "invalid_instruction_input"
	KindSplitMismatch           Kind = "split_mismatch"
	KindWalletNotConnected      Kind = "wallet_not_connected"
	KindUnauthenticated         Kind = "unauthenticated"
	KindRelayFailure            Kind = "relay_failure"
	KindNetworkFailure          Kind = "network_failure"
	KindStaleCheckpoint         Kind = "stale_checkpoint"
	KindRateLimited             Kind = "rate_limited"
	KindCanceled                Kind = "canceled"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrContentNotFound, KindContentNotFound},
	{ErrNotPurchasable, KindNotPurchasable},
	{ErrAlreadyOwned, KindAlreadyOwned},
	{ErrSelfPurchase, KindSelfPurchase},
	{ErrPriceChanged, KindPriceChanged},
	{ErrInvalidInstructionInput, KindInvalidInstructionInput},
	{ErrSplitMismatch, KindSplitMismatch},
	{ErrWalletNotConnected, KindWalletNotConnected},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrStaleCheckpoint, KindStaleCheckpoint},
	{ErrRelayFailure, KindRelayFailure},
	{ErrNetworkFailure, KindNetworkFailure},
	{ErrRateLimited, KindRateLimited},
}

// KindOf classifies err. Errors outside the purchase taxonomy are
// KindUnknown, and a nil error is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	if isCanceled(err) {
		return KindCanceled
	}

	return KindUnknown
}

// IsRetryable reports whether a new attempt, after re-validating, may
// succeed where this one failed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRelayFailure, KindNetworkFailure, KindStaleCheckpoint:
		return true
	}
	return false
}

// classify tags err with fallback unless it already carries a purchase
// failure kind.
func classify(err error, fallback error, msg string) error {
	if err == nil {
		return nil
	}

	switch KindOf(err) {
	case KindUnknown:
		return errors.Wrapf(fallback, "%s: %v", msg, err)
	case KindCanceled:
		return err
	}
	return errors.Wrap(err, msg)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
