package attempt

import (
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/content-purchase/pkg/pointer"
)

type State uint8

const (
	StateUnknown State = iota
	StateValidating
	StateBuildingTransaction
	StateAwaitingSignature
	StateSubmitted
	StateConfirmed
	StateFailed
)

type Path uint8

const (
	PathUnknown Path = iota
	PathWallet
	PathRelay
)

// Record is the bookkeeping entry for a single purchase attempt. Records are
// never used to decide access; the content directory stays authoritative.
type Record struct {
	Id uint64

	AttemptId   string
	ContentId   string
	ContentType string
	BuyerId     string
	AccessType  string
	Path        Path

	PriceQuarks uint64
	ExtraQuarks uint64
	TotalQuarks uint64

	State       State
	FailureKind *string
	Signature   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) Validate() error {
	if len(r.AttemptId) == 0 {
		return errors.New("attempt id is required")
	}

	if len(r.ContentId) == 0 {
		return errors.New("content id is required")
	}

	if len(r.ContentType) == 0 {
		return errors.New("content type is required")
	}

	if len(r.BuyerId) == 0 {
		return errors.New("buyer id is required")
	}

	if r.State == StateUnknown {
		return errors.New("state is required")
	}

	if r.TotalQuarks != 0 && r.TotalQuarks < r.PriceQuarks {
		return errors.New("total cannot be less than price")
	}

	switch r.State {
	case StateConfirmed:
		if r.Signature == nil || len(*r.Signature) == 0 {
			return errors.New("signature is required once confirmed")
		}
	case StateFailed:
		if r.FailureKind == nil || len(*r.FailureKind) == 0 {
			return errors.New("failure kind is required for failed attempts")
		}
	}

	if r.State != StateFailed && r.FailureKind != nil {
		return errors.New("failure kind cannot be set")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		AttemptId:   r.AttemptId,
		ContentId:   r.ContentId,
		ContentType: r.ContentType,
		BuyerId:     r.BuyerId,
		AccessType:  r.AccessType,
		Path:        r.Path,

		PriceQuarks: r.PriceQuarks,
		ExtraQuarks: r.ExtraQuarks,
		TotalQuarks: r.TotalQuarks,

		State:       r.State,
		FailureKind: pointer.Copy(r.FailureKind),
		Signature:   pointer.Copy(r.Signature),

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.AttemptId = r.AttemptId
	dst.ContentId = r.ContentId
	dst.ContentType = r.ContentType
	dst.BuyerId = r.BuyerId
	dst.AccessType = r.AccessType
	dst.Path = r.Path

	dst.PriceQuarks = r.PriceQuarks
	dst.ExtraQuarks = r.ExtraQuarks
	dst.TotalQuarks = r.TotalQuarks

	dst.State = r.State
	dst.FailureKind = pointer.Copy(r.FailureKind)
	dst.Signature = pointer.Copy(r.Signature)

	dst.CreatedAt = r.CreatedAt
	dst.UpdatedAt = r.UpdatedAt
}

func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateValidating:
		return "validating"
	case StateBuildingTransaction:
		return "building_transaction"
	case StateAwaitingSignature:
		return "awaiting_signature"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (p Path) String() string {
	switch p {
	case PathWallet:
		return "wallet"
	case PathRelay:
		return "relay"
	}
	return "unknown"
}
