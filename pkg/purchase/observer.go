package purchase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/content-purchase/pkg/metrics"
	"github.com/code-payments/content-purchase/pkg/solana"
)

type State uint8

const (
	StateIdle State = iota
	StateValidating
	StateBuildingTransaction
	StateAwaitingSignature
	StateSubmitted
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
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

func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

type Path string

const (
	PathWallet Path = "wallet"
	PathRelay  Path = "relay"
)

// Transition is a single state change of a purchase attempt.
type Transition struct {
	AttemptId string
	ContentId string
	BuyerId   string
	Path      Path

	From State
	To   State

	// Set when To is StateConfirmed
	Signature solana.Signature

	// Set when To is StateFailed
	Err error

	At time.Time
}

// Observer is notified of every purchase state transition.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

type MultiObserver []Observer

func (m MultiObserver) OnTransition(ctx context.Context, t Transition) {
	for _, o := range m {
		if o != nil {
			o.OnTransition(ctx, t)
		}
	}
}

type loggingObserver struct {
	log *logrus.Entry
}

func NewLoggingObserver(log *logrus.Entry) Observer {
	return &loggingObserver{log: log}
}

func (o *loggingObserver) OnTransition(_ context.Context, t Transition) {
	log := o.log.WithFields(logrus.Fields{
		"attempt":    t.AttemptId,
		"content_id": t.ContentId,
		"buyer_id":   t.BuyerId,
		"path":       t.Path,
		"from":       t.From.String(),
		"to":         t.To.String(),
	})

	switch t.To {
	case StateFailed:
		log = log.WithField("kind", KindOf(t.Err)).WithError(t.Err)
		if IsRetryable(t.Err) {
			log.Warn("purchase attempt failed")
		} else {
			log.Info("purchase attempt rejected")
		}
	case StateConfirmed:
		log.WithField("signature", t.Signature.String()).Info("purchase transaction sent")
	default:
		log.Debug("purchase state changed")
	}
}

const (
	transitionEventName = "PurchaseStateTransition"
	attemptEventName    = "PurchaseAttempt"
	failureMetricPrefix = "Custom/PurchaseFailure/"
)

type metricsObserver struct{}

// NewMetricsObserver records transitions as New Relic custom events. Events
// are dropped when ctx carries no New Relic application.
func NewMetricsObserver() Observer {
	return &metricsObserver{}
}

func (o *metricsObserver) OnTransition(ctx context.Context, t Transition) {
	metrics.RecordEvent(ctx, transitionEventName, map[string]interface{}{
		"path":  string(t.Path),
		"from":  t.From.String(),
		"state": t.To.String(),
	})

	if t.To.IsTerminal() {
		metrics.RecordEvent(ctx, attemptEventName, map[string]interface{}{
			"path":       string(t.Path),
			"state":      t.To.String(),
			"kind":       string(KindOf(t.Err)),
			"is_success": t.To == StateConfirmed,
		})
	}
	if t.To == StateFailed {
		metrics.RecordCount(ctx, failureMetricPrefix+string(KindOf(t.Err)), 1)
	}
}
