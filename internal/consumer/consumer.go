// Package consumer implements the message-driven registration state
// machine: decoding one raw queue message, applying it to the ledger, and
// deciding whether the transport should acknowledge the message.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/ledger"
	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/model"
)

// Outcome is the terminal state of one message's processing.
type Outcome int

const (
	// Completed tells the transport to acknowledge and remove the message.
	Completed Outcome = iota
	// Deferred tells the transport the message was not processed; it is
	// left for redelivery or dead-lettering per the transport's policy.
	Deferred
)

// String implements fmt.Stringer for log output.
func (o Outcome) String() string {
	if o == Completed {
		return "completed"
	}
	return "deferred"
}

// Ledger is the transactional registration store the dispatcher applies
// commands to.
type Ledger interface {
	Register(ctx context.Context, eventID uuid.UUID, userID string) error
	Unregister(ctx context.Context, eventID uuid.UUID, userID string) error
}

// Notifier delivers the post-commit notification. Best-effort: errors are
// logged by the dispatcher and never change the message outcome.
type Notifier interface {
	NotifyRegistration(ctx context.Context, userID string, eventID uuid.UUID, action model.Action) error
}

// Dispatcher routes decoded commands to the ledger and decides the queue
// acknowledgment outcome. It holds no per-message state; one instance
// serves any number of concurrent invocations.
type Dispatcher struct {
	ledger     Ledger
	notifier   Notifier
	logger     *slog.Logger
	ledgerWait time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLedgerTimeout bounds how long one ledger transaction may run before
// it is cancelled and the message deferred. The default is 30 seconds.
func WithLedgerTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.ledgerWait = d
	}
}

// New constructs a Dispatcher. A nil logger falls back to slog.Default.
func New(l Ledger, n Notifier, logger *slog.Logger, options ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	disp := &Dispatcher{
		ledger:     l,
		notifier:   n,
		logger:     logger,
		ledgerWait: 30 * time.Second,
	}
	for _, option := range options {
		option(disp)
	}

	return disp
}

// Dispatch processes one raw message payload to a terminal outcome.
//
// Malformed payloads and unknown actions complete (are acknowledged) after
// a log record: redelivering a message the system will never understand
// only poisons the queue. Ledger failures defer the message so the
// transport can redeliver or dead-letter it. A notification failure after
// a committed ledger transition never changes a Completed outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte) Outcome {
	cmd, err := Decode(payload)
	if err != nil {
		d.logger.Warn("discarding malformed message", "error", err)
		return Completed
	}

	log := d.logger.With(
		"event_id", cmd.EventID,
		"user_id", cmd.UserID,
		"action", cmd.RawAction,
	)

	if cmd.Action == model.ActionUnknown {
		log.Warn("discarding message with unrecognized action")
		return Completed
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, d.ledgerWait)
	defer cancel()

	switch cmd.Action {
	case model.ActionRegister:
		err = d.ledger.Register(ledgerCtx, cmd.EventID, cmd.UserID)
	case model.ActionUnregister:
		err = d.ledger.Unregister(ledgerCtx, cmd.EventID, cmd.UserID)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrEventNotFound) {
			log.Error("event not found, leaving message for inspection")
		} else {
			log.Error("ledger operation failed, leaving message for redelivery", "error", err)
		}
		return Deferred
	}

	log.Info("registration state applied")

	if d.notifier != nil {
		if err := d.notifier.NotifyRegistration(ctx, cmd.UserID, cmd.EventID, cmd.Action); err != nil {
			log.Warn("notification failed", "error", err)
		}
	}

	return Completed
}
