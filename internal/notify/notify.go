// Package notify resolves a user's delivery address through the user
// directory and sends the post-transition notification email. Everything
// here is best-effort from the consumer's point of view: a committed
// ledger transition is never rolled back because a notification failed.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/model"
)

// ErrUserNotFound is returned by a Directory when the user identifier
// cannot be resolved to a delivery address.
var ErrUserNotFound = errors.New("user not found in directory")

// Directory resolves a user identifier to an email address.
type Directory interface {
	ResolveEmail(ctx context.Context, userID string) (string, error)
}

// Mailer delivers one notification email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier composes directory lookup and mail delivery into the single
// post-commit notification step the dispatcher fires.
type Notifier struct {
	directory Directory
	mailer    Mailer
}

// New constructs a Notifier.
func New(directory Directory, mailer Mailer) *Notifier {
	return &Notifier{directory: directory, mailer: mailer}
}

// NotifyRegistration resolves the user's address and sends a confirmation
// for the applied action. An unresolvable user aborts the send; the caller
// logs the returned error and moves on.
func (n *Notifier) NotifyRegistration(ctx context.Context, userID string, eventID uuid.UUID, action model.Action) error {
	email, err := n.directory.ResolveEmail(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve email for %q: %w", userID, err)
	}

	subject, body := renderMessage(eventID, action)
	if err := n.mailer.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("send notification to %q: %w", email, err)
	}
	return nil
}

func renderMessage(eventID uuid.UUID, action model.Action) (subject, body string) {
	switch action {
	case model.ActionUnregister:
		subject = "You have been unregistered"
		body = fmt.Sprintf("Your registration for event %s has been cancelled.", eventID)
	default:
		subject = "Registration confirmed"
		body = fmt.Sprintf("You are registered for event %s.", eventID)
	}
	return subject, body
}
