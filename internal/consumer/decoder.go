package consumer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/VictoriiaShtyreva/event-registration-consumer/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrDecode wraps every malformed-payload failure so the dispatcher can
// recognise the whole class with errors.Is.
var ErrDecode = errors.New("decode command")

// wireCommand matches the queue message body.
type wireCommand struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
	Action  string `json:"action"`
}

// Decode parses a raw message payload into a Command. It has no side
// effects and never blocks.
//
// A well-formed payload with an action the system does not model is NOT a
// decode failure: it yields a Command with ActionUnknown so the dispatcher
// can acknowledge it instead of poisoning the queue.
func Decode(payload []byte) (model.Command, error) {
	var wire wireCommand
	if err := json.Unmarshal(payload, &wire); err != nil {
		return model.Command{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if strings.TrimSpace(wire.EventID) == "" {
		return model.Command{}, fmt.Errorf("%w: missing eventId", ErrDecode)
	}
	if strings.TrimSpace(wire.UserID) == "" {
		return model.Command{}, fmt.Errorf("%w: missing userId", ErrDecode)
	}
	if strings.TrimSpace(wire.Action) == "" {
		return model.Command{}, fmt.Errorf("%w: missing action", ErrDecode)
	}

	eventID, err := uuid.Parse(wire.EventID)
	if err != nil {
		return model.Command{}, fmt.Errorf("%w: invalid eventId %q: %v", ErrDecode, wire.EventID, err)
	}

	return model.Command{
		EventID:   eventID,
		UserID:    wire.UserID,
		Action:    model.ParseAction(wire.Action),
		RawAction: wire.Action,
	}, nil
}
