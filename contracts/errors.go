package contracts

import (
	"errors"
	"fmt"
)

// ErrUnknownEventType is returned when a body carries a `type` discriminator
// outside the closed set a decoder accepts.
var ErrUnknownEventType = errors.New("contracts: unknown event type")

// DecodeError reports a body that could not be decoded into its event kind.
type DecodeError struct {
	Queue string // queue the delivery came from, if known
	Type  string // raw discriminator value, if any
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("contracts: decoding %q event from %s: %v", e.Type, e.Queue, e.Err)
	}
	return fmt.Sprintf("contracts: decoding event from %s: %v", e.Queue, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
