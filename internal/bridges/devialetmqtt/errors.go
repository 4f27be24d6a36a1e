package devialetmqtt

import "errors"

var (
	// ErrInvalidPayload is returned when an inbound message cannot be decoded.
	ErrInvalidPayload = errors.New("devialetmqtt: invalid payload")

	// ErrMissingCommand is returned when a command message has no command name.
	ErrMissingCommand = errors.New("devialetmqtt: command name missing")
)
