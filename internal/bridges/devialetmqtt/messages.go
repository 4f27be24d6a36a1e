package devialetmqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

// CommandMessage is received on the command topic.
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when empty.
	ID string `json:"id"`

	// Command is one of devialet.Commands().
	Command string `json:"command"`

	// Parameters holds command arguments, e.g. {"volume": 40}.
	Parameters devialet.Params `json:"parameters,omitempty"`

	// Source names the originator ("automation", "voice", ...).
	Source string `json:"source,omitempty"`

	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ParseCommand decodes a command payload and fills in a missing ID. The
// returned message carries an ID even on error so it can be acked.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{ID: uuid.NewString()}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Command == "" {
		return cmd, ErrMissingCommand
	}
	return cmd, nil
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	// AckAccepted means the speaker accepted the command.
	AckAccepted AckStatus = "accepted"

	// AckRejected means the command was refused before anything was sent.
	AckRejected AckStatus = "rejected"

	// AckFailed means the speaker could not be reached or returned an error.
	AckFailed AckStatus = "failed"
)

// Error codes carried in AckError.Code.
const (
	ErrCodeValidation     = "validation"
	ErrCodeUnsupported    = "unsupported"
	ErrCodeConnection     = "connection"
	ErrCodeDevice         = "device"
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeInternal       = "internal"
)

// AckMessage is published on the ack topic once per command.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command,omitempty"`
	Status    AckStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	// Warning accompanies accepted commands with side effects (power_off).
	Warning string `json:"warning,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError describes why a command was rejected or failed.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAck builds an accepted ack from an Execute result.
func NewAck(deviceID string, cmd CommandMessage, res devialet.Result) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Timestamp: time.Now().UTC(),
		Warning:   res.Warning,
	}
}

// NewAckError builds a rejected or failed ack from err.
func NewAckError(deviceID string, cmd CommandMessage, err error) AckMessage {
	code := ErrorCode(err)
	status := AckFailed
	switch code {
	case ErrCodeValidation, ErrCodeUnsupported, ErrCodeInvalidPayload:
		status = AckRejected
	}
	return AckMessage{
		CommandID: cmd.ID,
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Error:     &AckError{Code: code, Message: err.Error()},
	}
}

// ErrorCode classifies err into one of the ErrCode constants.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, devialet.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, devialet.ErrUnsupportedFeature):
		return ErrCodeUnsupported
	case errors.Is(err, devialet.ErrConnection):
		return ErrCodeConnection
	case errors.Is(err, devialet.ErrDevice):
		return ErrCodeDevice
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrMissingCommand):
		return ErrCodeInvalidPayload
	default:
		return ErrCodeInternal
	}
}

// StateMessage is published, retained, on the state topic.
type StateMessage struct {
	DeviceID  string               `json:"device_id"`
	Available bool                 `json:"available"`
	Timestamp time.Time            `json:"timestamp"`
	State     devialet.DeviceState `json:"state"`
}

// HealthStatus is the bridge's overall status.
type HealthStatus string

const (
	// HealthHealthy means the broker and the speaker are both reachable.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the broker connection is down.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnavailable means the speaker is not answering polls.
	HealthUnavailable HealthStatus = "unavailable"

	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published, retained, on the health topic.
type HealthMessage struct {
	Bridge        string        `json:"bridge"`
	DeviceID      string        `json:"device_id"`
	Status        HealthStatus  `json:"status"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Timestamp     time.Time     `json:"timestamp"`
	Reason        string        `json:"reason,omitempty"`
	Device        *DeviceHealth `json:"device,omitempty"`
}

// DeviceHealth summarises the polling coordinator.
type DeviceHealth struct {
	Available           bool   `json:"available"`
	Phase               string `json:"phase"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}
