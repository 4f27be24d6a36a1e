package devialetmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-devialet/internal/coordinator"
	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/mqtt"
)

// commandTimeout bounds one command, including the device info lookup some
// commands need.
const commandTimeout = 10 * time.Second

// MQTTClient is the interface for MQTT operations, satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// DeviceStatus reports the polling coordinator's view of the speaker.
type DeviceStatus interface {
	Available() bool
	Phase() coordinator.Phase
	ConsecutiveFailures() int
	LastError() error
}

// Coordinator is the slice of *coordinator.Coordinator the bridge drives.
type Coordinator interface {
	DeviceStatus
	State() (devialet.DeviceState, bool)
	Info(ctx context.Context) (devialet.DeviceInfo, error)
	Execute(ctx context.Context, command string, params devialet.Params) (devialet.Result, error)
	Subscribe(fn func(devialet.DeviceState)) func()
	OnAvailability(fn func(available bool, err error)) func()
}

// Logger is the logging surface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Bridge.
type Options struct {
	// BridgeID names this bridge instance in health messages.
	BridgeID string

	// DeviceID is the speaker's identifier in topics and messages.
	DeviceID string

	// TopicPrefix is the root of every topic, e.g. "graylogic/devialet".
	TopicPrefix string

	Version        string
	HealthInterval time.Duration

	// QoS for commands, acks and state. Health is always QoS 1.
	QoS byte

	MQTT        MQTTClient
	Coordinator Coordinator
	Logger      Logger
}

// Bridge relays commands from MQTT to the coordinator and publishes state,
// entities and health back.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	deviceID string
	topics   mqtt.Topics
	qos      byte
	mqtt     MQTTClient
	coord    Coordinator
	health   *HealthReporter
	logger   Logger

	// entityCache holds the last payload published per entity so only
	// changed entities are sent.
	entityCache map[string][]byte
	publishMu   sync.Mutex

	// infoPublished is set once the retained info message has gone out.
	// Guarded by publishMu.
	infoPublished bool

	unsubscribe []func()

	ctx       context.Context
	ctxCancel context.CancelFunc
	stopOnce  sync.Once
}

// NewBridge validates opts and creates a Bridge. Call Start to begin.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if opts.DeviceID == "" {
		return nil, errors.New("device ID is required")
	}
	if opts.TopicPrefix == "" {
		return nil, errors.New("topic prefix is required")
	}
	bridgeID := opts.BridgeID
	if bridgeID == "" {
		bridgeID = "devialet-bridge"
	}

	ctx, cancel := context.WithCancel(context.Background())
	topics := mqtt.NewTopics(opts.TopicPrefix, opts.DeviceID)

	b := &Bridge{
		deviceID:    opts.DeviceID,
		topics:      topics,
		qos:         opts.QoS,
		mqtt:        opts.MQTT,
		coord:       opts.Coordinator,
		logger:      opts.Logger,
		entityCache: make(map[string][]byte),
		ctx:         ctx,
		ctxCancel:   cancel,
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  bridgeID,
		DeviceID:  opts.DeviceID,
		Version:   opts.Version,
		Topic:     topics.Health(),
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Device:    opts.Coordinator,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	return b, nil
}

// Topics returns the bridge's topic set.
func (b *Bridge) Topics() mqtt.Topics {
	return b.topics
}

// Start subscribes to commands, hooks into the coordinator, publishes the
// current state and device info, and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.mqtt.Subscribe(b.topics.Command(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", b.topics.Command())

	b.unsubscribe = append(b.unsubscribe,
		b.coord.Subscribe(b.onStateChange),
		b.coord.OnAvailability(b.onAvailability),
	)

	if state, ok := b.coord.State(); ok {
		b.publishState(state, b.coord.Available())
	}
	b.publishInfo(ctx)

	b.health.Start(ctx)
	b.logInfo("bridge started", "device_id", b.deviceID)
	return nil
}

// Stop unhooks from the coordinator and MQTT and publishes a final
// "stopping" health message. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		for _, fn := range b.unsubscribe {
			fn()
		}
		if err := b.mqtt.Unsubscribe(b.topics.Command()); err != nil {
			b.logDebug("unsubscribe from commands failed", "error", err)
		}
		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// handleCommand executes one inbound command and always answers with an ack.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	cmd, err := ParseCommand(payload)
	if err != nil {
		b.logWarn("rejected command payload", "command_id", cmd.ID, "error", err)
		b.publishAck(NewAckError(b.deviceID, cmd, err))
		return nil
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"source", cmd.Source)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	res, err := b.coord.Execute(ctx, cmd.Command, cmd.Parameters)
	if err != nil {
		ack := NewAckError(b.deviceID, cmd, err)
		if ack.Status == AckRejected {
			b.logInfo("command rejected", "command_id", cmd.ID, "command", cmd.Command, "error", err)
		} else {
			b.logWarn("command failed", "command_id", cmd.ID, "command", cmd.Command, "error", err)
		}
		b.publishAck(ack)
		return nil
	}

	if res.Warning != "" {
		b.logWarn("command accepted with warning", "command", cmd.Command, "warning", res.Warning)
	}
	b.publishAck(NewAck(b.deviceID, cmd, res))
	return nil
}

func (b *Bridge) onStateChange(state devialet.DeviceState) {
	b.publishState(state, true)
}

func (b *Bridge) onAvailability(available bool, err error) {
	if available {
		b.logInfo("speaker available")
	} else {
		b.logWarn("speaker unavailable", "error", err)
	}

	if state, ok := b.coord.State(); ok {
		b.publishState(state, available)
	}
	if available && !b.hasPublishedInfo() {
		b.publishInfo(b.ctx)
	}
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health", err)
	}
}

// publishState sends the full state and every entity whose payload changed.
// Entities that disappeared (night mode after a firmware change) have
// their retained message cleared.
func (b *Bridge) publishState(state devialet.DeviceState, available bool) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	msg := StateMessage{
		DeviceID:  b.deviceID,
		Available: available,
		Timestamp: time.Now().UTC(),
		State:     state,
	}
	b.publishJSON(b.topics.State(), msg, true)

	entities := Entities(state)
	for name, value := range entities {
		payload, err := encodeEntity(value)
		if err != nil {
			b.logError("failed to encode entity", fmt.Errorf("%s: %w", name, err))
			continue
		}
		if prev, ok := b.entityCache[name]; ok && string(prev) == string(payload) {
			continue
		}
		if err := b.mqtt.Publish(b.topics.Entity(name), payload, b.qos, true); err != nil {
			b.logError("failed to publish entity", fmt.Errorf("%s: %w", name, err))
			continue
		}
		b.entityCache[name] = payload
	}

	for name := range b.entityCache {
		if _, ok := entities[name]; ok {
			continue
		}
		if err := b.mqtt.Publish(b.topics.Entity(name), nil, b.qos, true); err != nil {
			b.logError("failed to clear entity", fmt.Errorf("%s: %w", name, err))
			continue
		}
		delete(b.entityCache, name)
	}
}

// publishInfo sends the retained device info. When the speaker cannot be
// reached it is retried on the next transition to available.
func (b *Bridge) publishInfo(ctx context.Context) {
	info, err := b.coord.Info(ctx)
	if err != nil {
		b.logWarn("device info unavailable, retrying when the speaker is available", "error", err)
		return
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()
	if b.publishJSON(b.topics.Info(), info, true) {
		b.infoPublished = true
	}
}

func (b *Bridge) hasPublishedInfo() bool {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()
	return b.infoPublished
}

func (b *Bridge) publishAck(ack AckMessage) {
	b.publishJSON(b.topics.Ack(), ack, false)
}

// publishJSON reports whether the message was handed to the client.
func (b *Bridge) publishJSON(topic string, v any, retained bool) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to encode message", fmt.Errorf("%s: %w", topic, err))
		return false
	}
	if err := b.mqtt.Publish(topic, payload, b.qos, retained); err != nil {
		b.logError("failed to publish", fmt.Errorf("%s: %w", topic, err))
		return false
	}
	return true
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}
