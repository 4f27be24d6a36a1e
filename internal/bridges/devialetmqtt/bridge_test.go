package devialetmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-devialet/internal/coordinator"
	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
	"github.com/nerrad567/gray-logic-devialet/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	connected bool
	handlers  map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) setConnected(c bool) {
	m.mu.Lock()
	m.connected = c
	m.mu.Unlock()
}

// SimulateMessage delivers payload to the handler subscribed on topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscriber for " + topic)
	}
	return handler(topic, payload)
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) publishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	m.published = nil
	m.mu.Unlock()
}

// mockCoordinator implements Coordinator for testing.
type mockCoordinator struct {
	mu         sync.Mutex
	state      *devialet.DeviceState
	available  bool
	lastErr    error
	execErr    error
	infoErr    error
	execResult devialet.Result
	executed   []string
	subs       []func(devialet.DeviceState)
	availSubs  []func(bool, error)
}

func (m *mockCoordinator) State() (devialet.DeviceState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return devialet.DeviceState{}, false
	}
	return *m.state, true
}

func (m *mockCoordinator) Info(context.Context) (devialet.DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.infoErr != nil {
		return devialet.DeviceInfo{}, m.infoErr
	}
	return devialet.DeviceInfo{DeviceID: "dev-1", FirmwareVersion: "2.16.1"}, nil
}

func (m *mockCoordinator) setInfoErr(err error) {
	m.mu.Lock()
	m.infoErr = err
	m.mu.Unlock()
}

func (m *mockCoordinator) Execute(_ context.Context, command string, _ devialet.Params) (devialet.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, command)
	if m.execErr != nil {
		return devialet.Result{}, m.execErr
	}
	res := m.execResult
	res.Command = command
	return res, nil
}

func (m *mockCoordinator) Subscribe(fn func(devialet.DeviceState)) func() {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.subs = nil
		m.mu.Unlock()
	}
}

func (m *mockCoordinator) OnAvailability(fn func(bool, error)) func() {
	m.mu.Lock()
	m.availSubs = append(m.availSubs, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.availSubs = nil
		m.mu.Unlock()
	}
}

func (m *mockCoordinator) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

func (m *mockCoordinator) Phase() coordinator.Phase {
	if m.Available() {
		return coordinator.PhaseIdle
	}
	return coordinator.PhaseBackoff
}

func (m *mockCoordinator) ConsecutiveFailures() int { return 0 }

func (m *mockCoordinator) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// push stores state and notifies subscribers like the coordinator does.
func (m *mockCoordinator) push(s devialet.DeviceState) {
	m.mu.Lock()
	m.state = &s
	m.available = true
	subs := append([]func(devialet.DeviceState){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (m *mockCoordinator) setAvailable(available bool, err error) {
	m.mu.Lock()
	m.available = available
	m.lastErr = err
	subs := append([]func(bool, error){}, m.availSubs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(available, err)
	}
}

func sampleState() devialet.DeviceState {
	off := false
	return devialet.DeviceState{
		PowerState:        devialet.PowerOn,
		Volume:            40,
		PlaybackState:     devialet.PlaybackPlaying,
		CurrentSource:     "spotifyconnect",
		CurrentSourceName: "Spotify Connect",
		Track:             "Song",
		Artist:            "Band",
		Album:             "Record",
		StreamCodec:       "FLAC",
		Lossless:          true,
		NightMode:         &off,
		EqPreset:          devialet.EqFlat,
		AvailableSources:  []devialet.Source{{ID: "s1", Type: "spotifyconnect", Name: "Spotify Connect"}},
	}
}

func newTestBridge(t *testing.T) (*Bridge, *MockMQTTClient, *mockCoordinator) {
	t.Helper()
	return newTestBridgeFor(t, &mockCoordinator{available: true})
}

// newTestBridgeFor starts a bridge against a preconfigured coordinator.
func newTestBridgeFor(t *testing.T, coord *mockCoordinator) (*Bridge, *MockMQTTClient, *mockCoordinator) {
	t.Helper()
	client := NewMockMQTTClient()
	b, err := NewBridge(Options{
		DeviceID:       "lounge",
		TopicPrefix:    "graylogic/devialet",
		Version:        "test",
		HealthInterval: time.Hour,
		QoS:            1,
		MQTT:           client,
		Coordinator:    coord,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	// Wait for the reporter's initial publish so it cannot interleave
	// with what a test publishes next.
	deadline := time.Now().Add(time.Second)
	for len(client.publishedTo(b.Topics().Health())) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("health reporter did not publish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return b, client, coord
}

func TestNewBridge_Validation(t *testing.T) {
	client := NewMockMQTTClient()
	coord := &mockCoordinator{}
	tests := []struct {
		name string
		opts Options
	}{
		{"missing mqtt", Options{DeviceID: "d", TopicPrefix: "p", Coordinator: coord}},
		{"missing coordinator", Options{DeviceID: "d", TopicPrefix: "p", MQTT: client}},
		{"missing device id", Options{TopicPrefix: "p", MQTT: client, Coordinator: coord}},
		{"missing prefix", Options{DeviceID: "d", MQTT: client, Coordinator: coord}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() expected error")
			}
		})
	}
}

func TestBridge_StartPublishesInfoAndHealth(t *testing.T) {
	b, client, _ := newTestBridge(t)

	info := client.publishedTo(b.Topics().Info())
	if len(info) != 1 || !info[0].Retained {
		t.Fatalf("info publishes = %+v, want one retained", info)
	}
	var got devialet.DeviceInfo
	if err := json.Unmarshal(info[0].Payload, &got); err != nil || got.DeviceID != "dev-1" {
		t.Errorf("info payload = %s (%v)", info[0].Payload, err)
	}

	// Starting status first, then the initial report from the loop.
	health := client.publishedTo(b.Topics().Health())
	var first, second HealthMessage
	if err := json.Unmarshal(health[0].Payload, &first); err != nil || first.Status != HealthStarting {
		t.Errorf("first health = %s", health[0].Payload)
	}
	if err := json.Unmarshal(health[1].Payload, &second); err != nil || second.Status != HealthHealthy {
		t.Errorf("second health = %s", health[1].Payload)
	}
	if second.Device == nil || second.Device.Phase != "idle" {
		t.Errorf("device health = %+v", second.Device)
	}
}

func TestBridge_CommandAccepted(t *testing.T) {
	b, client, coord := newTestBridge(t)

	payload := []byte(`{"id":"cmd-1","command":"set_volume","parameters":{"volume":40},"source":"automation"}`)
	if err := client.SimulateMessage(b.Topics().Command(), payload); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	acks := client.publishedTo(b.Topics().Ack())
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	if acks[0].Retained {
		t.Error("acks must not be retained")
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.CommandID != "cmd-1" || ack.Status != AckAccepted || ack.DeviceID != "lounge" || ack.Error != nil {
		t.Errorf("ack = %+v", ack)
	}
	if len(coord.executed) != 1 || coord.executed[0] != devialet.CmdSetVolume {
		t.Errorf("executed = %v", coord.executed)
	}
}

func TestBridge_CommandErrors(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		execErr    error
		wantStatus AckStatus
		wantCode   string
		wantExec   bool
	}{
		{
			name:       "validation",
			payload:    `{"id":"c","command":"set_volume","parameters":{"volume":400}}`,
			execErr:    &devialet.ValidationError{Field: "volume", Value: 400, Reason: "out of range"},
			wantStatus: AckRejected,
			wantCode:   ErrCodeValidation,
			wantExec:   true,
		},
		{
			name:       "unsupported",
			payload:    `{"id":"c","command":"reboot"}`,
			execErr:    &devialet.UnsupportedFeatureError{Feature: devialet.FeatureReboot},
			wantStatus: AckRejected,
			wantCode:   ErrCodeUnsupported,
			wantExec:   true,
		},
		{
			name:       "connection",
			payload:    `{"id":"c","command":"play"}`,
			execErr:    &devialet.ConnectionError{Method: "POST", Path: "/x", Err: context.DeadlineExceeded},
			wantStatus: AckFailed,
			wantCode:   ErrCodeConnection,
			wantExec:   true,
		},
		{
			name:       "device",
			payload:    `{"id":"c","command":"play"}`,
			execErr:    &devialet.DeviceError{Path: "/x", StatusCode: 500},
			wantStatus: AckFailed,
			wantCode:   ErrCodeDevice,
			wantExec:   true,
		},
		{
			name:       "malformed json",
			payload:    `{"id":`,
			wantStatus: AckRejected,
			wantCode:   ErrCodeInvalidPayload,
		},
		{
			name:       "missing command",
			payload:    `{"id":"c"}`,
			wantStatus: AckRejected,
			wantCode:   ErrCodeInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client, coord := newTestBridge(t)
			coord.execErr = tt.execErr

			if err := client.SimulateMessage(b.Topics().Command(), []byte(tt.payload)); err != nil {
				t.Fatalf("SimulateMessage() error = %v", err)
			}

			acks := client.publishedTo(b.Topics().Ack())
			if len(acks) != 1 {
				t.Fatalf("acks = %d, want 1", len(acks))
			}
			var ack AckMessage
			if err := json.Unmarshal(acks[0].Payload, &ack); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			if ack.Status != tt.wantStatus || ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("ack = %+v, want %s/%s", ack, tt.wantStatus, tt.wantCode)
			}
			if ack.CommandID == "" {
				t.Error("ack has no command id")
			}
			if got := len(coord.executed) > 0; got != tt.wantExec {
				t.Errorf("executed = %v, want executed %v", coord.executed, tt.wantExec)
			}
		})
	}
}

func TestBridge_PowerOffWarningInAck(t *testing.T) {
	b, client, coord := newTestBridge(t)
	coord.execResult = devialet.Result{Warning: devialet.PowerOffWarning}

	_ = client.SimulateMessage(b.Topics().Command(), []byte(`{"id":"p","command":"power_off"}`))

	var ack AckMessage
	acks := client.publishedTo(b.Topics().Ack())
	if len(acks) != 1 {
		t.Fatalf("acks = %d", len(acks))
	}
	_ = json.Unmarshal(acks[0].Payload, &ack)
	if ack.Status != AckAccepted || ack.Warning != devialet.PowerOffWarning {
		t.Errorf("ack = %+v", ack)
	}
}

func TestBridge_StatePublishing(t *testing.T) {
	b, client, coord := newTestBridge(t)
	client.ClearPublished()

	coord.push(sampleState())

	states := client.publishedTo(b.Topics().State())
	if len(states) != 1 || !states[0].Retained {
		t.Fatalf("state publishes = %+v", states)
	}
	var msg StateMessage
	if err := json.Unmarshal(states[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if !msg.Available || msg.State.Volume != 40 || msg.DeviceID != "lounge" {
		t.Errorf("state message = %+v", msg)
	}

	wantEntities := map[string]string{
		EntityVolume:        "40",
		EntityPlaybackState: "playing",
		EntityTrack:         "Song",
		EntityArtist:        "Band",
		EntityAlbum:         "Record",
		EntityStreamInfo:    "FLAC (Lossless)",
		EntityNightMode:     "off",
	}
	for name, want := range wantEntities {
		got := client.publishedTo(b.Topics().Entity(name))
		if len(got) != 1 || string(got[0].Payload) != want || !got[0].Retained {
			t.Errorf("entity %s = %+v, want retained %q", name, got, want)
		}
	}
	if got := client.publishedTo(b.Topics().Entity(EntityMediaPlayer)); len(got) != 1 {
		t.Errorf("media_player publishes = %d, want 1", len(got))
	}
}

func TestBridge_OnlyChangedEntitiesRepublished(t *testing.T) {
	b, client, coord := newTestBridge(t)
	coord.push(sampleState())
	client.ClearPublished()

	next := sampleState()
	next.Volume = 55
	coord.push(next)

	if got := client.publishedTo(b.Topics().Entity(EntityVolume)); len(got) != 1 || string(got[0].Payload) != "55" {
		t.Errorf("volume entity = %+v", got)
	}
	if got := client.publishedTo(b.Topics().Entity(EntityTrack)); len(got) != 0 {
		t.Errorf("unchanged track entity republished: %+v", got)
	}
	// media_player embeds the volume level, so it changes too.
	if got := client.publishedTo(b.Topics().Entity(EntityMediaPlayer)); len(got) != 1 {
		t.Errorf("media_player publishes = %d, want 1", len(got))
	}
}

func TestBridge_ClearsVanishedNightMode(t *testing.T) {
	b, client, coord := newTestBridge(t)
	coord.push(sampleState())
	client.ClearPublished()

	next := sampleState()
	next.NightMode = nil
	coord.push(next)

	got := client.publishedTo(b.Topics().Entity(EntityNightMode))
	if len(got) != 1 || len(got[0].Payload) != 0 || !got[0].Retained {
		t.Errorf("night_mode clear = %+v, want one empty retained publish", got)
	}
}

func TestBridge_Availability(t *testing.T) {
	b, client, coord := newTestBridge(t)
	coord.push(sampleState())
	client.ClearPublished()

	coord.setAvailable(false, errors.New("connection refused"))

	states := client.publishedTo(b.Topics().State())
	if len(states) != 1 {
		t.Fatalf("state publishes = %d, want 1", len(states))
	}
	var msg StateMessage
	_ = json.Unmarshal(states[0].Payload, &msg)
	if msg.Available {
		t.Error("state should be marked unavailable")
	}
	if msg.State.Volume != 40 {
		t.Errorf("last known state not kept: volume %d", msg.State.Volume)
	}

	health := client.publishedTo(b.Topics().Health())
	if len(health) == 0 {
		t.Fatal("no health published on availability change")
	}
	var hm HealthMessage
	_ = json.Unmarshal(health[len(health)-1].Payload, &hm)
	if hm.Status != HealthUnavailable || hm.Reason != "connection refused" {
		t.Errorf("health = %+v", hm)
	}
}

func TestBridge_InfoPublishedOnceSpeakerAvailable(t *testing.T) {
	coord := &mockCoordinator{infoErr: errors.New("connection refused")}
	b, client, _ := newTestBridgeFor(t, coord)

	if got := client.publishedTo(b.Topics().Info()); len(got) != 0 {
		t.Fatalf("info published while speaker unreachable: %+v", got)
	}

	// Still unreachable on the first transition: nothing to publish yet.
	coord.setAvailable(true, nil)
	if got := client.publishedTo(b.Topics().Info()); len(got) != 0 {
		t.Fatalf("info published without device info: %+v", got)
	}

	coord.setInfoErr(nil)
	coord.setAvailable(false, errors.New("timeout"))
	coord.setAvailable(true, nil)

	info := client.publishedTo(b.Topics().Info())
	if len(info) != 1 || !info[0].Retained {
		t.Fatalf("info publishes = %+v, want one retained", info)
	}
	var got devialet.DeviceInfo
	if err := json.Unmarshal(info[0].Payload, &got); err != nil || got.DeviceID != "dev-1" {
		t.Errorf("info payload = %s (%v)", info[0].Payload, err)
	}

	// Later recoveries do not repeat it.
	coord.setAvailable(false, errors.New("timeout"))
	coord.setAvailable(true, nil)
	if n := len(client.publishedTo(b.Topics().Info())); n != 1 {
		t.Errorf("info publishes = %d after second recovery, want 1", n)
	}
}

func TestBridge_StopUnsubscribes(t *testing.T) {
	b, client, coord := newTestBridge(t)
	b.Stop()
	b.Stop()

	if err := client.SimulateMessage(b.Topics().Command(), []byte(`{"command":"play"}`)); err == nil {
		t.Error("command handler still subscribed after Stop")
	}
	client.ClearPublished()
	coord.push(sampleState())
	if n := len(client.GetPublished()); n != 0 {
		t.Errorf("%d messages published after Stop", n)
	}
}
