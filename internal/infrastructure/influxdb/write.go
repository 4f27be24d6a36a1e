package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementState = "devialet_state"
	MeasurementPoll  = "devialet_poll"
)

// StateSample is one observation of a speaker's playback state.
type StateSample struct {
	DeviceID      string
	Volume        int
	Muted         bool
	PlaybackState string
	Source        string
	EqPreset      string
	EqLow         float64
	EqHigh        float64
	NightMode     *bool
	Time          time.Time
}

// WriteState records a state sample. Tags carry the low-cardinality
// dimensions (device, source, preset); everything else is a field.
func (c *Client) WriteState(s StateSample) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": s.DeviceID,
	}
	if s.Source != "" {
		tags["source"] = s.Source
	}
	if s.EqPreset != "" {
		tags["eq_preset"] = s.EqPreset
	}

	fields := map[string]any{
		"volume":  s.Volume,
		"muted":   s.Muted,
		"playing": s.PlaybackState == "playing",
		"eq_low":  s.EqLow,
		"eq_high": s.EqHigh,
	}
	if s.NightMode != nil {
		fields["night_mode"] = *s.NightMode
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(MeasurementState, tags, fields, ts))
}

// WritePoll records the outcome and latency of one status poll.
func (c *Client) WritePoll(deviceID string, ok bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	result := "success"
	if !ok {
		result = "failure"
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementPoll,
		map[string]string{"device_id": deviceID, "result": result},
		map[string]any{"duration_ms": float64(duration) / float64(time.Millisecond)},
		time.Now(),
	))
}
