package devialet

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Value bounds.
const (
	MinVolume = 0
	MaxVolume = 100
	MinEqGain = -12.0
	MaxEqGain = 12.0
)

// PowerState of the speaker.
type PowerState string

const (
	PowerOn  PowerState = "on"
	PowerOff PowerState = "off"
)

// PlaybackState of the current source.
type PlaybackState string

const (
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackIdle    PlaybackState = "idle"
)

// EqPreset is a named equalizer configuration.
type EqPreset string

const (
	EqFlat   EqPreset = "flat"
	EqVoice  EqPreset = "voice"
	EqCustom EqPreset = "custom"
)

// Valid reports whether p is one of the known presets.
func (p EqPreset) Valid() bool {
	switch p {
	case EqFlat, EqVoice, EqCustom:
		return true
	}
	return false
}

// Source is a selectable input.
type Source struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// DeviceState is the normalized snapshot of a speaker. It is replaced as
// a whole after every poll and never mutated in place.
type DeviceState struct {
	PowerState    PowerState    `json:"power_state"`
	Volume        int           `json:"volume"`
	Muted         bool          `json:"muted"`
	PlaybackState PlaybackState `json:"playback_state"`

	CurrentSource     string `json:"current_source"`
	CurrentSourceName string `json:"current_source_name"`
	PeerDeviceName    string `json:"peer_device_name,omitempty"`

	Track  string `json:"track"`
	Artist string `json:"artist"`
	Album  string `json:"album"`

	StreamCodec     string `json:"stream_codec"`
	Lossless        bool   `json:"lossless"`
	StreamSupported bool   `json:"stream_supported"`

	// NightMode is nil when the device does not support night mode.
	NightMode *bool `json:"night_mode,omitempty"`

	EqPreset EqPreset `json:"eq_preset"`
	EqLow    float64  `json:"eq_low"`
	EqHigh   float64  `json:"eq_high"`

	AvailableSources []Source `json:"available_sources"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Equal compares two states ignoring UpdatedAt.
func (s DeviceState) Equal(o DeviceState) bool {
	if (s.NightMode == nil) != (o.NightMode == nil) {
		return false
	}
	if s.NightMode != nil && *s.NightMode != *o.NightMode {
		return false
	}
	return s.PowerState == o.PowerState &&
		s.Volume == o.Volume &&
		s.Muted == o.Muted &&
		s.PlaybackState == o.PlaybackState &&
		s.CurrentSource == o.CurrentSource &&
		s.CurrentSourceName == o.CurrentSourceName &&
		s.PeerDeviceName == o.PeerDeviceName &&
		s.Track == o.Track &&
		s.Artist == o.Artist &&
		s.Album == o.Album &&
		s.StreamCodec == o.StreamCodec &&
		s.Lossless == o.Lossless &&
		s.StreamSupported == o.StreamSupported &&
		s.EqPreset == o.EqPreset &&
		s.EqLow == o.EqLow &&
		s.EqHigh == o.EqHigh &&
		slices.Equal(s.AvailableSources, o.AvailableSources)
}

// StreamLabel renders the stream as "FLAC (Lossless)", "AAC", or "" when idle.
func (s DeviceState) StreamLabel() string {
	if s.StreamCodec == "" {
		return ""
	}
	if s.Lossless {
		return fmt.Sprintf("%s (Lossless)", s.StreamCodec)
	}
	return s.StreamCodec
}

// NightModeSupported reports whether NightMode carries a value.
func (s DeviceState) NightModeSupported() bool {
	return s.NightMode != nil
}

// DeviceInfo is the mostly static identity of a speaker.
type DeviceInfo struct {
	DeviceID        string `json:"device_id"`
	DeviceName      string `json:"device_name"`
	Model           string `json:"model"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
	LocalIP         string `json:"local_ip"`

	// AvailableFeatures is sorted and free of duplicates.
	AvailableFeatures []string `json:"available_features"`
}

// HasFeature reports whether the device advertises name.
func (i DeviceInfo) HasFeature(name string) bool {
	return slices.Contains(i.AvailableFeatures, name)
}

// ClampVolume limits v to [MinVolume, MaxVolume].
func ClampVolume(v int) int {
	return min(max(v, MinVolume), MaxVolume)
}

// ClampGain limits g to [MinEqGain, MaxEqGain]. NaN becomes 0.
func ClampGain(g float64) float64 {
	if math.IsNaN(g) {
		return 0
	}
	return math.Min(math.Max(g, MinEqGain), MaxEqGain)
}
