package devialet

import (
	"slices"
	"strings"
	"time"
)

// Normalize maps one poll's raw responses onto a DeviceState.
//
// It never fails: missing blocks and members fall back to defaults
// (empty strings, idle playback, flat EQ, volume 0). Values are clamped
// to their documented ranges. NightMode stays nil unless the snapshot
// carries a night mode reading and the system block, when present,
// advertises the feature.
func Normalize(raw RawSnapshot) DeviceState {
	state := DeviceState{
		PowerState:       PowerOn,
		PlaybackState:    PlaybackIdle,
		EqPreset:         EqFlat,
		AvailableSources: selectableSources(raw.Sources),
		UpdatedAt:        time.Now().UTC(),
	}

	if raw.PoweredOff {
		state.PowerState = PowerOff
		return state
	}

	if raw.Volume != nil && raw.Volume.Volume != nil {
		state.Volume = ClampVolume(*raw.Volume.Volume)
	}

	if src := raw.Source; src != nil {
		state.PlaybackState = normalizePlayback(src.PlayingState)
		state.Muted = strings.EqualFold(src.MuteState, "muted")
		state.PeerDeviceName = src.PeerDeviceName

		if src.Source != nil {
			state.CurrentSource = src.Source.Type
			state.CurrentSourceName = SourceDisplayName(src.Source.Type)
		}
		if np := src.Metadata; np != nil {
			state.Track = np.Title
			state.Artist = np.Artist
			state.Album = np.Album
		}
		if si := src.StreamInfo; si != nil {
			state.StreamCodec = si.Codec
			state.Lossless = si.Lossless
			state.StreamSupported = si.Supported == nil || *si.Supported
		}
	}

	if eq := raw.Equalizer; eq != nil {
		if p := EqPreset(strings.ToLower(eq.Preset)); p.Valid() {
			state.EqPreset = p
		}
		if c := eq.CustomEqualization; c != nil {
			if c.Low != nil {
				state.EqLow = ClampGain(c.Low.Gain)
			}
			if c.High != nil {
				state.EqHigh = ClampGain(c.High.Gain)
			}
		}
	}

	if nm := raw.NightMode; nm != nil && nightModeAdvertised(raw.System) {
		switch strings.ToLower(nm.NightMode) {
		case "on":
			on := true
			state.NightMode = &on
		case "off":
			off := false
			state.NightMode = &off
		}
	}

	return state
}

func nightModeAdvertised(sys *RawSystem) bool {
	return sys == nil || slices.Contains(sys.AvailableFeatures, string(FeatureNightMode))
}

func normalizePlayback(s string) PlaybackState {
	switch strings.ToLower(s) {
	case "playing":
		return PlaybackPlaying
	case "paused":
		return PlaybackPaused
	default:
		return PlaybackIdle
	}
}

// NewDeviceInfo builds a DeviceInfo from the device and system bodies.
// sys may be nil, in which case no features are advertised.
func NewDeviceInfo(dev RawDevice, sys *RawSystem, localIP string) DeviceInfo {
	firmware := dev.Release.CanonicalVersion
	if firmware == "" {
		firmware = dev.Release.Version
	}

	features := []string{}
	if sys != nil {
		for _, f := range sys.AvailableFeatures {
			if f != "" {
				features = append(features, f)
			}
		}
		slices.Sort(features)
		features = slices.Compact(features)
	}

	return DeviceInfo{
		DeviceID:          dev.DeviceID,
		DeviceName:        dev.DeviceName,
		Model:             dev.Model,
		SerialNumber:      dev.Serial,
		FirmwareVersion:   firmware,
		LocalIP:           localIP,
		AvailableFeatures: features,
	}
}
