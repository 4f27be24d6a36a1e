package devialet

// Response bodies as the device sends them. Every member is optional;
// Normalize supplies defaults for anything missing.

// RawDevice is the body of GET /devices/current.
type RawDevice struct {
	DeviceID         string     `json:"deviceId"`
	DeviceName       string     `json:"deviceName"`
	Model            string     `json:"model"`
	ModelFamily      string     `json:"modelFamily"`
	Serial           string     `json:"serial"`
	Role             string     `json:"role"`
	SystemID         string     `json:"systemId"`
	IPControlVersion string     `json:"ipControlVersion"`
	Release          RawRelease `json:"release"`
}

// RawRelease carries the firmware (DOS) version.
type RawRelease struct {
	CanonicalVersion string `json:"canonicalVersion"`
	Version          string `json:"version"`
	BuildType        string `json:"buildType"`
}

// RawSystem is the body of GET /systems/current.
type RawSystem struct {
	SystemID          string   `json:"systemId"`
	SystemName        string   `json:"systemName"`
	GroupID           string   `json:"groupId"`
	AvailableFeatures []string `json:"availableFeatures"`
}

// RawSourceState is the body of GET /groups/current/sources/current.
// Metadata is absent when nothing is playing.
type RawSourceState struct {
	PlayingState        string         `json:"playingState"`
	MuteState           string         `json:"muteState"`
	PeerDeviceName      string         `json:"peerDeviceName"`
	AvailableOperations []string       `json:"availableOperations"`
	Source              *RawSource     `json:"source"`
	Metadata            *RawNowPlaying `json:"metadata"`
	StreamInfo          *RawStreamInfo `json:"streamInfo"`
}

// RawNowPlaying is the now-playing block of the current source.
type RawNowPlaying struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	CoverArtURL string `json:"coverArtUrl"`
	MediaType   string `json:"mediaType"`
	Duration    int    `json:"duration"`
}

// RawSource identifies one input.
type RawSource struct {
	SourceID string `json:"sourceId"`
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
}

// RawStreamInfo describes the incoming audio stream.
type RawStreamInfo struct {
	Codec     string `json:"codec"`
	Lossless  bool   `json:"lossless"`
	Supported *bool  `json:"supported"`
}

// RawSourceList is the body of GET /groups/current/sources.
type RawSourceList struct {
	Sources []RawSource `json:"sources"`
}

// RawVolume is the body of GET .../soundControl/volume.
type RawVolume struct {
	Volume *int `json:"volume"`
}

// RawNightMode is the body of GET .../settings/audio/nightMode.
type RawNightMode struct {
	NightMode string `json:"nightMode"`
}

// RawEqualizer is the body of GET .../settings/audio/equalizer.
type RawEqualizer struct {
	Preset             string       `json:"preset"`
	CustomEqualization *RawCustomEq `json:"customEqualization"`
}

// RawCustomEq holds the two-band custom equalization.
type RawCustomEq struct {
	Low  *RawGain `json:"low"`
	High *RawGain `json:"high"`
}

// RawGain is a single band gain in dB.
type RawGain struct {
	Gain float64 `json:"gain"`
}

// RawSnapshot bundles one poll's worth of responses for Normalize.
// A nil member means the request was skipped or not answered.
type RawSnapshot struct {
	System    *RawSystem
	Source    *RawSourceState
	Volume    *RawVolume
	Equalizer *RawEqualizer
	NightMode *RawNightMode
	Sources   *RawSourceList

	// PoweredOff is set when the device stopped answering after a
	// successful power-off command.
	PoweredOff bool
}
