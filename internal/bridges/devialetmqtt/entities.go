package devialetmqtt

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

// Entity names published under entity/{name}.
const (
	EntityMediaPlayer   = "media_player"
	EntityVolume        = "volume"
	EntityPlaybackState = "playback_state"
	EntityArtist        = "artist"
	EntityTrack         = "track"
	EntityAlbum         = "album"
	EntityStreamInfo    = "stream_info"
	EntityNightMode     = "night_mode"
)

// SoundModeNight is the media player's sound mode while night mode is on.
const SoundModeNight = "night_mode"

// MediaPlayer is the combined media player entity.
type MediaPlayer struct {
	// State is "off" when powered off, otherwise the playback state.
	// SoundMode is SoundModeNight while night mode is on, otherwise the
	// equalizer preset.
	State       string   `json:"state"`
	VolumeLevel float64  `json:"volume_level"`
	Muted       bool     `json:"is_volume_muted"`
	Source      string   `json:"source"`
	SourceList  []string `json:"source_list"`
	SoundMode   string   `json:"sound_mode"`
	MediaTitle  string   `json:"media_title"`
	MediaArtist string   `json:"media_artist"`
	MediaAlbum  string   `json:"media_album_name"`
}

// Entities projects a DeviceState onto the published entities. The
// night_mode entity is present only when the speaker supports it.
func Entities(s devialet.DeviceState) map[string]any {
	sources := make([]string, 0, len(s.AvailableSources))
	for _, src := range s.AvailableSources {
		sources = append(sources, src.Name)
	}

	player := MediaPlayer{
		State:       string(s.PlaybackState),
		VolumeLevel: float64(s.Volume) / devialet.MaxVolume,
		Muted:       s.Muted,
		Source:      s.CurrentSourceName,
		SourceList:  sources,
		SoundMode:   string(s.EqPreset),
		MediaTitle:  s.Track,
		MediaArtist: s.Artist,
		MediaAlbum:  s.Album,
	}
	if s.NightMode != nil && *s.NightMode {
		player.SoundMode = SoundModeNight
	}
	if s.PowerState == devialet.PowerOff {
		player.State = string(devialet.PowerOff)
	}

	entities := map[string]any{
		EntityMediaPlayer:   player,
		EntityVolume:        s.Volume,
		EntityPlaybackState: string(s.PlaybackState),
		EntityArtist:        s.Artist,
		EntityTrack:         s.Track,
		EntityAlbum:         s.Album,
		EntityStreamInfo:    s.StreamLabel(),
	}
	if s.NightMode != nil {
		if *s.NightMode {
			entities[EntityNightMode] = "on"
		} else {
			entities[EntityNightMode] = "off"
		}
	}
	return entities
}

// encodeEntity renders strings as plain text and everything else as JSON.
func encodeEntity(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(v)
}
