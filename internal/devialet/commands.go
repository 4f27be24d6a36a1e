package devialet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
)

// PowerOffWarning is attached to every power-off result.
const PowerOffWarning = "the device cannot be powered back on through IP Control; use the physical button or the Devialet app"

// SetVolume sets the absolute volume (0-100).
func (c *Client) SetVolume(ctx context.Context, volume int) error {
	if volume < MinVolume || volume > MaxVolume {
		return invalid("volume", volume, fmt.Sprintf("must be between %d and %d", MinVolume, MaxVolume))
	}
	return c.post(ctx, CmdSetVolume, pathVolume, map[string]int{"volume": volume})
}

// VolumeStep moves the volume one device step up (+1) or down (-1).
func (c *Client) VolumeStep(ctx context.Context, direction int) error {
	switch direction {
	case 1:
		return c.post(ctx, CmdVolumeUp, pathVolumeUp, nil)
	case -1:
		return c.post(ctx, CmdVolumeDown, pathVolumeDown, nil)
	default:
		return invalid("volume step", direction, "must be +1 or -1")
	}
}

// Mute mutes the current source.
func (c *Client) Mute(ctx context.Context) error {
	return c.playback(ctx, CmdMute, opMute)
}

// Unmute unmutes the current source.
func (c *Client) Unmute(ctx context.Context) error {
	return c.playback(ctx, CmdUnmute, opUnmute)
}

// Play resumes playback.
func (c *Client) Play(ctx context.Context) error {
	return c.playback(ctx, CmdPlay, opPlay)
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) error {
	return c.playback(ctx, CmdPause, opPause)
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	return c.playback(ctx, CmdNext, opNext)
}

// Previous returns to the previous track.
func (c *Client) Previous(ctx context.Context) error {
	return c.playback(ctx, CmdPrevious, opPrevious)
}

// SelectSource starts playback on a selectable source, given either its
// id or its display name ("Optical"). A display name must match exactly
// one source. When nothing matches, the source list is fetched again
// once before the request is rejected, so newly added inputs are found.
func (c *Client) SelectSource(ctx context.Context, source string) error {
	if source == "" {
		return invalid("source", source, "must not be empty")
	}

	sources, err := c.Sources(ctx)
	if err != nil {
		return err
	}
	id, err := resolveSource(sources, source)
	if errors.Is(err, errSourceNotFound) {
		c.sourceCache.Delete(cacheKey)
		if sources, err = c.Sources(ctx); err != nil {
			return err
		}
		id, err = resolveSource(sources, source)
	}
	switch {
	case errors.Is(err, errSourceNotFound):
		return invalid("source", source, "not a selectable source on this device")
	case err != nil:
		return invalid("source", source, err.Error())
	}

	return c.post(ctx, CmdSelectSource, fmt.Sprintf(pathSourcePlay, url.PathEscape(id)), nil)
}

var errSourceNotFound = errors.New("source not found")

// resolveSource maps an id or a unique display name to a source id.
func resolveSource(sources []Source, source string) (string, error) {
	for _, s := range sources {
		if s.ID == source {
			return s.ID, nil
		}
	}

	var id string
	matches := 0
	for _, s := range sources {
		if s.Name == source {
			id = s.ID
			matches++
		}
	}
	switch matches {
	case 0:
		return "", errSourceNotFound
	case 1:
		return id, nil
	default:
		return "", fmt.Errorf("name matches %d sources, select by id", matches)
	}
}

// SetEqPreset selects an equalizer preset. On devices with night mode,
// night mode is switched off first, as choosing a sound mode does on the
// device itself.
func (c *Client) SetEqPreset(ctx context.Context, preset EqPreset) error {
	if !preset.Valid() {
		return invalid("eq preset", preset, "must be flat, voice or custom")
	}

	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	if Supports(FeatureNightMode, info) {
		if err := c.transport.Post(ctx, pathNightMode, nightModeBody(false)); err != nil {
			return err
		}
	}

	return c.post(ctx, CmdSetEqPreset, pathEqualizer, map[string]string{"preset": string(preset)})
}

// SetCustomEq applies custom low and high gains in dB, each within
// [-12, 12].
func (c *Client) SetCustomEq(ctx context.Context, low, high float64) error {
	if err := validGain("eq low", low); err != nil {
		return err
	}
	if err := validGain("eq high", high); err != nil {
		return err
	}

	body := map[string]any{
		"preset": string(EqCustom),
		"customEqualization": map[string]any{
			"low":  map[string]float64{"gain": low},
			"high": map[string]float64{"gain": high},
		},
	}
	return c.post(ctx, CmdSetCustomEq, pathEqualizer, body)
}

// SetNightMode turns night mode on or off.
func (c *Client) SetNightMode(ctx context.Context, enabled bool) error {
	if err := c.require(ctx, FeatureNightMode); err != nil {
		return err
	}
	return c.post(ctx, CmdSetNightMode, pathNightMode, nightModeBody(enabled))
}

// Reboot restarts the speaker.
func (c *Client) Reboot(ctx context.Context) error {
	if err := c.require(ctx, FeatureReboot); err != nil {
		return err
	}
	return c.post(ctx, CmdReboot, pathRestart, nil)
}

// PowerOff turns the speaker off. It cannot be turned back on over the
// network; the call is allowed but always logged as a warning.
func (c *Client) PowerOff(ctx context.Context) error {
	c.warn("powering off device", "host", c.host, "warning", PowerOffWarning)
	if err := c.transport.Post(ctx, pathPowerOff, nil); err != nil {
		return fmt.Errorf("%s: %w", CmdPowerOff, err)
	}
	// Armed before the hook so the refresh it triggers already sees it.
	c.power.Store(powerOffArmed)
	c.commandSucceeded(CmdPowerOff)
	return nil
}

func (c *Client) playback(ctx context.Context, command, op string) error {
	return c.post(ctx, command, pathPlayback+op, nil)
}

func (c *Client) post(ctx context.Context, command, path string, body any) error {
	if err := c.transport.Post(ctx, path, body); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	c.commandSucceeded(command)
	return nil
}

// require fails with UnsupportedFeatureError unless feature is supported.
func (c *Client) require(ctx context.Context, feature Feature) error {
	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	if !Supports(feature, info) {
		return &UnsupportedFeatureError{Feature: feature, Firmware: info.FirmwareVersion}
	}
	return nil
}

func validGain(field string, gain float64) error {
	if math.IsNaN(gain) || gain < MinEqGain || gain > MaxEqGain {
		return invalid(field, gain, fmt.Sprintf("must be between %.0f and %.0f dB", MinEqGain, MaxEqGain))
	}
	return nil
}

func nightModeBody(enabled bool) map[string]string {
	if enabled {
		return map[string]string{"nightMode": "on"}
	}
	return map[string]string{"nightMode": "off"}
}
