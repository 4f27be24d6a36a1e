package devialet

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Command names accepted by Execute. They match the MQTT and REST
// command vocabularies.
const (
	CmdSetVolume    = "set_volume"
	CmdVolumeUp     = "volume_up"
	CmdVolumeDown   = "volume_down"
	CmdVolumeStep   = "volume_step"
	CmdMute         = "mute"
	CmdUnmute       = "unmute"
	CmdPlay         = "play"
	CmdPause        = "pause"
	CmdNext         = "next_track"
	CmdPrevious     = "previous_track"
	CmdSelectSource = "select_source"
	CmdSetEqPreset  = "set_eq_preset"
	CmdSetCustomEq  = "set_custom_eq"
	CmdSetNightMode = "set_night_mode"
	CmdReboot       = "reboot"
	CmdPowerOff     = "power_off"
)

// Params carries command arguments decoded from JSON.
type Params map[string]any

// Result describes a command the device accepted.
type Result struct {
	Command string `json:"command"`
	Warning string `json:"warning,omitempty"`
}

type handlerFunc func(ctx context.Context, c *Client, p Params) error

var handlers = map[string]handlerFunc{
	CmdSetVolume: func(ctx context.Context, c *Client, p Params) error {
		v, err := p.Int("volume")
		if err != nil {
			return err
		}
		return c.SetVolume(ctx, v)
	},
	CmdVolumeUp:   func(ctx context.Context, c *Client, _ Params) error { return c.VolumeStep(ctx, 1) },
	CmdVolumeDown: func(ctx context.Context, c *Client, _ Params) error { return c.VolumeStep(ctx, -1) },
	CmdVolumeStep: func(ctx context.Context, c *Client, p Params) error {
		step, err := p.Int("step")
		if err != nil {
			return err
		}
		return c.VolumeStep(ctx, step)
	},
	CmdMute:     func(ctx context.Context, c *Client, _ Params) error { return c.Mute(ctx) },
	CmdUnmute:   func(ctx context.Context, c *Client, _ Params) error { return c.Unmute(ctx) },
	CmdPlay:     func(ctx context.Context, c *Client, _ Params) error { return c.Play(ctx) },
	CmdPause:    func(ctx context.Context, c *Client, _ Params) error { return c.Pause(ctx) },
	CmdNext:     func(ctx context.Context, c *Client, _ Params) error { return c.Next(ctx) },
	CmdPrevious: func(ctx context.Context, c *Client, _ Params) error { return c.Previous(ctx) },
	CmdSelectSource: func(ctx context.Context, c *Client, p Params) error {
		key := "source_id"
		if _, ok := p[key]; !ok {
			if _, byName := p["source"]; byName {
				key = "source"
			}
		}
		source, err := p.String(key)
		if err != nil {
			return err
		}
		return c.SelectSource(ctx, source)
	},
	CmdSetEqPreset: func(ctx context.Context, c *Client, p Params) error {
		preset, err := p.String("preset")
		if err != nil {
			return err
		}
		return c.SetEqPreset(ctx, EqPreset(strings.ToLower(preset)))
	},
	CmdSetCustomEq: func(ctx context.Context, c *Client, p Params) error {
		low, err := p.Float("low")
		if err != nil {
			return err
		}
		high, err := p.Float("high")
		if err != nil {
			return err
		}
		return c.SetCustomEq(ctx, low, high)
	},
	CmdSetNightMode: func(ctx context.Context, c *Client, p Params) error {
		on, err := p.Bool("enabled")
		if err != nil {
			return err
		}
		return c.SetNightMode(ctx, on)
	},
	CmdReboot:   func(ctx context.Context, c *Client, _ Params) error { return c.Reboot(ctx) },
	CmdPowerOff: func(ctx context.Context, c *Client, _ Params) error { return c.PowerOff(ctx) },
}

// Commands lists every command name Execute understands, sorted.
func Commands() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named command with params. Unknown commands and bad
// parameters fail with a ValidationError before any request is sent.
func (c *Client) Execute(ctx context.Context, command string, params Params) (Result, error) {
	handler, ok := handlers[command]
	if !ok {
		return Result{}, invalid("command", command, "unknown command")
	}
	if err := handler(ctx, c, params); err != nil {
		return Result{}, err
	}

	res := Result{Command: command}
	if command == CmdPowerOff {
		res.Warning = PowerOffWarning
	}
	return res, nil
}

// Int returns an integral parameter. JSON numbers arrive as float64;
// numeric strings are accepted too.
func (p Params) Int(key string) (int, error) {
	f, err := p.Float(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, invalid(key, p[key], "must be a whole number")
	}
	return int(f), nil
}

// Float returns a numeric parameter.
func (p Params) Float(key string) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, invalid(key, nil, "is required")
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, invalid(key, n, "must be a number")
		}
		return f, nil
	default:
		return 0, invalid(key, v, fmt.Sprintf("must be a number, got %T", v))
	}
}

// String returns a string parameter.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", invalid(key, nil, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key, v, "must be a string")
	}
	return s, nil
}

// Bool returns a boolean parameter. "on"/"off" and "true"/"false"
// strings are accepted.
func (p Params) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, invalid(key, nil, "is required")
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "on", "true":
			return true, nil
		case "off", "false":
			return false, nil
		}
	}
	return false, invalid(key, v, "must be a boolean")
}
