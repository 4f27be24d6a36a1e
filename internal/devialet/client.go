package devialet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultInfoTTL is how long DeviceInfo and the source list are reused.
const DefaultInfoTTL = time.Hour

const cacheKey = "current"

// powerTracking values. A successful PowerOff arms tracking; the first
// connection failure after that marks the device dark; the first
// successful poll while dark clears it. Polls that succeed while armed
// leave it armed, since the speaker keeps answering while it shuts down.
const (
	powerOn int32 = iota
	powerOffArmed
	powerOffDark
)

// Logger is the logging surface the client needs. *logging.Logger and
// *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Client.
type Options struct {
	// Host is the device address, optionally with a port. Required.
	Host string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// InfoTTL controls DeviceInfo and source list caching.
	// Defaults to DefaultInfoTTL.
	InfoTTL time.Duration

	// HTTPClient overrides the pooled go-cleanhttp client.
	HTTPClient *http.Client

	// Logger is optional.
	Logger Logger
}

// Client talks to one Devialet speaker. It fetches and normalizes state
// (Poll), caches the device identity (Info), and carries the command
// operations in commands.go.
//
// Client never stores DeviceState; that is the coordinator's job.
// Commands report success through the OnCommand hook so the owner can
// schedule a refresh.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	transport *Transport
	host      string
	logger    Logger

	infoCache   *ttlcache.Cache[string, DeviceInfo]
	sourceCache *ttlcache.Cache[string, []Source]

	// power tracks a PowerOff through the device going dark and coming
	// back. See powerTracking.
	power atomic.Int32

	hookMu    sync.RWMutex
	onCommand func(command string)

	closeOnce sync.Once
}

// NewClient creates a Client. Call Close to stop the cache janitors.
func NewClient(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, errors.New("devialet: host is required")
	}
	ttl := opts.InfoTTL
	if ttl <= 0 {
		ttl = DefaultInfoTTL
	}

	c := &Client{
		transport: NewTransport(opts.Host, opts.Timeout, opts.HTTPClient),
		host:      opts.Host,
		logger:    opts.Logger,
		infoCache: ttlcache.New(
			ttlcache.WithTTL[string, DeviceInfo](ttl),
		),
		sourceCache: ttlcache.New(
			ttlcache.WithTTL[string, []Source](ttl),
		),
	}
	go c.infoCache.Start()
	go c.sourceCache.Start()

	return c, nil
}

// Close stops background cache expiry. The client must not be used after.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.infoCache.Stop()
		c.sourceCache.Stop()
	})
}

// Host returns the configured device address.
func (c *Client) Host() string {
	return c.host
}

// OnCommand registers fn to run after every successful command, with the
// command name. It replaces any earlier hook.
func (c *Client) OnCommand(fn func(command string)) {
	c.hookMu.Lock()
	c.onCommand = fn
	c.hookMu.Unlock()
}

func (c *Client) commandSucceeded(command string) {
	c.hookMu.RLock()
	fn := c.onCommand
	c.hookMu.RUnlock()
	if fn != nil {
		fn(command)
	}
}

// Info returns the cached DeviceInfo, fetching it when absent or expired.
func (c *Client) Info(ctx context.Context) (DeviceInfo, error) {
	if item := c.infoCache.Get(cacheKey); item != nil {
		return item.Value(), nil
	}
	return c.RefreshInfo(ctx)
}

// RefreshInfo fetches DeviceInfo from the device and replaces the cached copy.
func (c *Client) RefreshInfo(ctx context.Context) (DeviceInfo, error) {
	var dev RawDevice
	if err := c.transport.Get(ctx, pathDevice, &dev); err != nil {
		return DeviceInfo{}, fmt.Errorf("fetching device info: %w", err)
	}

	var sys *RawSystem
	var body RawSystem
	switch err := c.transport.Get(ctx, pathSystem, &body); {
	case err == nil:
		sys = &body
	case errors.Is(err, ErrDevice):
		c.debug("system info unavailable, no optional features", "error", err)
	default:
		return DeviceInfo{}, fmt.Errorf("fetching system info: %w", err)
	}

	info := NewDeviceInfo(dev, sys, c.host)
	c.infoCache.Set(cacheKey, info, ttlcache.DefaultTTL)
	return info, nil
}

// Sources returns the selectable inputs, cached like Info.
func (c *Client) Sources(ctx context.Context) ([]Source, error) {
	if item := c.sourceCache.Get(cacheKey); item != nil {
		return slices.Clone(item.Value()), nil
	}

	var raw RawSourceList
	if err := c.transport.Get(ctx, pathSources, &raw); err != nil {
		return nil, fmt.Errorf("fetching sources: %w", err)
	}
	sources := selectableSources(&raw)
	c.sourceCache.Set(cacheKey, sources, ttlcache.DefaultTTL)
	return slices.Clone(sources), nil
}

// InvalidateCaches drops cached DeviceInfo and sources.
func (c *Client) InvalidateCaches() {
	c.infoCache.DeleteAll()
	c.sourceCache.DeleteAll()
}

// Poll performs one full status fetch and returns the normalized state.
//
// System info and volume are required; the current source, equalizer,
// night mode and source list are optional and tolerated when the device
// rejects them. Any connection failure fails the poll. After a successful
// PowerOff, an unreachable device yields a PowerOff state instead of an
// error.
func (c *Client) Poll(ctx context.Context) (DeviceState, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return c.pollFailed(err)
	}

	var snap RawSnapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var sys RawSystem
		if err := c.transport.Get(gctx, pathSystem, &sys); err != nil {
			return fmt.Errorf("fetching system info: %w", err)
		}
		snap.System = &sys
		return nil
	})
	g.Go(func() error {
		var vol RawVolume
		if err := c.transport.Get(gctx, pathVolume, &vol); err != nil {
			return fmt.Errorf("fetching volume: %w", err)
		}
		snap.Volume = &vol
		return nil
	})
	g.Go(func() error {
		var src RawSourceState
		err := c.transport.Get(gctx, pathCurrentSource, &src)
		if err == nil {
			snap.Source = &src
		}
		return c.optional(err)
	})
	g.Go(func() error {
		var eq RawEqualizer
		err := c.transport.Get(gctx, pathEqualizer, &eq)
		if err == nil {
			snap.Equalizer = &eq
		}
		return c.optional(err)
	})
	if Supports(FeatureNightMode, info) {
		g.Go(func() error {
			var nm RawNightMode
			err := c.transport.Get(gctx, pathNightMode, &nm)
			if err == nil {
				snap.NightMode = &nm
			}
			return c.optional(err)
		})
	}
	g.Go(func() error {
		sources, err := c.Sources(gctx)
		if err == nil {
			list := RawSourceList{Sources: make([]RawSource, len(sources))}
			for i, s := range sources {
				list.Sources[i] = RawSource{SourceID: s.ID, Type: s.Type}
			}
			snap.Sources = &list
		}
		return c.optional(err)
	})

	if err := g.Wait(); err != nil {
		return c.pollFailed(err)
	}

	if c.power.CompareAndSwap(powerOffDark, powerOn) {
		c.debug("device answering again after power off", "host", c.host)
	}
	return Normalize(snap), nil
}

func (c *Client) pollFailed(err error) (DeviceState, error) {
	if c.power.Load() != powerOn && errors.Is(err, ErrConnection) {
		c.power.CompareAndSwap(powerOffArmed, powerOffDark)
		return Normalize(RawSnapshot{PoweredOff: true}), nil
	}
	return DeviceState{}, err
}

// optional swallows device-side rejections of non-essential reads.
func (c *Client) optional(err error) error {
	if err != nil && errors.Is(err, ErrDevice) {
		c.debug("optional read rejected", "error", err)
		return nil
	}
	return err
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
