package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-devialet/internal/devialet"
)

// DefaultInterval matches the device.poll_interval default.
const DefaultInterval = 10 * time.Second

// Device is the part of *devialet.Client the coordinator drives.
type Device interface {
	Poll(ctx context.Context) (devialet.DeviceState, error)
	Info(ctx context.Context) (devialet.DeviceInfo, error)
	Execute(ctx context.Context, command string, params devialet.Params) (devialet.Result, error)
	OnCommand(fn func(command string))
}

// Logger is the logging surface the coordinator needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds coordinator settings.
type Config struct {
	// Interval between polls while healthy. Default: DefaultInterval.
	Interval time.Duration

	// RetryInterval between polls while in Backoff. Default: Interval.
	RetryInterval time.Duration

	// Metrics is optional.
	Metrics *Metrics

	// OnPoll, if set, is told the outcome and duration of every poll.
	OnPoll func(ok bool, elapsed time.Duration)

	// Logger is optional.
	Logger Logger
}

// Coordinator polls a Device and publishes state changes.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Subscriber and availability callbacks run on the polling goroutine
//     and must not call Refresh.
type Coordinator struct {
	device        Device
	interval      time.Duration
	retryInterval time.Duration
	metrics       *Metrics
	onPoll        func(ok bool, elapsed time.Duration)
	logger        Logger

	state    atomic.Pointer[devialet.DeviceState]
	phase    atomic.Int32
	failures atomic.Int64

	// available is only meaningful once availKnown is set; both change
	// under pollMu.
	available  atomic.Bool
	availKnown bool

	// pollMu serialises polls from the loop and from Refresh.
	pollMu sync.Mutex

	errMu   sync.RWMutex
	lastErr error

	subMu     sync.RWMutex
	nextSubID uint64
	subs      map[uint64]func(devialet.DeviceState)
	availSubs map[uint64]func(available bool, err error)

	refresh chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Coordinator for device and registers itself as the
// device's command hook, so every successful command schedules a refresh.
func New(device Device, cfg Config) *Coordinator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = interval
	}

	c := &Coordinator{
		device:        device,
		interval:      interval,
		retryInterval: retry,
		metrics:       cfg.Metrics,
		onPoll:        cfg.OnPoll,
		logger:        cfg.Logger,
		subs:          make(map[uint64]func(devialet.DeviceState)),
		availSubs:     make(map[uint64]func(bool, error)),
		refresh:       make(chan struct{}, 1),
	}
	device.OnCommand(func(string) { c.RequestRefresh() })
	return c
}

// Start launches the polling loop. The first poll happens immediately.
// Calling Start on a running coordinator does nothing.
func (c *Coordinator) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop ends the polling loop and waits for an in-flight poll to return.
// Safe to call multiple times.
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.runMu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()

	_ = c.Refresh(ctx) //nolint:errcheck // failures are tracked in the Backoff phase

	timer := time.NewTimer(c.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-c.refresh:
			timer.Stop()
		}

		_ = c.Refresh(ctx) //nolint:errcheck // failures are tracked in the Backoff phase
		timer.Reset(c.nextDelay())
	}
}

func (c *Coordinator) nextDelay() time.Duration {
	if c.Phase() == PhaseBackoff {
		return c.retryInterval
	}
	return c.interval
}

// RequestRefresh asks the loop to poll as soon as possible. Requests made
// while one is already pending are merged into it.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Refresh polls the device once, synchronously.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	c.setPhase(PhasePolling)
	start := time.Now()
	state, err := c.device.Poll(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// Shutting down; keep the previous phase meaningful.
			c.setPhase(c.phaseAfterCancel())
			return err
		}
		c.pollFailed(err, elapsed)
		return err
	}

	c.pollSucceeded(state, elapsed)
	return nil
}

func (c *Coordinator) phaseAfterCancel() Phase {
	if c.failures.Load() > 0 {
		return PhaseBackoff
	}
	return PhaseIdle
}

func (c *Coordinator) pollFailed(err error, elapsed time.Duration) {
	n := c.failures.Add(1)
	c.setLastError(err)
	c.setPhase(PhaseBackoff)
	c.metrics.observePoll(false, elapsed, n)
	if c.onPoll != nil {
		c.onPoll(false, elapsed)
	}

	if n == 1 {
		c.warn("device poll failed, entering backoff", "error", err, "retry_in", c.retryInterval)
	} else {
		c.debug("device poll failed", "error", err, "consecutive_failures", n)
	}
	c.setAvailable(false, err)
}

func (c *Coordinator) pollSucceeded(state devialet.DeviceState, elapsed time.Duration) {
	if prev := c.failures.Swap(0); prev > 0 {
		c.info("device reachable again", "failed_polls", prev)
	}
	c.setLastError(nil)
	c.setPhase(PhaseIdle)
	c.metrics.observePoll(true, elapsed, 0)
	if c.onPoll != nil {
		c.onPoll(true, elapsed)
	}

	old := c.state.Swap(&state)
	c.setAvailable(true, nil)

	if old != nil && old.Equal(state) {
		return
	}
	c.notify(state)
}

func (c *Coordinator) setPhase(p Phase) {
	c.phase.Store(int32(p))
	c.metrics.setPhase(p)
}

func (c *Coordinator) setLastError(err error) {
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
}

// setAvailable records availability and notifies listeners on transitions.
// Called with pollMu held.
func (c *Coordinator) setAvailable(available bool, err error) {
	if c.availKnown && c.available.Load() == available {
		return
	}
	c.availKnown = true
	c.available.Store(available)

	c.subMu.RLock()
	fns := make([]func(bool, error), 0, len(c.availSubs))
	for _, fn := range c.availSubs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(available, err)
	}
}

func (c *Coordinator) notify(state devialet.DeviceState) {
	c.subMu.RLock()
	fns := make([]func(devialet.DeviceState), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Subscribe registers fn to receive every changed state. The returned
// function removes the subscription.
func (c *Coordinator) Subscribe(fn func(devialet.DeviceState)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// OnAvailability registers fn to run whenever the device becomes
// reachable or unreachable. err is the poll error when available is false.
func (c *Coordinator) OnAvailability(fn func(available bool, err error)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.availSubs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.availSubs, id)
		c.subMu.Unlock()
	}
}

// State returns the last successfully polled state and whether one exists.
func (c *Coordinator) State() (devialet.DeviceState, bool) {
	s := c.state.Load()
	if s == nil {
		return devialet.DeviceState{}, false
	}
	return *s, true
}

// Info returns the device identity through the client's cache.
func (c *Coordinator) Info(ctx context.Context) (devialet.DeviceInfo, error) {
	return c.device.Info(ctx)
}

// Execute runs a named command on the device. A successful command
// schedules a refresh through the device's command hook.
func (c *Coordinator) Execute(ctx context.Context, command string, params devialet.Params) (devialet.Result, error) {
	return c.device.Execute(ctx, command, params)
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Available reports whether the last poll succeeded.
func (c *Coordinator) Available() bool {
	return c.available.Load()
}

// ConsecutiveFailures returns the number of polls that failed in a row.
func (c *Coordinator) ConsecutiveFailures() int {
	return int(c.failures.Load())
}

// LastError returns the most recent poll error, or nil after a success.
func (c *Coordinator) LastError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

func (c *Coordinator) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Coordinator) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Coordinator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
