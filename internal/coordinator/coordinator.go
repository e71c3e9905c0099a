package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// UpdateFunc fetches a complete snapshot from the vendor.
type UpdateFunc[T any] func(ctx context.Context) (T, error)

// Options configures a Coordinator.
type Options[T any] struct {
	// Name identifies the coordinator in logs and errors.
	Name string

	// Interval between scheduled refreshes.
	Interval time.Duration

	// Timeout bounds every call to Update.
	Timeout time.Duration

	Update UpdateFunc[T]
	Logger Logger
}

// Snapshot is the state published by one refresh.
type Snapshot[T any] struct {
	// Data is the last successfully fetched snapshot. It survives failures.
	Data T

	// Valid reports whether any refresh has ever succeeded.
	Valid bool

	// Success reports whether the most recent refresh succeeded.
	Success bool

	// Err is the error of the most recent refresh, nil on success.
	Err error

	// Time is when the most recent refresh finished.
	Time time.Time
}

// Coordinator polls a vendor on an interval and publishes snapshots.
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	update   UpdateFunc[T]
	logger   Logger

	current atomic.Pointer[Snapshot[T]]
	group   singleflight.Group

	// life is cancelled by Shutdown and aborts in-flight updates.
	life     context.Context
	shutdown context.CancelFunc

	mu         sync.Mutex
	listeners  map[int]func()
	nextID     int
	stopPoll   context.CancelFunc
	pollDone   chan struct{}
	isShutdown bool
}

// New creates a coordinator. Nothing runs until a listener is added or a
// refresh is requested.
func New[T any](opts Options[T]) *Coordinator[T] {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	life, cancel := context.WithCancel(context.Background())
	c := &Coordinator[T]{
		name:      opts.Name,
		interval:  opts.Interval,
		timeout:   opts.Timeout,
		update:    opts.Update,
		logger:    logger,
		life:      life,
		shutdown:  cancel,
		listeners: make(map[int]func()),
	}
	c.current.Store(&Snapshot[T]{})
	return c
}

// Name returns the coordinator name.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Snapshot returns the current published state. Data and Success come from
// the same atomic read.
func (c *Coordinator[T]) Snapshot() Snapshot[T] {
	return *c.current.Load()
}

// Data returns the last good snapshot and whether one exists.
func (c *Coordinator[T]) Data() (T, bool) {
	s := c.current.Load()
	return s.Data, s.Valid
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	return c.current.Load().Success
}

// LastError returns the error of the most recent refresh.
func (c *Coordinator[T]) LastError() error {
	return c.current.Load().Err
}

// LastUpdate returns when the most recent refresh finished.
func (c *Coordinator[T]) LastUpdate() time.Time {
	return c.current.Load().Time
}

// Refresh fetches a new snapshot now. Concurrent calls share one fetch.
// A failure returns an error wrapping ErrUpdateFailed and leaves the
// previous snapshot published.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUpdateFailed, c.name, err)
	}
	return nil
}

// FirstRefresh performs the initial fetch during entry setup. A failure
// returns an error wrapping ErrNotReady.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotReady, c.name, err)
	}
	return nil
}

// refresh joins the shared fetch. The fetch is detached from ctx so one
// caller giving up does not fail it for the others; it is bounded by the
// timeout and Shutdown only.
func (c *Coordinator[T]) refresh(ctx context.Context) error {
	ch := c.group.DoChan("refresh", func() (any, error) {
		return nil, c.fetchAndPublish(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator[T]) fetchAndPublish(ctx context.Context) error {
	if c.update == nil {
		return errors.New("no update function")
	}

	updateCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(c.life, cancel)
	defer stop()

	start := time.Now()
	data, err := c.update(updateCtx)
	if err == nil && updateCtx.Err() != nil {
		err = updateCtx.Err()
	}
	if errors.Is(err, context.Canceled) && c.life.Err() != nil {
		// Shut down mid-poll: the vendor did not fail, publish nothing.
		c.logger.Debug("fetch abandoned on shutdown", "coordinator", c.name)
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timeout fetching %s data after %v: %w", c.name, c.timeout, err)
	}

	prev := c.current.Load()
	next := &Snapshot[T]{Time: time.Now()}
	if err != nil {
		next.Data, next.Valid = prev.Data, prev.Valid
		next.Err = err
		if prev.Success || !prev.Valid {
			c.logger.Warn("error fetching data", "coordinator", c.name, "error", err)
		}
	} else {
		next.Data, next.Valid, next.Success = data, true, true
		if prev.Valid && !prev.Success {
			c.logger.Info("fetching data recovered", "coordinator", c.name)
		}
		c.logger.Debug("finished fetching data", "coordinator", c.name, "duration", time.Since(start))
	}
	c.current.Store(next)

	c.notify()
	return err
}

func (c *Coordinator[T]) notify() {
	c.mu.Lock()
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// AddListener registers fn to be called after every refresh. The first
// listener starts interval polling; removing the last stops it.
func (c *Coordinator[T]) AddListener(fn func()) (remove func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	if len(c.listeners) == 1 && !c.isShutdown {
		c.startPollingLocked()
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.removeListener(id) })
	}
}

func (c *Coordinator[T]) removeListener(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.listeners, id)
	if len(c.listeners) == 0 {
		// Not waiting here: a listener may remove itself from the poll goroutine.
		c.stopPollingLocked()
	}
}

// Polling reports whether interval polling is running.
func (c *Coordinator[T]) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopPoll != nil
}

func (c *Coordinator[T]) startPollingLocked() {
	if c.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(c.life)
	done := make(chan struct{})
	c.stopPoll = cancel
	c.pollDone = done
	go c.poll(ctx, done)
}

func (c *Coordinator[T]) stopPollingLocked() chan struct{} {
	if c.stopPoll == nil {
		return nil
	}
	c.stopPoll()
	done := c.pollDone
	c.stopPoll = nil
	c.pollDone = nil
	return done
}

func (c *Coordinator[T]) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are logged by fetchAndPublish and retried next tick.
			_ = c.Refresh(ctx) //nolint:errcheck // Recorded in the published snapshot
		}
	}
}

// Shutdown stops polling and cancels any in-flight update.
func (c *Coordinator[T]) Shutdown() {
	c.mu.Lock()
	c.isShutdown = true
	done := c.stopPollingLocked()
	c.mu.Unlock()

	c.shutdown()
	if done != nil {
		<-done
	}
}
