// Package tap classifies a stream of tap events into single and double taps
// using an elapsed-time threshold.
//
// A Classifier is either idle or pending. The first tap opens a pending
// window bounded by a deadline timer; a second tap before the deadline is a
// double tap, otherwise the window expires and, if configured, the first tap
// is reported as a single tap.
package tap

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/mobile-next/doubletap/utils"
)

// DefaultThreshold is the maximum gap between the two taps of a double tap
// when Config.Threshold is not set.
const DefaultThreshold = 300 * time.Millisecond

// Callback receives the event that produced a classification.
type Callback func(event interface{})

// Handler is what an integration layer attaches to a tap source. It has the
// same shape as Callback: a tap source hands its event to the classifier the
// way the classifier hands it on.
type Handler = Callback

// DefaultPreventer is implemented by events that carry a cancelable default
// action.
type DefaultPreventer interface {
	PreventDefault()
}

// Config controls a Classifier. It is copied by New and cannot be changed
// afterwards.
type Config struct {
	// Threshold defaults to DefaultThreshold when zero. Negative values are
	// not validated.
	Threshold time.Duration

	// OnDoubleTap receives the second tap's event. A nil OnDoubleTap makes
	// the classifier inert.
	OnDoubleTap Callback

	// OnSingleTap receives the first tap's event when the window expires.
	OnSingleTap Callback

	// SuppressDefaultAction defaults to true when nil.
	SuppressDefaultAction *bool

	// Clock defaults to SystemClock.
	Clock Clock
}

// Bool returns a pointer to v, for use with Config.SuppressDefaultAction.
func Bool(v bool) *bool {
	return &v
}

// Classifier turns taps into single and double tap callbacks.
type Classifier struct {
	threshold   time.Duration
	onDoubleTap Callback
	onSingleTap Callback
	suppress    bool
	clock       Clock

	mu      sync.Mutex
	pending *window
	closed  bool

	// callbacks running right now, in total and per goroutine; Close waits
	// on idle for those not started by its own goroutine
	inflight int
	firing   map[uint64]int
	idle     *sync.Cond
}

// window is the pending interval opened by a first tap.
type window struct {
	timer Timer
	first interface{}
}

// New creates a classifier from cfg.
func New(cfg Config) *Classifier {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	suppress := true
	if cfg.SuppressDefaultAction != nil {
		suppress = *cfg.SuppressDefaultAction
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}

	c := &Classifier{
		threshold:   threshold,
		onDoubleTap: cfg.OnDoubleTap,
		onSingleTap: cfg.OnSingleTap,
		suppress:    suppress,
		clock:       clock,
		firing:      make(map[uint64]int),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Threshold returns the effective double tap threshold.
func (c *Classifier) Threshold() time.Duration {
	return c.threshold
}

// Inert reports whether the classifier ignores every tap.
func (c *Classifier) Inert() bool {
	return c.onDoubleTap == nil
}

// Pending reports whether a first tap is waiting for its pair.
func (c *Classifier) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Handler returns RegisterTap as a Handler, or nil for an inert classifier
// so callers can leave the tap source unwired.
func (c *Classifier) Handler() Handler {
	if c.Inert() {
		return nil
	}
	return c.RegisterTap
}

// RegisterTap feeds one tap into the classifier. It invokes at most one
// callback, after the internal state transition has completed.
func (c *Classifier) RegisterTap(event interface{}) {
	if c.Inert() {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if w := c.pending; w != nil {
		c.pending = nil
		w.timer.Stop()
		gid := c.beginLocked()
		c.mu.Unlock()

		if c.suppress {
			if p, ok := event.(DefaultPreventer); ok {
				p.PreventDefault()
			}
		}

		utils.Verbose("double tap resolved")
		c.fire(gid, c.onDoubleTap, event)
		return
	}

	w := &window{}
	if c.onSingleTap != nil {
		w.first = event
	}
	// expire blocks on c.mu, so the window is fully installed before it can run
	w.timer = c.clock.AfterFunc(c.threshold, func() {
		c.expire(w)
	})
	c.pending = w
	c.mu.Unlock()
}

// expire resolves w if it is still the pending window.
func (c *Classifier) expire(w *window) {
	c.mu.Lock()
	if c.pending != w {
		// cancelled by a second tap or by Close
		c.mu.Unlock()
		return
	}
	c.pending = nil
	if c.onSingleTap == nil {
		c.mu.Unlock()
		return
	}
	first := w.first
	gid := c.beginLocked()
	c.mu.Unlock()

	utils.Verbose("single tap resolved after %v", c.threshold)
	c.fire(gid, c.onSingleTap, first)
}

// beginLocked records a callback about to run on the calling goroutine.
func (c *Classifier) beginLocked() uint64 {
	gid := goroutineID()
	c.inflight++
	c.firing[gid]++
	return gid
}

// fire runs cb unless the classifier was closed since the window resolved.
// The in-flight record is released even when cb panics.
func (c *Classifier) fire(gid uint64, cb Callback, event interface{}) {
	defer c.end(gid)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	cb(event)
}

func (c *Classifier) end(gid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inflight--
	if c.firing[gid]--; c.firing[gid] == 0 {
		delete(c.firing, gid)
	}
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
}

// Close cancels any pending window and waits for callbacks running on other
// goroutines to return. No callback fires after Close returns, and further
// taps are ignored. Close may be called from a callback and is idempotent.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.pending != nil {
		c.pending.timer.Stop()
		c.pending = nil
	}

	gid := goroutineID()
	for c.inflight-c.firing[gid] > 0 {
		c.idle.Wait()
	}
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}
