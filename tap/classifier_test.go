package tap

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobile-next/doubletap/utils"
)

type testEvent struct {
	name      string
	prevented int
}

func (e *testEvent) PreventDefault() {
	e.prevented++
}

type call struct {
	kind  string
	event interface{}
	at    time.Duration
}

type recorder struct {
	mu    sync.Mutex
	clock *ManualClock
	start time.Time
	calls []call
}

func newRecorder(clock *ManualClock) *recorder {
	return &recorder{clock: clock, start: clock.Now()}
}

func (r *recorder) record(kind string) Callback {
	return func(event interface{}) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call{kind: kind, event: event, at: r.clock.Now().Sub(r.start)})
	}
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func newTestClassifier(threshold time.Duration, singleTap bool) (*Classifier, *ManualClock, *recorder) {
	clock := NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := newRecorder(clock)
	cfg := Config{
		Threshold:   threshold,
		OnDoubleTap: rec.record("double"),
		Clock:       clock,
	}
	if singleTap {
		cfg.OnSingleTap = rec.record("single")
	}
	return New(cfg), clock, rec
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{OnDoubleTap: func(interface{}) {}})

	assert.Equal(t, DefaultThreshold, c.Threshold())
	assert.True(t, c.suppress, "default action suppression should default to true")
	assert.Equal(t, SystemClock, c.clock)
	assert.False(t, c.Inert())
}

func TestHandler_InertClassifierHasNoHandler(t *testing.T) {
	assert.Nil(t, New(Config{}).Handler())
	assert.Nil(t, New(Config{Threshold: 500 * time.Millisecond}).Handler())
	assert.NotNil(t, New(Config{OnDoubleTap: func(interface{}) {}}).Handler())
}

func TestHandler_ChainsIntoAnotherClassifier(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var doubles []interface{}
	inner := New(Config{
		Clock:       clock,
		OnDoubleTap: func(e interface{}) { doubles = append(doubles, e) },
	})

	// a handler is usable directly as a callback of an outer classifier
	outer := New(Config{Clock: clock, OnDoubleTap: inner.Handler()})

	for i := 0; i < 4; i++ {
		outer.RegisterTap(i)
	}

	assert.Equal(t, []interface{}{3}, doubles, "two outer double taps make one inner double tap")
}

func TestScenarioA_DoubleTapWithinThreshold(t *testing.T) {
	c, clock, rec := newTestClassifier(300*time.Millisecond, false)

	first := &testEvent{name: "first"}
	second := &testEvent{name: "second"}

	c.RegisterTap(first)
	clock.Advance(100 * time.Millisecond)
	c.RegisterTap(second)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "double", rec.calls[0].kind)
	assert.Same(t, second, rec.calls[0].event)
	assert.Equal(t, 100*time.Millisecond, rec.calls[0].at)
	assert.False(t, c.Pending())
	assert.Equal(t, 0, clock.Pending(), "deadline timer should be cancelled")
}

func TestScenarioB_SingleTapAfterThreshold(t *testing.T) {
	c, clock, rec := newTestClassifier(300*time.Millisecond, true)

	first := &testEvent{name: "first"}
	c.RegisterTap(first)

	clock.Advance(299 * time.Millisecond)
	assert.Empty(t, rec.calls)

	clock.Advance(time.Millisecond)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "single", rec.calls[0].kind)
	assert.Same(t, first, rec.calls[0].event)
	assert.Equal(t, 300*time.Millisecond, rec.calls[0].at)

	clock.Advance(5 * time.Second)
	assert.Len(t, rec.calls, 1)
}

func TestScenarioC_ExpiredTapStartsFreshWindow(t *testing.T) {
	c, clock, rec := newTestClassifier(400*time.Millisecond, true)

	tap0 := &testEvent{name: "t0"}
	tap500 := &testEvent{name: "t500"}
	tap600 := &testEvent{name: "t600"}

	c.RegisterTap(tap0)
	clock.Advance(500 * time.Millisecond)
	c.RegisterTap(tap500)
	clock.Advance(100 * time.Millisecond)
	c.RegisterTap(tap600)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, call{kind: "single", event: tap0, at: 400 * time.Millisecond}, rec.calls[0])
	assert.Equal(t, call{kind: "double", event: tap600, at: 600 * time.Millisecond}, rec.calls[1])
}

func TestScenarioD_InertClassifierDoesNothing(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	singles := 0
	c := New(Config{
		OnSingleTap: func(interface{}) { singles++ },
		Clock:       clock,
	})

	for i := 0; i < 6; i++ {
		c.RegisterTap(&testEvent{})
	}
	clock.Advance(time.Minute)

	assert.Equal(t, 0, singles)
	assert.Equal(t, 0, clock.Created(), "inert classifier should never schedule a timer")
	assert.False(t, c.Pending())
}

func TestRegisterTap_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name       string
		gap        time.Duration
		wantDouble int
		wantSingle int
	}{
		{"just inside threshold", 299 * time.Millisecond, 1, 0},
		{"exactly at threshold", 300 * time.Millisecond, 0, 1},
		{"beyond threshold", 301 * time.Millisecond, 0, 1},
		{"immediate", 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock, rec := newTestClassifier(300*time.Millisecond, true)

			c.RegisterTap(&testEvent{})
			clock.Advance(tt.gap)
			c.RegisterTap(&testEvent{})

			assert.Equal(t, tt.wantDouble, rec.count("double"))
			assert.Equal(t, tt.wantSingle, rec.count("single"))
		})
	}
}

func TestRegisterTap_PairsConsecutiveTaps(t *testing.T) {
	c, _, rec := newTestClassifier(0, false)

	for i := 0; i < 6; i++ {
		c.RegisterTap(&testEvent{})
	}
	assert.Equal(t, 3, rec.count("double"))

	c.RegisterTap(&testEvent{})
	assert.Equal(t, 3, rec.count("double"))
	assert.True(t, c.Pending())

	c.RegisterTap(&testEvent{})
	assert.Equal(t, 4, rec.count("double"))
}

func TestRegisterTap_AtMostOneCallbackPerCall(t *testing.T) {
	c, clock, rec := newTestClassifier(300*time.Millisecond, true)

	gaps := []time.Duration{0, 50, 400, 10, 10, 700, 299, 300, 1}
	for _, gap := range gaps {
		before := len(rec.calls)
		clock.Advance(gap * time.Millisecond)
		afterTimers := len(rec.calls)
		c.RegisterTap(&testEvent{})
		assert.LessOrEqual(t, len(rec.calls)-afterTimers, 1)
		assert.LessOrEqual(t, afterTimers-before, 1)
	}
}

func TestRegisterTap_SuppressesDefaultActionOnDoubleTap(t *testing.T) {
	c, _, _ := newTestClassifier(300*time.Millisecond, false)

	first := &testEvent{}
	second := &testEvent{}
	c.RegisterTap(first)
	c.RegisterTap(second)

	assert.Equal(t, 0, first.prevented, "first tap's default action is left alone")
	assert.Equal(t, 1, second.prevented)
}

func TestRegisterTap_SuppressionDisabled(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	doubles := 0
	c := New(Config{
		OnDoubleTap:           func(interface{}) { doubles++ },
		SuppressDefaultAction: Bool(false),
		Clock:                 clock,
	})

	second := &testEvent{}
	c.RegisterTap(&testEvent{})
	c.RegisterTap(second)

	assert.Equal(t, 1, doubles)
	assert.Equal(t, 0, second.prevented)
}

func TestRegisterTap_AcceptsEventsWithoutDefaultAction(t *testing.T) {
	c, _, rec := newTestClassifier(300*time.Millisecond, false)

	c.RegisterTap("first")
	c.RegisterTap(42)
	c.RegisterTap(nil)
	c.RegisterTap(struct{}{})

	require.Len(t, rec.calls, 2)
	assert.Equal(t, 42, rec.calls[0].event)
	assert.Equal(t, struct{}{}, rec.calls[1].event)
}

func TestRegisterTap_FirstEventNotRetainedWithoutSingleTap(t *testing.T) {
	c, _, _ := newTestClassifier(300*time.Millisecond, false)

	c.RegisterTap(&testEvent{})

	require.NotNil(t, c.pending)
	assert.Nil(t, c.pending.first)
}

func TestRegisterTap_ExpiryWithoutSingleTapCallback(t *testing.T) {
	c, clock, rec := newTestClassifier(300*time.Millisecond, false)

	c.RegisterTap(&testEvent{})
	clock.Advance(time.Second)

	assert.Empty(t, rec.calls)
	assert.False(t, c.Pending())
}

func TestClose_CancelsPendingTimer(t *testing.T) {
	c, clock, rec := newTestClassifier(300*time.Millisecond, true)

	c.RegisterTap(&testEvent{})
	c.Close()
	clock.Advance(time.Second)

	assert.Empty(t, rec.calls)
	assert.Equal(t, 0, clock.Pending())

	// idempotent, and later taps are ignored
	c.Close()
	c.RegisterTap(&testEvent{})
	c.RegisterTap(&testEvent{})
	assert.Empty(t, rec.calls)
}

func TestExpire_StaleWindowIsIgnored(t *testing.T) {
	c, clock, rec := newTestClassifier(300*time.Millisecond, true)

	c.RegisterTap(&testEvent{})
	stale := c.pending
	c.RegisterTap(&testEvent{})

	// a runtime timer that was already firing when it got cancelled
	c.expire(stale)
	clock.Advance(time.Second)

	assert.Equal(t, 1, rec.count("double"))
	assert.Equal(t, 0, rec.count("single"))
}

func TestCallback_CanReenterRegisterTap(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var c *Classifier
	doubles := 0
	c = New(Config{
		Clock: clock,
		OnDoubleTap: func(interface{}) {
			doubles++
			if doubles == 1 {
				c.RegisterTap("reentrant")
			}
		},
	})

	c.RegisterTap("a")
	c.RegisterTap("b")

	assert.Equal(t, 1, doubles)
	assert.True(t, c.Pending(), "tap issued from the callback opens a new window")
}

func TestCallback_PanicDoesNotCorruptState(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{
		Clock:       clock,
		OnDoubleTap: func(interface{}) { panic("boom") },
	})

	c.RegisterTap("a")
	assert.Panics(t, func() { c.RegisterTap("b") })
	assert.False(t, c.Pending())
	assert.Equal(t, 0, clock.Pending())
}

func TestRegisterTap_SystemClock(t *testing.T) {
	singles := make(chan interface{}, 1)
	c := New(Config{
		Threshold:   20 * time.Millisecond,
		OnDoubleTap: func(interface{}) {},
		OnSingleTap: func(e interface{}) { singles <- e },
	})
	defer c.Close()

	c.RegisterTap("only")

	select {
	case e := <-singles:
		assert.Equal(t, "only", e)
	case <-time.After(2 * time.Second):
		t.Fatal("single tap was not reported")
	}
}

// captureClock hands scheduled functions to the test instead of running them.
type captureClock struct {
	mu  sync.Mutex
	fns []func()
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (c *captureClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, f)
	return noopTimer{}
}

func (c *captureClock) Now() time.Time { return time.Unix(0, 0) }

func (c *captureClock) last() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fns[len(c.fns)-1]
}

// gateWriter blocks the first log line containing match until released.
type gateWriter struct {
	match   string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gateWriter) Write(p []byte) (int, error) {
	if strings.Contains(string(p), g.match) {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return len(p), nil
}

func TestClose_WaitsForResolvingWindow(t *testing.T) {
	gate := &gateWriter{match: "single tap resolved", entered: make(chan struct{}), release: make(chan struct{})}
	utils.SetOutput(gate)
	utils.SetVerbose(true)
	defer func() {
		utils.SetVerbose(false)
		utils.SetOutput(os.Stderr)
	}()

	clock := &captureClock{}
	singles := make(chan interface{}, 1)
	c := New(Config{
		Clock:       clock,
		OnDoubleTap: func(interface{}) {},
		OnSingleTap: func(e interface{}) { singles <- e },
	})

	c.RegisterTap("first")

	// the timer fires and stalls after taking the window
	expired := make(chan struct{})
	go func() {
		clock.last()()
		close(expired)
	}()
	<-gate.entered
	assert.False(t, c.Pending())

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while the window was still resolving")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	<-expired
	<-closed

	assert.Empty(t, singles, "no single tap after Close")
}

func TestClose_WaitsForRunningCallback(t *testing.T) {
	clock := &captureClock{}
	started := make(chan struct{})
	release := make(chan struct{})
	c := New(Config{
		Clock:       clock,
		OnDoubleTap: func(interface{}) {},
		OnSingleTap: func(interface{}) {
			close(started)
			<-release
		},
	})

	c.RegisterTap("first")
	go clock.last()()
	<-started

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()

	assert.Never(t, func() bool {
		select {
		case <-closed:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the callback finished")
	}
}

func TestClose_FromCallbackDoesNotDeadlock(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var c *Classifier
	singles := 0
	doubles := 0
	c = New(Config{
		Clock: clock,
		OnSingleTap: func(interface{}) {
			singles++
			c.Close()
		},
		OnDoubleTap: func(interface{}) {
			doubles++
			c.Close()
		},
	})

	c.RegisterTap("a")
	clock.Advance(time.Second)
	assert.Equal(t, 1, singles)

	// closed from inside the callback, so nothing more is classified
	c.RegisterTap("b")
	c.RegisterTap("c")
	assert.Equal(t, 0, doubles)

	var d *Classifier
	d = New(Config{
		Clock: clock,
		OnDoubleTap: func(interface{}) {
			doubles++
			d.Close()
		},
	})
	d.RegisterTap("a")
	d.RegisterTap("b")
	assert.Equal(t, 1, doubles)
	assert.Equal(t, 0, clock.Pending())
}

func TestCallback_PanicReleasesClose(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	c := New(Config{
		Clock:       clock,
		OnDoubleTap: func(interface{}) { panic("boom") },
	})

	c.RegisterTap("a")
	assert.Panics(t, func() { c.RegisterTap("b") })

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a callback that panicked")
	}
}
