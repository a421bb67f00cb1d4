package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mobile-next/doubletap/tap"
	"github.com/mobile-next/doubletap/types"
	"github.com/mobile-next/doubletap/utils"
)

// maxOutcomes bounds the per-session outcome journal.
const maxOutcomes = 100

// Options configures a new session.
type Options struct {
	Threshold       time.Duration
	DoubleTap       bool
	SingleTap       bool
	SuppressDefault bool
	Clock           tap.Clock
}

// DefaultOptions matches a classifier built from an empty tap.Config with a
// double tap callback.
func DefaultOptions() Options {
	return Options{
		Threshold:       tap.DefaultThreshold,
		DoubleTap:       true,
		SuppressDefault: true,
	}
}

// Session owns one classifier and records what it reports.
type Session struct {
	ID        string
	CreatedAt time.Time

	opts       Options
	clock      tap.Clock
	classifier *tap.Classifier
	handler    tap.Handler

	mu          sync.Mutex
	taps        int
	outcomes    []types.Outcome
	subscribers map[int]func(types.Outcome)
	nextSub     int
}

// NewSession creates a session with its own classifier.
func NewSession(opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = tap.SystemClock
	}

	s := &Session{
		ID:          uuid.NewString(),
		CreatedAt:   clock.Now(),
		opts:        opts,
		clock:       clock,
		subscribers: make(map[int]func(types.Outcome)),
	}

	cfg := tap.Config{
		Threshold:             opts.Threshold,
		SuppressDefaultAction: tap.Bool(opts.SuppressDefault),
		Clock:                 clock,
	}
	if opts.DoubleTap {
		cfg.OnDoubleTap = s.emitter(types.KindDoubleTap)
	}
	if opts.SingleTap {
		cfg.OnSingleTap = s.emitter(types.KindSingleTap)
	}

	s.classifier = tap.New(cfg)
	s.handler = s.classifier.Handler()
	return s
}

// Tap delivers a tap at (x, y) to the classifier. The returned event
// reflects any default-action suppression done by a double tap.
func (s *Session) Tap(x, y int) types.TapEvent {
	event := &types.TapEvent{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		X:         x,
		Y:         y,
		Timestamp: s.clock.Now(),
	}

	s.mu.Lock()
	s.taps++
	s.mu.Unlock()

	// inert sessions have no handler attached
	if s.handler != nil {
		s.handler(event)
	}

	return *event
}

// Events returns recorded outcomes, oldest first. With drain set the
// journal is emptied.
func (s *Session) Events(drain bool) []types.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Outcome, len(s.outcomes))
	copy(out, s.outcomes)
	if drain {
		s.outcomes = nil
	}
	return out
}

// Subscribe registers fn to be called for every new outcome. The returned
// function removes the subscription.
func (s *Session) Subscribe(fn func(types.Outcome)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Info returns a snapshot of the session state.
func (s *Session) Info() types.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.SessionInfo{
		ID:              s.ID,
		ThresholdMs:     s.classifier.Threshold().Milliseconds(),
		SingleTap:       s.opts.SingleTap,
		SuppressDefault: s.opts.SuppressDefault,
		Inert:           s.classifier.Inert(),
		Pending:         s.classifier.Pending(),
		Taps:            s.taps,
		Outcomes:        len(s.outcomes),
		CreatedAt:       s.CreatedAt,
	}
}

// Close disposes the classifier and drops all subscribers.
func (s *Session) Close() {
	s.classifier.Close()

	s.mu.Lock()
	s.subscribers = make(map[int]func(types.Outcome))
	s.mu.Unlock()

	utils.Verbose("Closed session %s", s.ID)
}

func (s *Session) emitter(kind string) tap.Callback {
	return func(event interface{}) {
		te, ok := event.(*types.TapEvent)
		if !ok {
			return
		}

		outcome := types.Outcome{
			Kind:      kind,
			SessionID: s.ID,
			Tap:       *te,
			At:        s.clock.Now(),
		}

		s.mu.Lock()
		s.outcomes = append(s.outcomes, outcome)
		if len(s.outcomes) > maxOutcomes {
			s.outcomes = s.outcomes[len(s.outcomes)-maxOutcomes:]
		}
		subs := make([]func(types.Outcome), 0, len(s.subscribers))
		for _, fn := range s.subscribers {
			subs = append(subs, fn)
		}
		s.mu.Unlock()

		utils.Verbose("Session %s: %s tap %s", s.ID, kind, te.ID)
		for _, fn := range subs {
			fn(outcome)
		}
	}
}
