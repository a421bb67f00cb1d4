package commands

import (
	"fmt"
	"time"

	"github.com/mobile-next/doubletap/tap"
	"github.com/mobile-next/doubletap/types"
)

// TimedTap is one tap of a recorded timeline, at milliseconds since the
// start of the recording.
type TimedTap struct {
	At int64 `json:"at"`
	X  int   `json:"x,omitempty"`
	Y  int   `json:"y,omitempty"`
}

// ClassifyRequest represents the parameters for classifying a tap timeline
// offline. Nil fields fall back to the configured defaults.
type ClassifyRequest struct {
	ThresholdMs     int        `json:"thresholdMs,omitempty"`
	DoubleTap       *bool      `json:"doubleTap,omitempty"`
	SingleTap       *bool      `json:"singleTap,omitempty"`
	SuppressDefault *bool      `json:"suppressDefault,omitempty"`
	Taps            []TimedTap `json:"taps"`
}

// ClassifiedTap is one outcome of a replayed timeline.
type ClassifiedTap struct {
	Kind             string `json:"kind"`
	Tap              int    `json:"tap"`
	TapAt            int64  `json:"tapAt"`
	At               int64  `json:"at"`
	X                int    `json:"x"`
	Y                int    `json:"y"`
	DefaultPrevented bool   `json:"defaultPrevented"`
}

// ClassifyResponse is the result of ClassifyCommand
type ClassifyResponse struct {
	ThresholdMs int64           `json:"thresholdMs"`
	Taps        int             `json:"taps"`
	Outcomes    []ClassifiedTap `json:"outcomes"`
}

// replayTap carries the timeline index through the classifier.
type replayTap struct {
	types.TapEvent
	index int
	at    int64
}

// ClassifyCommand replays a tap timeline through a classifier on a virtual
// clock and reports every outcome with the time it resolved at.
func ClassifyCommand(req ClassifyRequest) *CommandResponse {
	if err := validateThresholdMs(int64(req.ThresholdMs)); err != nil {
		return NewErrorResponse(err)
	}
	for i := range req.Taps {
		if req.Taps[i].At < 0 {
			return NewErrorResponse(fmt.Errorf("tap %d has negative time %dms", i, req.Taps[i].At))
		}
		if req.Taps[i].At > MaxMillis {
			return NewErrorResponse(fmt.Errorf("tap %d at %dms is out of range, max is %dms", i, req.Taps[i].At, MaxMillis))
		}
		if i > 0 && req.Taps[i].At < req.Taps[i-1].At {
			return NewErrorResponse(fmt.Errorf("taps must be ordered by time: tap %d at %dms comes before tap %d at %dms", i, req.Taps[i].At, i-1, req.Taps[i-1].At))
		}
	}

	opts := GetDefaults()
	threshold := opts.Threshold
	if req.ThresholdMs > 0 {
		threshold = time.Duration(req.ThresholdMs) * time.Millisecond
	}
	doubleTap := opts.DoubleTap
	if req.DoubleTap != nil {
		doubleTap = *req.DoubleTap
	}
	singleTap := opts.SingleTap
	if req.SingleTap != nil {
		singleTap = *req.SingleTap
	}
	suppress := opts.SuppressDefault
	if req.SuppressDefault != nil {
		suppress = *req.SuppressDefault
	}

	// the trailing window must resolve within range too
	if n := len(req.Taps); n > 0 && req.Taps[n-1].At > MaxMillis-threshold.Milliseconds() {
		return NewErrorResponse(fmt.Errorf("tap %d at %dms leaves no room for a %v window, max is %dms", n-1, req.Taps[n-1].At, threshold, MaxMillis-threshold.Milliseconds()))
	}

	start := time.Unix(0, 0).UTC()
	clock := tap.NewManualClock(start)
	outcomes := []ClassifiedTap{}

	record := func(kind string) tap.Callback {
		return func(event interface{}) {
			rt := event.(*replayTap)
			outcomes = append(outcomes, ClassifiedTap{
				Kind:             kind,
				Tap:              rt.index,
				TapAt:            rt.at,
				At:               clock.Now().Sub(start).Milliseconds(),
				X:                rt.X,
				Y:                rt.Y,
				DefaultPrevented: rt.DefaultPrevented,
			})
		}
	}

	cfg := tap.Config{
		Threshold:             threshold,
		SuppressDefaultAction: tap.Bool(suppress),
		Clock:                 clock,
	}
	if doubleTap {
		cfg.OnDoubleTap = record(types.KindDoubleTap)
	}
	if singleTap {
		cfg.OnSingleTap = record(types.KindSingleTap)
	}
	classifier := tap.New(cfg)
	defer classifier.Close()

	for i, t := range req.Taps {
		clock.AdvanceTo(start.Add(time.Duration(t.At) * time.Millisecond))
		classifier.RegisterTap(&replayTap{
			TapEvent: types.TapEvent{
				ID:        fmt.Sprintf("tap-%d", i),
				X:         t.X,
				Y:         t.Y,
				Timestamp: clock.Now(),
			},
			index: i,
			at:    t.At,
		})
	}

	// let a trailing window resolve
	clock.Advance(classifier.Threshold())

	return NewSuccessResponse(ClassifyResponse{
		ThresholdMs: classifier.Threshold().Milliseconds(),
		Taps:        len(req.Taps),
		Outcomes:    outcomes,
	})
}
