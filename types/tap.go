package types

import "time"

// Outcome kinds reported by a session.
const (
	KindSingleTap = "single"
	KindDoubleTap = "double"
)

// TapEvent is one tap delivered to a classifier session.
type TapEvent struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	X                int       `json:"x"`
	Y                int       `json:"y"`
	Timestamp        time.Time `json:"timestamp"`
	DefaultPrevented bool      `json:"defaultPrevented"`
}

// PreventDefault marks the tap's default action as cancelled.
func (e *TapEvent) PreventDefault() {
	e.DefaultPrevented = true
}

// Outcome is a classification result. Tap is the tap that opened the window
// for single taps, and the second tap for double taps.
type Outcome struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"sessionId"`
	Tap       TapEvent  `json:"tap"`
	At        time.Time `json:"at"`
}

// SessionInfo summarizes a classifier session.
type SessionInfo struct {
	ID              string    `json:"id"`
	ThresholdMs     int64     `json:"thresholdMs"`
	SingleTap       bool      `json:"singleTap"`
	SuppressDefault bool      `json:"suppressDefault"`
	Inert           bool      `json:"inert"`
	Pending         bool      `json:"pending"`
	Taps            int       `json:"taps"`
	Outcomes        int       `json:"outcomes"`
	CreatedAt       time.Time `json:"createdAt"`
}
