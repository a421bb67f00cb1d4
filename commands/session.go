package commands

import (
	"fmt"
	"time"

	"github.com/mobile-next/doubletap/types"
)

// SessionCreateRequest represents the parameters for creating a classifier
// session. Nil fields fall back to the configured defaults.
type SessionCreateRequest struct {
	ThresholdMs     int   `json:"thresholdMs,omitempty"`
	DoubleTap       *bool `json:"doubleTap,omitempty"`
	SingleTap       *bool `json:"singleTap,omitempty"`
	SuppressDefault *bool `json:"suppressDefault,omitempty"`
}

// SessionEventsRequest represents the parameters for reading a session's outcomes
type SessionEventsRequest struct {
	SessionID string `json:"sessionId"`
	Drain     bool   `json:"drain,omitempty"`
}

// SessionCloseRequest represents the parameters for closing a session
type SessionCloseRequest struct {
	SessionID string `json:"sessionId"`
}

// SessionCreateCommand creates a new classifier session
func SessionCreateCommand(req SessionCreateRequest) *CommandResponse {
	if err := validateThresholdMs(int64(req.ThresholdMs)); err != nil {
		return NewErrorResponse(err)
	}

	registry, err := requireRegistry()
	if err != nil {
		return NewErrorResponse(err)
	}

	opts := GetDefaults()
	if req.ThresholdMs > 0 {
		opts.Threshold = time.Duration(req.ThresholdMs) * time.Millisecond
	}
	if req.DoubleTap != nil {
		opts.DoubleTap = *req.DoubleTap
	}
	if req.SingleTap != nil {
		opts.SingleTap = *req.SingleTap
	}
	if req.SuppressDefault != nil {
		opts.SuppressDefault = *req.SuppressDefault
	}

	session := registry.Create(opts)
	return NewSuccessResponse(session.Info())
}

// SessionEventsCommand returns the outcomes recorded by a session
func SessionEventsCommand(req SessionEventsRequest) *CommandResponse {
	session, err := FindSession(req.SessionID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding session: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"events": session.Events(req.Drain),
	})
}

// SessionCloseCommand closes a session and cancels its pending window
func SessionCloseCommand(req SessionCloseRequest) *CommandResponse {
	registry, err := requireRegistry()
	if err != nil {
		return NewErrorResponse(err)
	}

	if err := registry.Remove(req.SessionID); err != nil {
		return NewErrorResponse(fmt.Errorf("error closing session: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": fmt.Sprintf("Closed session %s", req.SessionID),
	})
}

// SessionListCommand lists all live sessions
func SessionListCommand() *CommandResponse {
	registry, err := requireRegistry()
	if err != nil {
		return NewErrorResponse(err)
	}

	list := registry.List()
	infos := make([]types.SessionInfo, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}

	return NewSuccessResponse(map[string]interface{}{
		"sessions": infos,
	})
}
