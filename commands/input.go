package commands

import (
	"fmt"
)

// TapRequest represents the parameters for a tap command
type TapRequest struct {
	SessionID string `json:"sessionId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// TapCommand registers a tap on the specified session
func TapCommand(req TapRequest) *CommandResponse {
	if req.X < 0 || req.Y < 0 {
		return NewErrorResponse(fmt.Errorf("x and y coordinates must be non-negative, got x=%d, y=%d", req.X, req.Y))
	}

	session, err := FindSession(req.SessionID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding session: %w", err))
	}

	event := session.Tap(req.X, req.Y)

	return NewSuccessResponse(map[string]interface{}{
		"tap":     event,
		"pending": session.Info().Pending,
	})
}
