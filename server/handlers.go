package server

import (
	"encoding/json"
	"fmt"

	"github.com/mobile-next/doubletap/commands"
)

type SessionCreateParams struct {
	ThresholdMs     int   `json:"thresholdMs,omitempty"`
	DoubleTap       *bool `json:"doubleTap,omitempty"`
	SingleTap       *bool `json:"singleTap,omitempty"`
	SuppressDefault *bool `json:"suppressDefault,omitempty"`
}

type SessionParams struct {
	SessionID string `json:"sessionId"`
}

type SessionEventsParams struct {
	SessionID string `json:"sessionId"`
	Drain     bool   `json:"drain,omitempty"`
}

type IoTapParams struct {
	SessionID string `json:"sessionId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

func responseError(response *commands.CommandResponse) error {
	if response.Status == "error" {
		return fmt.Errorf("%s", response.Error)
	}
	return nil
}

func handleSessionCreate(params json.RawMessage) (interface{}, error) {
	var p SessionCreateParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid parameters: %v. Expected fields: thresholdMs, doubleTap, singleTap, suppressDefault", err)
		}
	}

	response := commands.SessionCreateCommand(commands.SessionCreateRequest{
		ThresholdMs:     p.ThresholdMs,
		DoubleTap:       p.DoubleTap,
		SingleTap:       p.SingleTap,
		SuppressDefault: p.SuppressDefault,
	})
	if err := responseError(response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func parseSessionParams(params json.RawMessage) (SessionParams, error) {
	var p SessionParams
	if len(params) == 0 {
		return p, fmt.Errorf("'params' is required with fields: sessionId")
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, fmt.Errorf("invalid parameters: %v. Expected fields: sessionId", err)
	}
	if p.SessionID == "" {
		return p, fmt.Errorf("'sessionId' is required")
	}
	return p, nil
}

func handleSessionEvents(params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("'params' is required with fields: sessionId")
	}

	var p SessionEventsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %v. Expected fields: sessionId, drain", err)
	}

	response := commands.SessionEventsCommand(commands.SessionEventsRequest{
		SessionID: p.SessionID,
		Drain:     p.Drain,
	})
	if err := responseError(response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func handleSessionClose(params json.RawMessage) (interface{}, error) {
	p, err := parseSessionParams(params)
	if err != nil {
		return nil, err
	}

	response := commands.SessionCloseCommand(commands.SessionCloseRequest{SessionID: p.SessionID})
	if err := responseError(response); err != nil {
		return nil, err
	}
	return okResponse, nil
}

func handleSessionList(params json.RawMessage) (interface{}, error) {
	response := commands.SessionListCommand()
	if err := responseError(response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func handleIoTap(params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("'params' is required with fields: sessionId, x, y")
	}

	var p IoTapParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid parameters: %v. Expected fields: sessionId, x, y", err)
	}

	response := commands.TapCommand(commands.TapRequest{
		SessionID: p.SessionID,
		X:         p.X,
		Y:         p.Y,
	})
	if err := responseError(response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func handleClassify(params json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("'params' is required with fields: taps")
	}

	var req commands.ClassifyRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid parameters: %v. Expected fields: taps, thresholdMs, singleTap, doubleTap, suppressDefault", err)
	}

	response := commands.ClassifyCommand(req)
	if err := responseError(response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

func handleServerShutdown(params json.RawMessage) (interface{}, error) {
	requestShutdown()
	return okResponse, nil
}
