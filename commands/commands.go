package commands

import (
	"fmt"
	"math"
	"sync"

	"github.com/mobile-next/doubletap/sessions"
)

// CommandResponse represents a standardized response format for all commands
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// MaxMillis is the largest millisecond value that fits in a time.Duration.
const MaxMillis = math.MaxInt64 / 1_000_000

// validateThresholdMs accepts 0 (use the default) up to MaxMillis.
func validateThresholdMs(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("thresholdMs must be positive, got %d", ms)
	}
	if ms > MaxMillis {
		return fmt.Errorf("thresholdMs %d is out of range, max is %d", ms, MaxMillis)
	}
	return nil
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

var (
	stateMu         sync.RWMutex
	sessionRegistry *sessions.Registry
	defaultOptions  = sessions.DefaultOptions()
)

// SetRegistry sets the session registry used by all session commands.
// This should be called once at application startup, before the server
// starts accepting requests.
func SetRegistry(registry *sessions.Registry) {
	stateMu.Lock()
	defer stateMu.Unlock()
	sessionRegistry = registry
}

// GetRegistry returns the current session registry, or nil if SetRegistry
// has not been called yet.
func GetRegistry() *sessions.Registry {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return sessionRegistry
}

// SetDefaults sets the options applied to fields a request leaves unset.
func SetDefaults(opts sessions.Options) {
	stateMu.Lock()
	defer stateMu.Unlock()
	defaultOptions = opts
}

// GetDefaults returns the options used for unset request fields.
func GetDefaults() sessions.Options {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return defaultOptions
}

func requireRegistry() (*sessions.Registry, error) {
	registry := GetRegistry()
	if registry == nil {
		return nil, fmt.Errorf("session registry is not initialized")
	}
	return registry, nil
}

// FindSession finds a live session by ID
func FindSession(sessionID string) (*sessions.Session, error) {
	registry, err := requireRegistry()
	if err != nil {
		return nil, err
	}
	return registry.Get(sessionID)
}
