package server

import (
	"encoding/json"
	"fmt"
)

// method names served over JSON-RPC
const (
	methodSessionCreate      = "session_create"
	methodSessionEvents      = "session_events"
	methodSessionClose       = "session_close"
	methodSessionList        = "session_list"
	methodSessionSubscribe   = "session_subscribe"
	methodSessionUnsubscribe = "session_unsubscribe"
	methodIoTap              = "io_tap"
	methodClassify           = "classify"
	MethodServerShutdown     = "server.shutdown"

	notificationClassified = "tap.classified"
)

// HandlerFunc is the signature for JSON-RPC method handlers
type HandlerFunc func(params json.RawMessage) (interface{}, error)

// GetMethodRegistry returns a map of method names to handler functions
// This is used by both the HTTP server and embedded clients
func GetMethodRegistry() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		methodSessionCreate:  handleSessionCreate,
		methodSessionEvents:  handleSessionEvents,
		methodSessionClose:   handleSessionClose,
		methodSessionList:    handleSessionList,
		methodIoTap:          handleIoTap,
		methodClassify:       handleClassify,
		MethodServerShutdown: handleServerShutdown,
	}
}

// Execute dispatches a method call using the registry
// This is the main entry point for embedded clients
func Execute(method string, params json.RawMessage) (interface{}, error) {
	registry := GetMethodRegistry()

	handler, exists := registry[method]
	if !exists {
		return nil, fmt.Errorf("method not found: %s", method)
	}

	return handler(params)
}
