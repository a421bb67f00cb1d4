package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mobile-next/doubletap/utils"
)

// Version is reported by the banner endpoint.
const Version = "dev"

const (
	// Parse error: Invalid JSON was received by the server
	ErrCodeParseError = -32700

	// Invalid Request: The JSON sent is not a valid Request object
	ErrCodeInvalidRequest = -32600

	// Method not found: The method does not exist / is not available
	ErrCodeMethodNotFound = -32601

	// Server error: Internal JSON-RPC error
	ErrCodeServerError = -32000

	// Invalid params: Invalid method parameters
	ErrCodeInvalidParams = -32602

	// Internal error: Internal JSON-RPC error
	ErrCodeInternalError = -32603
)

const (
	errTitleParseError    = "Parse error"
	errTitleInvalidReq    = "Invalid Request"
	errTitleMethodNotFnd  = "Method not found"
	errTitleMethodNotSupp = "Method not supported"
	errTitleServerError   = "Server error"

	errMsgParseError     = "expecting jsonrpc payload"
	errMsgInvalidJSONRPC = "'jsonrpc' must be '2.0'"
	errMsgIDRequired     = "'id' field is required"
	errMsgMethodRequired = "'method' is required"
	errMsgTextOnly       = "only text messages accepted for requests"
	errMsgSubscribeWS    = "session_subscribe is only supported over WebSocket, use the /ws endpoint"
)

// Server timeouts
const (
	ReadTimeout     = 10 * time.Second
	WriteTimeout    = 10 * time.Second
	IdleTimeout     = 120 * time.Second
	ShutdownTimeout = 5 * time.Second
)

var okResponse = map[string]interface{}{"status": "ok"}

type JSONRPCRequest struct {
	// these fields are all omitempty, so we can report back to client if they are missing
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// JSONRPCNotification is a server-initiated message without an id
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	code    int
	message string
	data    string
}

// validateJSONRPCRequest checks the envelope fields shared by HTTP and WebSocket requests
func validateJSONRPCRequest(req JSONRPCRequest) *rpcError {
	if req.JSONRPC != "2.0" {
		return &rpcError{code: ErrCodeInvalidRequest, message: errTitleInvalidReq, data: errMsgInvalidJSONRPC}
	}

	if req.ID == nil {
		return &rpcError{code: ErrCodeInvalidRequest, message: errTitleInvalidReq, data: errMsgIDRequired}
	}

	if req.Method == "" {
		return &rpcError{code: ErrCodeInvalidRequest, message: errTitleInvalidReq, data: errMsgMethodRequired}
	}

	return nil
}

// shutdownSignal is closed when a client sends server.shutdown
var (
	shutdownMu     sync.Mutex
	shutdownSignal = make(chan struct{})
)

func requestShutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()

	select {
	case <-shutdownSignal:
	default:
		close(shutdownSignal)
	}
}

func resetShutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	shutdownSignal = make(chan struct{})
}

func shutdownRequested() <-chan struct{} {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	return shutdownSignal
}

// corsMiddleware handles CORS preflight requests and adds CORS headers to responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewHandler builds the HTTP handler serving the banner, /rpc and /ws
func NewHandler(enableCORS bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", sendBanner)
	mux.HandleFunc("/rpc", handleJSONRPC)
	mux.Handle("/ws", NewWebSocketHandler(enableCORS))

	if enableCORS {
		return corsMiddleware(mux)
	}
	return mux
}

// normalizeListenAddr turns a bare port into ":port"
func normalizeListenAddr(addr string) (string, error) {
	// if host is missing, default to all interfaces
	if !strings.Contains(addr, ":") {
		port, err := strconv.Atoi(addr)
		if err != nil {
			return "", fmt.Errorf("invalid port: %v", err)
		}
		addr = fmt.Sprintf(":%d", port)
	}
	return addr, nil
}

// StartServer serves until the listener fails, the context is cancelled or a
// client sends server.shutdown. Hooks registered on shutdown run on exit.
func StartServer(ctx context.Context, addr string, enableCORS bool, shutdown *utils.ShutdownHook) error {
	addr, err := normalizeListenAddr(addr)
	if err != nil {
		return err
	}

	if err := utils.CheckListenAddr(addr); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      NewHandler(enableCORS),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	resetShutdown()

	errCh := make(chan error, 1)
	go func() {
		utils.Info("Starting server on http://%s...", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		utils.Info("Context cancelled, shutting down server")
	case <-shutdownRequested():
		utils.Info("Shutdown requested by client")
	}

	if err == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
	}

	if shutdown != nil {
		if hookErr := shutdown.Shutdown(); hookErr != nil {
			utils.Error("Shutdown hooks failed: %v", hookErr)
		}
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONRPCError(w, nil, ErrCodeParseError, errTitleParseError, errMsgParseError)
		return
	}

	if rpcErr := validateJSONRPCRequest(req); rpcErr != nil {
		id := req.ID
		if rpcErr.data == errMsgIDRequired {
			id = nil
		}
		sendJSONRPCError(w, id, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	utils.Info("Request ID: %v, Method: %s, Params: %s", req.ID, req.Method, string(req.Params))

	if req.Method == methodSessionSubscribe {
		sendJSONRPCError(w, req.ID, ErrCodeMethodNotFound, errTitleMethodNotSupp, errMsgSubscribeWS)
		return
	}

	handler, exists := GetMethodRegistry()[req.Method]
	if !exists {
		sendJSONRPCError(w, req.ID, ErrCodeMethodNotFound, errTitleMethodNotFnd, fmt.Sprintf("Method '%s' not found", req.Method))
		return
	}

	result, err := handler(req.Params)
	if err != nil {
		utils.Error("Error executing method %s: %v", req.Method, err)
		sendJSONRPCError(w, req.ID, ErrCodeServerError, errTitleServerError, err.Error())
		return
	}

	sendJSONRPCResponse(w, req.ID, result)
}

func sendJSONRPCResponse(w http.ResponseWriter, id interface{}, result interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"name":    "doubletap",
		"version": Version,
	})
}
