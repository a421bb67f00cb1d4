package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mobile-next/doubletap/commands"
	"github.com/mobile-next/doubletap/types"
	"github.com/mobile-next/doubletap/utils"
)

type wsConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	subMu         sync.Mutex
	subscriptions map[string]func()
}

func newUpgrader(enableCORS bool) *websocket.Upgrader {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	if enableCORS {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	} else {
		upgrader.CheckOrigin = isSameOrigin
	}

	return &upgrader
}

// NewWebSocketHandler serves JSON-RPC over WebSocket, including
// session_subscribe notifications
func NewWebSocketHandler(enableCORS bool) http.Handler {
	upgrader := newUpgrader(enableCORS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, upgrader)
	})
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	wsConn := &wsConnection{
		conn:          conn,
		subscriptions: make(map[string]func()),
	}
	defer wsConn.unsubscribeAll()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			// connection closed or error
			utils.Verbose("WebSocket connection closed: %v", err)
			break
		}

		if messageType != websocket.TextMessage {
			_ = wsConn.sendError(nil, ErrCodeInvalidRequest, errTitleInvalidReq, errMsgTextOnly)
			continue
		}

		handleWSMessage(wsConn, message)
	}
}

func isSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return originURL.Host == r.Host
}

func handleWSMessage(wsConn *wsConnection, message []byte) {
	var req JSONRPCRequest
	if err := json.Unmarshal(message, &req); err != nil {
		_ = wsConn.sendError(nil, ErrCodeParseError, errTitleParseError, errMsgParseError)
		return
	}

	if rpcErr := validateJSONRPCRequest(req); rpcErr != nil {
		id := req.ID
		if rpcErr.data == errMsgIDRequired {
			id = nil
		}
		_ = wsConn.sendError(id, rpcErr.code, rpcErr.message, rpcErr.data)
		return
	}

	utils.Info("WebSocket Request ID: %v, Method: %s, Params: %s", req.ID, req.Method, string(req.Params))

	switch req.Method {
	case methodSessionSubscribe:
		wsConn.handleSubscribe(req)
	case methodSessionUnsubscribe:
		wsConn.handleUnsubscribe(req)
	default:
		handleWSMethodCall(wsConn, req)
	}
}

func handleWSMethodCall(wsConn *wsConnection, req JSONRPCRequest) {
	registry := GetMethodRegistry()
	handler, exists := registry[req.Method]
	if !exists {
		_ = wsConn.sendError(req.ID, ErrCodeMethodNotFound, errTitleMethodNotFnd, req.Method+" not found")
		return
	}

	result, err := handler(req.Params)
	if err != nil {
		utils.Error("Error executing method %s: %v", req.Method, err)
		_ = wsConn.sendError(req.ID, ErrCodeServerError, errTitleServerError, err.Error())
		return
	}

	_ = wsConn.sendResponse(req.ID, result)
}

// handleSubscribe streams tap.classified notifications for a session to
// this connection until it unsubscribes or disconnects
func (wsc *wsConnection) handleSubscribe(req JSONRPCRequest) {
	p, err := parseSessionParams(req.Params)
	if err != nil {
		_ = wsc.sendError(req.ID, ErrCodeInvalidParams, "Invalid params", err.Error())
		return
	}

	session, err := commands.FindSession(p.SessionID)
	if err != nil {
		_ = wsc.sendError(req.ID, ErrCodeServerError, errTitleServerError, err.Error())
		return
	}

	wsc.subMu.Lock()
	if _, exists := wsc.subscriptions[p.SessionID]; !exists {
		wsc.subscriptions[p.SessionID] = session.Subscribe(func(outcome types.Outcome) {
			err := wsc.sendJSON(JSONRPCNotification{
				JSONRPC: "2.0",
				Method:  notificationClassified,
				Params:  outcome,
			})
			if err != nil {
				utils.Verbose("Failed to push outcome to WebSocket: %v", err)
			}
		})
	}
	wsc.subMu.Unlock()

	_ = wsc.sendResponse(req.ID, okResponse)
}

func (wsc *wsConnection) handleUnsubscribe(req JSONRPCRequest) {
	p, err := parseSessionParams(req.Params)
	if err != nil {
		_ = wsc.sendError(req.ID, ErrCodeInvalidParams, "Invalid params", err.Error())
		return
	}

	wsc.subMu.Lock()
	if cancel, exists := wsc.subscriptions[p.SessionID]; exists {
		cancel()
		delete(wsc.subscriptions, p.SessionID)
	}
	wsc.subMu.Unlock()

	_ = wsc.sendResponse(req.ID, okResponse)
}

func (wsc *wsConnection) unsubscribeAll() {
	wsc.subMu.Lock()
	defer wsc.subMu.Unlock()

	for id, cancel := range wsc.subscriptions {
		cancel()
		delete(wsc.subscriptions, id)
	}
}

func (wsc *wsConnection) sendResponse(id interface{}, result interface{}) error {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return wsc.sendJSON(response)
}

func (wsc *wsConnection) sendError(id interface{}, code int, message string, data interface{}) error {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}
	return wsc.sendJSON(response)
}

func (wsc *wsConnection) sendJSON(v interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(v)
}
