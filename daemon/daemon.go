// Package daemon runs the doubletap server detached from the terminal and
// stops it again over JSON-RPC.
package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mobile-next/doubletap/server"
	"github.com/sevlyar/go-daemon"
)

const (
	// DaemonEnvVar is set to "1" in the environment of the detached child
	DaemonEnvVar = "DOUBLETAP_DAEMON_CHILD"

	shutdownRequestID = 1
	killTimeout       = 10 * time.Second
)

// Options control how the child is detached.
type Options struct {
	// LogFile receives the child's stdout and stderr. Empty discards them.
	LogFile string
}

// Daemonize re-executes the current command line as a detached child.
// The parent gets the child's process; in the child the process is nil.
func Daemonize(opts Options) (*os.Process, error) {
	ctx := &daemon.Context{
		LogFileName: opts.LogFile,
		LogFilePerm: 0o640,
		WorkDir:     "/",
		Umask:       0o27,
		Args:        os.Args,
		Env:         append(os.Environ(), DaemonEnvVar+"=1"),
	}

	child, err := ctx.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to daemonize: %w", err)
	}
	return child, nil
}

// IsChild reports whether this process is the detached child.
func IsChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// KillServer asks the server listening on addr to shut down.
func KillServer(addr string) error {
	base := serverURL(addr)

	body, err := json.Marshal(server.JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  server.MethodServerShutdown,
		ID:      shutdownRequestID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: killTimeout}
	resp, err := client.Post(base+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("server is not running on %s", base)
		}
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned error: %s", resp.Status)
	}

	var rpcResp server.JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("server refused shutdown: %v", rpcResp.Error)
	}
	return nil
}

// serverURL turns a listen address ("12000", ":12000", "host:port") into
// the base URL of the server.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimSuffix(addr, "/")
	}

	if _, err := strconv.Atoi(addr); err == nil {
		addr = ":" + addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
