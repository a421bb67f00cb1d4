package utils

import (
	"fmt"
	"net"
)

// CheckListenAddr returns an error when addr (host:port) cannot be bound
// right now. Port 0 lets the OS pick, so it always passes.
func CheckListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if port == "0" {
		return nil
	}

	Verbose("Checking if %s is available", addr)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		Verbose("error: %v", err)
		return fmt.Errorf("port %s is already in use on %s", port, addr)
	}
	return listener.Close()
}
