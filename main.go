package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mobile-next/doubletap/cli"
	"github.com/mobile-next/doubletap/utils"
)

func main() {
	// sessions register their cleanup here once the config is loaded
	shutdown := utils.NewShutdownHook()
	cli.SetShutdownHook(shutdown)

	// setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// run command in goroutine
	done := make(chan error, 1)
	go func() {
		done <- cli.Execute()
	}()

	// wait for command completion or signal
	select {
	case <-sigChan:
		if err := shutdown.Shutdown(); err != nil {
			utils.Error("cleanup failed: %v", err)
		}
		os.Exit(0)
	case err := <-done:
		_ = shutdown.Shutdown()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
