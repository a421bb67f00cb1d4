package utils

import (
	"errors"
	"fmt"
	"sync"
)

// ShutdownHook collects cleanup functions run on SIGINT/SIGTERM or when the
// server receives server.shutdown.
type ShutdownHook struct {
	mu    sync.Mutex
	hooks []namedHook
	done  bool
}

type namedHook struct {
	name string
	fn   func() error
}

func NewShutdownHook() *ShutdownHook {
	return &ShutdownHook{}
}

// Register adds a cleanup function. Hooks run in reverse registration order,
// so a resource registered after its dependencies is torn down first.
// Registering after Shutdown runs the hook immediately.
func (s *ShutdownHook) Register(name string, cleanupFn func() error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		if err := cleanupFn(); err != nil {
			Error("Late shutdown hook %s failed: %v", name, err)
		}
		return
	}
	s.hooks = append(s.hooks, namedHook{name: name, fn: cleanupFn})
	s.mu.Unlock()

	Verbose("Registered shutdown hook: %s", name)
}

// Shutdown runs every hook once, continuing past failures, and returns the
// joined errors. Later calls are no-ops.
func (s *ShutdownHook) Shutdown() error {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.done = true
	s.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		Verbose("Running shutdown hook: %s", hook.name)
		if err := hook.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
		}
	}

	return errors.Join(errs...)
}

// Count returns the number of hooks still waiting to run.
func (s *ShutdownHook) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}
