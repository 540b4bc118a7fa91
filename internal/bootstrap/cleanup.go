// Copyright (c) 2025 ToeiRei
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/toeirei/keygate/internal/logging"
)

var (
	// Resources closed on SIGINT/SIGTERM.
	activeClosers = make(map[io.Closer]struct{})
	closersMutex  sync.Mutex

	signalHandlerInstalled bool
	signalHandlerMutex     sync.Mutex

	exitFunc = os.Exit
)

// RegisterCloser adds c to the resources closed on shutdown.
func RegisterCloser(c io.Closer) {
	closersMutex.Lock()
	defer closersMutex.Unlock()
	activeClosers[c] = struct{}{}
}

// UnregisterCloser removes c and reports whether it was registered.
func UnregisterCloser(c io.Closer) bool {
	closersMutex.Lock()
	defer closersMutex.Unlock()
	if _, ok := activeClosers[c]; !ok {
		return false
	}
	delete(activeClosers, c)
	return true
}

// InstallSignalHandler closes all registered resources and exits on SIGINT
// or SIGTERM. Calling it more than once has no effect.
func InstallSignalHandler() {
	signalHandlerMutex.Lock()
	defer signalHandlerMutex.Unlock()
	if signalHandlerInstalled {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Warnf("received %s, shutting down", sig)
		_ = CloseAll()
		exitFunc(130)
	}()

	signalHandlerInstalled = true
}

// CloseAll closes every registered resource and returns the last error.
func CloseAll() error {
	closersMutex.Lock()
	defer closersMutex.Unlock()

	var lastError error
	for c := range activeClosers {
		if err := c.Close(); err != nil {
			logging.Errorf("close failed: %v", err)
			lastError = err
		}
	}
	activeClosers = make(map[io.Closer]struct{})
	return lastError
}
