// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for keygate.
//
// Usage:
//
//	go run . [flags]
//	./keygate [flags]
//
// See --help for options.
package main

import (
	"os"

	"github.com/toeirei/keygate/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}
