// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// keygate is the command line front end of the key pair manager and the
// admission gate.
package main

import (
	"os"

	"github.com/toeirei/keygate/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
