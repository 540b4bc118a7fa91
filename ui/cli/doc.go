// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface for keygate using Cobra.
// It loads configuration, wires the application through internal/bootstrap
// and provides commands that delegate to the key manager and the admission
// gate. CLI code should remain thin.
package cli
