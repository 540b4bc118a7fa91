// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package keys

import (
	"fmt"
	"strings"
)

// ExistenceProbePolicy decides what Create does when the existence check
// itself fails. Either way the store's uniqueness constraint rejects a
// duplicate insert.
type ExistenceProbePolicy int

const (
	// ProbeLenient treats the key pair as absent, logs a warning and goes on.
	ProbeLenient ExistenceProbePolicy = iota
	// ProbeStrict fails Create with a persistence error.
	ProbeStrict
)

func (p ExistenceProbePolicy) String() string {
	if p == ProbeStrict {
		return "strict"
	}
	return "lenient"
}

// ParseExistenceProbePolicy parses "lenient" or "strict". Empty means lenient.
func ParseExistenceProbePolicy(s string) (ExistenceProbePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return ProbeLenient, nil
	case "strict":
		return ProbeStrict, nil
	default:
		return ProbeLenient, fmt.Errorf("unknown existence probe policy %q", s)
	}
}
