// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"strings"
)

// Platform is the OS family of the image being provisioned.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
)

// ParsePlatform normalizes a platform string. Empty input yields linux, the
// platform of images that do not declare one.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlatformLinux, nil
	case PlatformLinux, PlatformWindows:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// RequiresCredential reports whether instances of this platform cannot be
// logged into without a key pair. Windows needs one to decrypt the initial
// administrator password.
func (p Platform) RequiresCredential() bool {
	return p == PlatformWindows
}

// PlatformSet is a configurable set of credential-mandatory platforms.
type PlatformSet map[Platform]struct{}

// NewPlatformSet builds a set from names; unknown names are ignored.
func NewPlatformSet(names ...string) PlatformSet {
	s := PlatformSet{}
	for _, n := range names {
		if p, err := ParsePlatform(n); err == nil && n != "" {
			s[p] = struct{}{}
		}
	}
	return s
}

// Contains reports membership. A nil set falls back to
// Platform.RequiresCredential.
func (s PlatformSet) Contains(p Platform) bool {
	if s == nil {
		return p.RequiresCredential()
	}
	_, ok := s[p]
	return ok
}
