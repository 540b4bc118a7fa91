// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"strings"
)

// LegacyNoKeyName is the wire value older clients send when they do not want
// a key pair attached. It is only recognized by ParseKeyName.
const LegacyNoKeyName = "none"

// KeyName is the requested key pair of an allocation: either no key at all or
// a named key pair. The zero value is NoKey.
type KeyName struct {
	name  string
	named bool
}

// NoKey returns the "no key requested" variant.
func NoKey() KeyName { return KeyName{} }

// Named returns the variant requesting the key pair called name.
func Named(name string) KeyName { return KeyName{name: name, named: true} }

// ParseKeyName maps a raw request value onto a KeyName. Empty strings and the
// legacy sentinel map to NoKey; everything else is a named key.
func ParseKeyName(raw string) KeyName {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == LegacyNoKeyName {
		return NoKey()
	}
	return Named(raw)
}

// Name returns the key pair name and whether one was requested.
func (k KeyName) Name() (string, bool) { return k.name, k.named }

// IsNamed reports whether a key pair was requested.
func (k KeyName) IsNamed() bool { return k.named }

func (k KeyName) String() string {
	if !k.named {
		return "<no key>"
	}
	return k.name
}

// MarshalJSON encodes NoKey as null and a named key as its name.
func (k KeyName) MarshalJSON() ([]byte, error) {
	if !k.named {
		return []byte("null"), nil
	}
	return json.Marshal(k.name)
}

// UnmarshalJSON accepts null, a string, or the legacy sentinel.
func (k *KeyName) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*k = NoKey()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = ParseKeyName(s)
	return nil
}
