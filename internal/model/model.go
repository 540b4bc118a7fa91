// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures shared by the key
// lifecycle, admission and persistence layers.
package model // import "github.com/toeirei/keygate/internal/model"

import (
	"fmt"
	"time"
)

// Owner identifies the principal that owns a key pair: an account and a
// user within it. Key pair names are unique per Owner.
type Owner struct {
	Account string `json:"account"`
	User    string `json:"user"`
}

// String returns the account/user representation.
func (o Owner) String() string {
	return fmt.Sprintf("%s/%s", o.Account, o.User)
}

// IsZero reports whether neither account nor user is set.
func (o Owner) IsZero() bool {
	return o.Account == "" && o.User == ""
}

// KeyPair is the persisted record of an SSH key pair. The private half is
// handed to the caller once at creation and never stored.
type KeyPair struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Owner       Owner     `json:"owner"`
	PublicKey   string    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// KeyInfo is the sanitized credential attached to an admitted allocation.
// A zero KeyInfo means "no credential".
type KeyInfo struct {
	Name        string `json:"name,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// IsEmpty reports whether the KeyInfo carries no credential.
func (k KeyInfo) IsEmpty() bool {
	return k == KeyInfo{}
}

// KeyInfoFrom strips a stored record down to what an allocation may see.
func KeyInfoFrom(kp KeyPair) KeyInfo {
	return KeyInfo{Name: kp.Name, PublicKey: kp.PublicKey, Fingerprint: kp.Fingerprint}
}

// AuditLogEntry represents a single entry in the audit log.
type AuditLogEntry struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}
