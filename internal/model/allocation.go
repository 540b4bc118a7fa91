// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// AllocationRequest is the part of a provisioning request the admission gate
// looks at.
type AllocationRequest struct {
	KeyName  KeyName  `json:"key_name"`
	Platform Platform `json:"platform"`
	ImageID  string   `json:"image_id"`
	Owner    Owner    `json:"owner"`
	// Action is the API action that produced the request, e.g. "RunInstances".
	Action string `json:"action"`
}

// AllocationContext travels with a provisioning request through admission.
// KeyInfo is nil until the admission gate has resolved the credential.
type AllocationContext struct {
	Request AllocationRequest `json:"request"`
	KeyInfo *KeyInfo          `json:"key_info,omitempty"`
}

// NewAllocationContext wraps a request for admission.
func NewAllocationContext(req AllocationRequest) *AllocationContext {
	return &AllocationContext{Request: req}
}

// Resolved reports whether admission attached a credential decision.
func (c *AllocationContext) Resolved() bool {
	return c.KeyInfo != nil
}
