// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Package policy renders allow/deny decisions for actions on keygate
// resources. The admission gate only depends on Engine; RuleSet is the
// bundled file-backed implementation.
package policy

import (
	"context"
	"strings"
)

// ResourceKeyPair is the resource type of stored key pairs.
const ResourceKeyPair = "keypair"

// ActionRunInstances is the action assumed when a request names none.
const ActionRunInstances = "RunInstances"

// Query is a single authorization question.
type Query struct {
	ResourceType string
	ResourceName string
	Account      string
	Action       string
	User         string
}

// Engine decides whether a query is authorized. Implementations must be
// safe for concurrent use.
type Engine interface {
	IsAuthorized(ctx context.Context, q Query) (bool, error)
}

// RequestToAction maps an API request name to its policy action,
// e.g. "RunInstances" to "ec2:runinstances". An empty name maps to the
// RunInstances action.
func RequestToAction(request string) string {
	request = strings.TrimSpace(request)
	if request == "" {
		request = ActionRunInstances
	}
	if strings.Contains(request, ":") {
		return strings.ToLower(request)
	}
	return "ec2:" + strings.ToLower(request)
}

// Static answers every query with the same decision. It is meant for tests
// and for single-tenant setups without a policy file.
type Static struct {
	Allow bool
	Err   error
}

func (s Static) IsAuthorized(context.Context, Query) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	return s.Allow, nil
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, q Query) (bool, error)

func (f Func) IsAuthorized(ctx context.Context, q Query) (bool, error) { return f(ctx, q) }
