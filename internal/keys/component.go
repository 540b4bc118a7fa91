// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package keys

import "github.com/toeirei/keygate/internal/component"

// ComponentID identifies the key lifecycle manager in a component registry.
const ComponentID component.ID = "keygate.keys"

// Component is the identity type of the key lifecycle manager.
type Component struct{}

func (Component) ComponentID() component.ID { return ComponentID }
