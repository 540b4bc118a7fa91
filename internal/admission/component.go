// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package admission

import "github.com/toeirei/keygate/internal/component"

// ComponentID identifies the admission gate in a component registry.
const ComponentID component.ID = "keygate.admission"

// Component is the identity type of the admission gate.
type Component struct{}

func (Component) ComponentID() component.ID { return ComponentID }
