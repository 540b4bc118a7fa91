// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Package component provides the extension registry pluggable components use
// to publish handlers at bootstrap. A registry has two independent
// keyspaces: one keyed by the structural type a handler serves, and one
// keyed by the identity of the component that owns it.
//
// A single Registry is created by the application bootstrap and handed to
// every component that needs it. There is no package-level registry.
package component

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	clog "github.com/charmbracelet/log"

	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/logging"
)

// ID is the canonical identity of a component, e.g. "keygate.keys".
type ID string

// Identified is implemented by component identity types. The zero value of
// the type must report the component's ID.
type Identified interface {
	ComponentID() ID
}

// Entry is one registration, as returned by Entries.
type Entry[H any] struct {
	// Key is the type name for type-keyed entries and the ID for
	// identity-keyed entries.
	Key     string
	ByType  bool
	Handler H
}

// Registry maps types and component IDs to handlers of type H. Reads share
// a lock, writes take it exclusively. Re-registering a key overwrites the
// previous handler.
type Registry[H any] struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]H
	byID     map[ID]H
	declared map[reflect.Type]ID
	log      *clog.Logger
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	log *clog.Logger
}

// WithLogger sets the logger registrations are reported to. nil selects
// logging.L.
func WithLogger(l *clog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New returns an empty registry.
func New[H any](opts ...Option) *Registry[H] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[H]{
		byType:   map[reflect.Type]H{},
		byID:     map[ID]H{},
		declared: map[reflect.Type]ID{},
		log:      logging.Or(o.log).With("component", "registry"),
	}
}

// Register binds h to the type t.
func (r *Registry[H]) Register(t reflect.Type, h H) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.byType[t] = h
	r.mu.Unlock()
	r.log.Info("registered handler", "type", t.String())
}

// RegisterID binds h to the component id.
func (r *Registry[H]) RegisterID(id ID, h H) {
	r.mu.Lock()
	r.byID[id] = h
	r.mu.Unlock()
	r.log.Info("registered handler", "component", string(id))
}

// DeclareID records that the identity type t stands for id. LookupClass
// consults declared mappings before falling back to Identified.
func (r *Registry[H]) DeclareID(t reflect.Type, id ID) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.declared[t] = id
	r.mu.Unlock()
}

// Handles returns the handler registered for t. Absence is not an error.
func (r *Registry[H]) Handles(t reflect.Type) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byType[t]
	return h, ok
}

// Lookup returns the handler registered for id. Absence is not an error.
func (r *Registry[H]) Lookup(id ID) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// LookupClass derives the component ID for the identity type t and looks it
// up. It fails with errs.ErrConstruction when no ID can be derived; that is
// a wiring mistake and callers should not retry.
func (r *Registry[H]) LookupClass(t reflect.Type) (H, bool, error) {
	var zero H
	id, err := r.idFor(t)
	if err != nil {
		return zero, false, err
	}
	h, ok := r.Lookup(id)
	return h, ok, nil
}

var identifiedType = reflect.TypeOf((*Identified)(nil)).Elem()

func (r *Registry[H]) idFor(t reflect.Type) (ID, error) {
	const op = "component.LookupClass"
	if t == nil {
		return "", errs.E(errs.KindConstruction, op, "nil type")
	}
	r.mu.RLock()
	id, ok := r.declared[t]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}
	if !t.Implements(identifiedType) {
		return "", errs.E(errs.KindConstruction, op, "type %s declares no component id", t)
	}
	id, err := identityOfZero(t)
	if err != nil {
		return "", errs.Wrap(errs.KindConstruction, op, err, "derive component id of %s", t)
	}
	if id == "" {
		return "", errs.E(errs.KindConstruction, op, "type %s reports an empty component id", t)
	}
	return id, nil
}

// identityOfZero calls ComponentID on the zero value of t. Pointer types get
// a freshly allocated element so pointer receivers work too.
func identityOfZero(t reflect.Type) (id ID, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("ComponentID panicked: %v", p)
		}
	}()
	var v reflect.Value
	if t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem())
	} else {
		v = reflect.Zero(t)
	}
	return v.Interface().(Identified).ComponentID(), nil
}

// IDs returns the registered component IDs in sorted order.
func (r *Registry[H]) IDs() []ID {
	r.mu.RLock()
	out := make([]ID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns a snapshot of both keyspaces, type entries first, each
// sorted by key.
func (r *Registry[H]) Entries() []Entry[H] {
	r.mu.RLock()
	types := make([]Entry[H], 0, len(r.byType))
	for t, h := range r.byType {
		types = append(types, Entry[H]{Key: t.String(), ByType: true, Handler: h})
	}
	ids := make([]Entry[H], 0, len(r.byID))
	for id, h := range r.byID {
		ids = append(ids, Entry[H]{Key: string(id), Handler: h})
	}
	r.mu.RUnlock()
	sort.Slice(types, func(i, j int) bool { return types[i].Key < types[j].Key })
	sort.Slice(ids, func(i, j int) bool { return ids[i].Key < ids[j].Key })
	return append(types, ids...)
}

// Len returns the number of registrations across both keyspaces.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType) + len(r.byID)
}

// RegisterType is Register keyed by the static type T.
func RegisterType[T any, H any](r *Registry[H], h H) {
	r.Register(reflect.TypeFor[T](), h)
}

// HandlesType is Handles keyed by the static type T.
func HandlesType[T any, H any](r *Registry[H]) (H, bool) {
	return r.Handles(reflect.TypeFor[T]())
}

// LookupClassOf is LookupClass keyed by the static identity type T.
func LookupClassOf[T any, H any](r *Registry[H]) (H, bool, error) {
	return r.LookupClass(reflect.TypeFor[T]())
}
