// Copyright (c) 2025 ToeiRei
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// package bootstrap wires keygate's components from a Config. It owns the
// single component registry of the process and hands it to every consumer.
package bootstrap

import (
	"fmt"

	"github.com/toeirei/keygate/internal/admission"
	"github.com/toeirei/keygate/internal/component"
	"github.com/toeirei/keygate/internal/config"
	"github.com/toeirei/keygate/internal/crypto/ssh"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/keys"
	"github.com/toeirei/keygate/internal/logging"
	"github.com/toeirei/keygate/internal/model"
	"github.com/toeirei/keygate/internal/policy"
)

// App holds the wired components.
type App struct {
	Config    config.Config
	Store     *db.BunStore
	Generator *ssh.Generator
	Policy    policy.Engine
	Keys      *keys.Manager
	Gate      *admission.Gate
	Registry  *component.Registry[any]
}

// New opens the configured store and wires the rest on top of it.
func New(cfg config.Config) (*App, error) {
	store, err := db.NewStoreFromDSN(cfg.Database.Type, cfg.Database.Dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app, err := NewWithStore(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

// NewWithStore wires the components on top of an already open store. The
// App takes ownership of store.
func NewWithStore(cfg config.Config, store *db.BunStore) (*App, error) {
	gen, err := ssh.NewGenerator(cfg.GeneratorOptions())
	if err != nil {
		return nil, fmt.Errorf("invalid key settings: %w", err)
	}
	probe, err := keys.ParseExistenceProbePolicy(cfg.Keys.ExistenceProbe)
	if err != nil {
		return nil, err
	}
	engine, err := loadPolicy(cfg.Policy.File)
	if err != nil {
		return nil, err
	}

	mgr := keys.NewManager(store, gen, keys.WithExistenceProbe(probe))
	gate := admission.NewGate(store, engine,
		admission.WithCredentialPlatforms(model.NewPlatformSet(cfg.Admission.CredentialPlatforms...)),
		admission.WithAuditWriter(store),
	)

	app := &App{
		Config:    cfg,
		Store:     store,
		Generator: gen,
		Policy:    engine,
		Keys:      mgr,
		Gate:      gate,
		Registry:  component.New[any](),
	}
	app.registerComponents()
	RegisterCloser(store)
	return app, nil
}

func loadPolicy(file string) (policy.Engine, error) {
	if file == "" {
		logging.Warnf("no policy.file configured; every named key pair will be denied")
		return &policy.RuleSet{}, nil
	}
	rs, err := policy.LoadFile(file)
	if err != nil {
		return nil, err
	}
	logging.Infof("loaded %d policy rules from %s", len(rs.Rules), file)
	return rs, nil
}

func (a *App) registerComponents() {
	r := a.Registry
	component.RegisterType[policy.Engine](r, a.Policy)
	component.RegisterType[db.KeyPairStore](r, a.Store)
	component.RegisterType[ssh.KeyGenerator](r, a.Generator)
	r.RegisterID(keys.ComponentID, a.Keys)
	r.RegisterID(admission.ComponentID, a.Gate)
}

// Lookup fetches the handler registered for the identity type T and
// asserts it to H.
func Lookup[T component.Identified, H any](r *component.Registry[any]) (H, error) {
	var zero H
	h, ok, err := component.LookupClassOf[T](r)
	if err != nil {
		return zero, err
	}
	if !ok {
		var id T
		return zero, fmt.Errorf("component %s is not registered", id.ComponentID())
	}
	typed, ok := h.(H)
	if !ok {
		return zero, fmt.Errorf("component handler has type %T", h)
	}
	return typed, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	if !UnregisterCloser(a.Store) {
		// already closed by the signal handler
		return nil
	}
	return a.Store.Close()
}
