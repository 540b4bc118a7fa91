// Copyright (c) 2025 ToeiRei
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/toeirei/keygate/internal/admission"
	"github.com/toeirei/keygate/internal/component"
	"github.com/toeirei/keygate/internal/config"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/keys"
	"github.com/toeirei/keygate/internal/model"
	"github.com/toeirei/keygate/internal/policy"
)

func testConfig(t *testing.T, policyYAML string) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Dsn = "file:" + t.Name() + "?mode=memory&cache=shared"
	if policyYAML != "" {
		p := filepath.Join(t.TempDir(), "policy.yaml")
		if err := os.WriteFile(p, []byte(policyYAML), 0o600); err != nil {
			t.Fatalf("write policy: %v", err)
		}
		cfg.Policy.File = p
	}
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	app, err := New(testConfig(t, "rules:\n  - effect: allow\n"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.Registry.Len() != 5 {
		t.Fatalf("expected 5 registrations, got %d", app.Registry.Len())
	}
	if _, ok := component.HandlesType[policy.Engine](app.Registry); !ok {
		t.Fatal("policy engine not registered")
	}
	if _, ok := component.HandlesType[db.KeyPairStore](app.Registry); !ok {
		t.Fatal("store not registered")
	}

	mgr, err := Lookup[keys.Component, *keys.Manager](app.Registry)
	if err != nil || mgr != app.Keys {
		t.Fatalf("Lookup keys = (%p, %v)", mgr, err)
	}
	gate, err := Lookup[admission.Component, *admission.Gate](app.Registry)
	if err != nil || gate != app.Gate {
		t.Fatalf("Lookup admission = (%p, %v)", gate, err)
	}

	// Wrong handler type is reported, not panicked on.
	if _, err := Lookup[keys.Component, *admission.Gate](app.Registry); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestNew_EndToEnd(t *testing.T) {
	app, err := New(testConfig(t, "rules:\n  - effect: allow\n    users: [alice]\n"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = app.Close() }()
	ctx := context.Background()
	alice := model.Owner{Account: "1", User: "alice"}

	resp, err := app.Keys.Create(ctx, alice, model.CreateKeyPairRequest{Name: "k1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	actx := model.NewAllocationContext(model.AllocationRequest{KeyName: model.Named("k1"), Platform: model.PlatformWindows, ImageID: "emi-1", Owner: alice})
	if err := app.Gate.Verify(ctx, actx); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if actx.KeyInfo.Fingerprint != resp.Fingerprint {
		t.Fatalf("resolved fingerprint %q, want %q", actx.KeyInfo.Fingerprint, resp.Fingerprint)
	}

	// windows is credential-mandatory by default
	bare := model.NewAllocationContext(model.AllocationRequest{Platform: model.PlatformWindows, ImageID: "emi-1", Owner: alice})
	if err := app.Gate.Verify(ctx, bare); !errors.Is(err, errs.ErrMissingCredential) {
		t.Fatalf("expected MissingCredential, got %v", err)
	}
}

func TestNew_NoPolicyDeniesNamedKeys(t *testing.T) {
	app, err := New(testConfig(t, ""))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = app.Close() }()
	ctx := context.Background()
	bob := model.Owner{Account: "1", User: "bob"}
	if _, err := app.Keys.Create(ctx, bob, model.CreateKeyPairRequest{Name: "k"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	actx := model.NewAllocationContext(model.AllocationRequest{KeyName: model.Named("k"), Owner: bob})
	if err := app.Gate.Verify(ctx, actx); !errors.Is(err, errs.ErrNotAuthorized) {
		t.Fatalf("expected NotAuthorized, got %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Policy.File = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing policy file")
	}

	cfg = testConfig(t, "")
	cfg.Database.Type = "oracle"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unsupported database")
	}
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error { c.n++; return nil }

func TestCloseAll(t *testing.T) {
	c := &countingCloser{}
	RegisterCloser(c)
	if err := CloseAll(); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}
	if c.n != 1 {
		t.Fatalf("expected one close, got %d", c.n)
	}
	if UnregisterCloser(c) {
		t.Fatal("closer should no longer be registered")
	}
}
