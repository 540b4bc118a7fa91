// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/model"
)

type testEnv struct {
	dir    string
	dsn    string
	policy string
}

// newTestEnv isolates config discovery and points the CLI at a fresh
// SQLite file.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	policy := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policy, []byte("rules:\n  - effect: allow\n    users: [alice]\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return &testEnv{dir: dir, dsn: filepath.Join(dir, "keygate.db"), policy: policy}
}

// run executes a fresh root command and returns stdout, stderr and the error.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	base := []string{
		"--database.type", "sqlite",
		"--database.dsn", e.dsn,
		"--policy.file", e.policy,
		"--account", "000000000001",
		"--user", "alice",
		"--log.level", "error",
	}
	root.SetArgs(append(args, base...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func TestCLI_CreateDescribeDelete(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "create-key-pair", "web")
	if !strings.Contains(out, "PRIVATE KEY") || !strings.HasPrefix(out, "web\t") {
		t.Fatalf("unexpected create output %q", out)
	}

	out = env.mustRun(t, "describe-key-pairs", "-o", "json")
	var desc model.DescribeKeyPairsResponse
	if err := json.Unmarshal([]byte(out), &desc); err != nil {
		t.Fatalf("describe output is not json: %v\n%s", err, out)
	}
	if len(desc.KeyPairs) != 1 || desc.KeyPairs[0].Name != "web" {
		t.Fatalf("unexpected describe result %+v", desc)
	}
	if strings.Contains(out, "PRIVATE") {
		t.Fatal("describe must not expose private key material")
	}

	if _, _, err := env.run(t, "create-key-pair", "web"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}

	out = env.mustRun(t, "describe-key-pairs")
	if !strings.Contains(out, "FINGERPRINT") || !strings.Contains(out, "web") {
		t.Fatalf("unexpected table output %q", out)
	}

	env.mustRun(t, "delete-key-pair", "web")
	env.mustRun(t, "delete-key-pair", "never-existed")
	out = env.mustRun(t, "describe-key-pairs")
	if !strings.Contains(out, "No key pairs found.") {
		t.Fatalf("expected empty listing, got %q", out)
	}

	out = env.mustRun(t, "audit-log", "-o", "json")
	if !strings.Contains(out, "CREATE_KEY_PAIR") || !strings.Contains(out, "DELETE_KEY_PAIR_FAILED") {
		t.Fatalf("audit log misses lifecycle events: %s", out)
	}
}

func TestCLI_CreateToFileAndClipboard(t *testing.T) {
	env := newTestEnv(t)
	var copied string
	orig := clipboardWrite
	clipboardWrite = func(s string) error { copied = s; return nil }
	defer func() { clipboardWrite = orig }()

	pem := filepath.Join(env.dir, "k.pem")
	out := env.mustRun(t, "create-key-pair", "k", "-O", pem)
	if strings.Contains(out, "PRIVATE KEY") {
		t.Fatal("private key must not be printed when written to a file")
	}
	info, err := os.Stat(pem)
	if err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 key file, got (%v, %v)", info, err)
	}
	if copied != "" {
		t.Fatal("nothing should be copied without --copy")
	}

	env.mustRun(t, "create-key-pair", "k2", "--copy")
	if !strings.Contains(copied, "PRIVATE KEY") {
		t.Fatal("expected private key on the clipboard")
	}
}

func TestCLI_Verify(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "create-key-pair", "web")

	out := env.mustRun(t, "verify", "--key", "web", "--image", "emi-1", "-o", "json")
	var actx model.AllocationContext
	if err := json.Unmarshal([]byte(out), &actx); err != nil {
		t.Fatalf("verify output is not json: %v\n%s", err, out)
	}
	if actx.KeyInfo == nil || actx.KeyInfo.Name != "web" || actx.KeyInfo.PublicKey == "" {
		t.Fatalf("unexpected resolved credential %+v", actx.KeyInfo)
	}

	out = env.mustRun(t, "verify", "--key", "none", "--platform", "linux")
	if !strings.Contains(out, "Admitted without a key pair.") {
		t.Fatalf("unexpected output %q", out)
	}

	_, errOut, err := env.run(t, "verify", "--platform", "windows", "--image", "emi-2")
	if !errors.Is(err, errs.ErrMissingCredential) || !strings.Contains(errOut, "MissingCredentialError") {
		t.Fatalf("expected MissingCredential, got %v (%s)", err, errOut)
	}
	if _, _, err := env.run(t, "verify", "--key", "missing"); !errors.Is(err, errs.ErrCredentialNotFound) {
		t.Fatalf("expected CredentialNotFound, got %v", err)
	}
	if _, _, err := env.run(t, "verify", "--platform", "solaris"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestCLI_ComponentsAndImport(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "components")
	for _, want := range []string{"keygate.keys", "keygate.admission", "policy.Engine"} {
		if !strings.Contains(out, want) {
			t.Fatalf("components output misses %q:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "import-key-pair", "imported")
	if !strings.Contains(out, "nothing was stored") {
		t.Fatalf("unexpected import output %q", out)
	}
	if out := env.mustRun(t, "describe-key-pairs", "imported", "-o", "yaml"); strings.Contains(out, "imported") {
		t.Fatalf("import must not store anything: %s", out)
	}

	bad := filepath.Join(env.dir, "bad.pub")
	if err := os.WriteFile(bad, []byte("not a key\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := env.run(t, "import-key-pair", "x", "--public-key-file", bad); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ValidationError for malformed public key, got %v", err)
	}
}

func TestCLI_BackupExportRestore(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "create-key-pair", "a")
	env.mustRun(t, "create-key-pair", "b")

	file := filepath.Join(env.dir, "snap.json")
	out := env.mustRun(t, "backup", "export", file)
	if !strings.Contains(out, "2 key pairs") {
		t.Fatalf("unexpected export output %q", out)
	}
	if _, err := os.Stat(file + ".zst"); err != nil {
		t.Fatalf("expected %s.zst: %v", file, err)
	}

	restored := &testEnv{dir: env.dir, dsn: filepath.Join(env.dir, "restored.db"), policy: env.policy}
	restored.mustRun(t, "backup", "restore", file+".zst")
	out = restored.mustRun(t, "describe-key-pairs", "-o", "json")
	if !strings.Contains(out, `"a"`) || !strings.Contains(out, `"b"`) {
		t.Fatalf("restored database misses key pairs: %s", out)
	}
}

func TestCLI_ConfigInitAndMaintenance(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "out", "keygate.yaml")
	env.mustRun(t, "config", "init", "--path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), env.dsn) {
		t.Fatalf("written config should carry the effective dsn:\n%s", data)
	}

	out := env.mustRun(t, "config", "show")
	if !strings.Contains(out, "existence_probe: lenient") {
		t.Fatalf("unexpected config show output:\n%s", out)
	}

	env.mustRun(t, "describe-key-pairs") // creates the database file
	if out := env.mustRun(t, "db-maintain"); !strings.Contains(out, "completed") {
		t.Fatalf("unexpected maintenance output %q", out)
	}
}

func TestCLI_RequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"describe-key-pairs", "--database.dsn", env.dsn, "--account", "", "--log.level", "error"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error without an account")
	}
}
