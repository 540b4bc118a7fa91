// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package keys

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	xssh "golang.org/x/crypto/ssh"

	"github.com/toeirei/keygate/internal/crypto/ssh"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/model"
)

var (
	owner = model.Owner{Account: "000000000001", User: "alice"}
	other = model.Owner{Account: "000000000001", User: "bob"}
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newGenerator(t *testing.T) *ssh.Generator {
	t.Helper()
	g, err := ssh.NewGenerator(ssh.Options{Comment: "keygate-test"})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	return g
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *db.FakeKeyPairStore, *ssh.Generator) {
	t.Helper()
	store := db.NewFakeKeyPairStore()
	gen := newGenerator(t)
	return NewManager(store, gen, opts...), store, gen
}

func mustCreate(t *testing.T, m *Manager, o model.Owner, name string) model.CreateKeyPairResponse {
	t.Helper()
	resp, err := m.Create(context.Background(), o, model.CreateKeyPairRequest{Name: name})
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", name, err)
	}
	return resp
}

func TestCreate_ReturnsPrivateKeyOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, store, gen := newTestManager(t, WithClock(fixedClock{now}))
	ctx := context.Background()

	resp := mustCreate(t, m, owner, "k1")
	if resp.Name != "k1" || resp.Fingerprint == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.KeyMaterial, "PRIVATE KEY") {
		t.Fatalf("expected PEM private key, got %q", resp.KeyMaterial)
	}

	signer, err := xssh.ParsePrivateKey([]byte(resp.KeyMaterial))
	if err != nil {
		t.Fatalf("key material does not parse: %v", err)
	}

	stored, err := store.Get(ctx, owner, "k1")
	if err != nil || stored == nil {
		t.Fatalf("expected stored record, got (%v, %v)", stored, err)
	}
	if stored.ID == "" || !stored.CreatedAt.Equal(now) {
		t.Fatalf("record missing id or timestamp: %+v", stored)
	}
	if strings.Contains(stored.PublicKey, "PRIVATE") {
		t.Fatal("private key material must never be stored")
	}

	// The stored public key belongs to the returned private key and the
	// fingerprint is a pure function of it.
	if got := string(xssh.MarshalAuthorizedKey(signer.PublicKey())); !strings.HasPrefix(stored.PublicKey, strings.TrimSpace(got)) {
		t.Fatalf("stored public key %q does not match private key %q", stored.PublicKey, got)
	}
	fp, err := gen.FingerprintAuthorizedKey(stored.PublicKey)
	if err != nil {
		t.Fatalf("FingerprintAuthorizedKey failed: %v", err)
	}
	if fp != resp.Fingerprint || fp != stored.Fingerprint {
		t.Fatalf("fingerprint mismatch: resp=%s stored=%s recomputed=%s", resp.Fingerprint, stored.Fingerprint, fp)
	}

	desc, err := m.Describe(ctx, owner, model.DescribeKeyPairsRequest{Names: []string{"k1"}})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	want := []model.KeyPairSummary{{Name: "k1", Fingerprint: resp.Fingerprint}}
	if fmt.Sprint(desc.KeyPairs) != fmt.Sprint(want) {
		t.Fatalf("Describe = %+v, want %+v", desc.KeyPairs, want)
	}

	if len(store.Actions) != 1 || !strings.HasPrefix(store.Actions[0], AuditCreate) {
		t.Fatalf("expected one create audit entry, got %v", store.Actions)
	}
}

func TestCreate_SecondCreateFailsUntilDeleted(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	mustCreate(t, m, owner, "k1")
	_, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: "k1"})
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	// Another owner may reuse the name.
	mustCreate(t, m, other, "k1")

	if resp := m.Delete(ctx, owner, model.DeleteKeyPairRequest{Name: "k1"}); !resp.Return {
		t.Fatal("Delete must report success")
	}
	mustCreate(t, m, owner, "k1")
}

func TestCreate_ConcurrentSameNameSingleWinner(t *testing.T) {
	m, store, _ := newTestManager(t)
	const n = 10
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Create(context.Background(), owner, model.CreateKeyPairRequest{Name: "race"})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		} else if !errors.Is(err, errs.ErrAlreadyExists) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || store.Len() != 1 {
		t.Fatalf("expected a single winner, got %d (stored %d)", won, store.Len())
	}
}

func TestCreate_Validation(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	for _, name := range []string{"", "   ", strings.Repeat("a", MaxNameLength+1), "bad\nname", "ünicode"} {
		_, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: name})
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("name %q: expected ValidationError, got %v", name, err)
		}
	}
	if _, err := m.Create(ctx, model.Owner{}, model.CreateKeyPairRequest{Name: "ok"}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected ValidationError for empty owner, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("nothing should be stored, got %d", store.Len())
	}
	if err := ValidateName(strings.Repeat("a", MaxNameLength)); err != nil {
		t.Fatalf("max length name rejected: %v", err)
	}
}

func TestCreate_ExistenceProbeFailure(t *testing.T) {
	ctx := context.Background()
	probeErr := errors.New("store unavailable")

	t.Run("default treats the key pair as absent", func(t *testing.T) {
		store := db.NewFakeKeyPairStore()
		store.GetErr = errors.New("transient")
		m := NewManager(store, newGenerator(t))
		resp, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: "k1"})
		if err != nil {
			t.Fatalf("Create should proceed when the existence check fails, got %v", err)
		}
		if resp.KeyMaterial == "" || store.Len() != 1 {
			t.Fatalf("expected a stored key pair and key material, got %+v (stored %d)", resp, store.Len())
		}
	})

	t.Run("lenient", func(t *testing.T) {
		m, store, _ := newTestManager(t, WithExistenceProbe(ProbeLenient))
		store.GetErr = probeErr
		if _, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: "k1"}); err != nil {
			t.Fatalf("lenient probe should proceed, got %v", err)
		}
		// The unique constraint still guards against duplicates.
		_, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: "k1"})
		if !errors.Is(err, errs.ErrAlreadyExists) {
			t.Fatalf("expected AlreadyExists from the store, got %v", err)
		}
	})

	t.Run("strict", func(t *testing.T) {
		m, store, _ := newTestManager(t, WithExistenceProbe(ProbeStrict))
		store.GetErr = probeErr
		_, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: "k1"})
		if !errors.Is(err, errs.ErrPersistence) || !errors.Is(err, probeErr) {
			t.Fatalf("expected PersistenceError wrapping the cause, got %v", err)
		}
		if store.Len() != 0 {
			t.Fatal("strict probe must not create")
		}
	})
}

func TestCreate_StoreFailure(t *testing.T) {
	m, store, _ := newTestManager(t)
	store.PutErr = errors.New("disk full")
	_, err := m.Create(context.Background(), owner, model.CreateKeyPairRequest{Name: "k1"})
	if !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

type failingGenerator struct{ ssh.KeyGenerator }

func (failingGenerator) Generate() (crypto.PublicKey, crypto.PrivateKey, error) {
	return nil, nil, errors.New("no entropy")
}

func TestCreate_GeneratorFailure(t *testing.T) {
	store := db.NewFakeKeyPairStore()
	m := NewManager(store, failingGenerator{})
	if _, err := m.Create(context.Background(), owner, model.CreateKeyPairRequest{Name: "k1"}); err == nil {
		t.Fatal("expected error")
	}
	if store.Len() != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestDescribe(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	for _, n := range []string{"c", "a", "b"} {
		mustCreate(t, m, owner, n)
	}
	mustCreate(t, m, other, "x")

	all, err := m.Describe(ctx, owner, model.DescribeKeyPairsRequest{})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	var names []string
	for _, kp := range all.KeyPairs {
		names = append(names, kp.Name)
	}
	if strings.Join(names, ",") != "a,b,c" {
		t.Fatalf("expected all of owner's records ordered by name, got %v", names)
	}

	none, err := m.Describe(ctx, owner, model.DescribeKeyPairsRequest{Names: []string{"x", "missing"}})
	if err != nil || len(none.KeyPairs) != 0 {
		t.Fatalf("expected empty result, got (%v, %v)", none.KeyPairs, err)
	}

	store.ListErr = errors.New("boom")
	if _, err := m.Describe(ctx, owner, model.DescribeKeyPairsRequest{}); !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestDelete_AlwaysSucceeds(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	if !m.Delete(ctx, owner, model.DeleteKeyPairRequest{Name: "never-created"}).Return {
		t.Fatal("delete of unknown name must succeed")
	}
	store.DeleteErr = errors.New("store down")
	if !m.Delete(ctx, owner, model.DeleteKeyPairRequest{Name: "k1"}).Return {
		t.Fatal("delete must succeed even when the store fails")
	}

	if len(store.Actions) != 2 {
		t.Fatalf("failures must be audited, got %v", store.Actions)
	}
	for _, a := range store.Actions {
		if !strings.HasPrefix(a, AuditDeleteFailed) {
			t.Fatalf("unexpected audit entry %q", a)
		}
	}
}

func TestImport_NoOp(t *testing.T) {
	m, store, _ := newTestManager(t)
	resp, err := m.Import(context.Background(), owner, model.ImportKeyPairRequest{Name: "k", PublicKeyMaterial: "garbage"})
	if err != nil || resp != (model.ImportKeyPairResponse{}) {
		t.Fatalf("Import = (%v, %v)", resp, err)
	}
	if store.Len() != 0 {
		t.Fatal("Import must not store anything")
	}
}

type failingAudit struct{ calls int }

func (f *failingAudit) LogAction(context.Context, string, string) error {
	f.calls++
	return errors.New("audit down")
}

func TestAuditFailureDoesNotFailCreate(t *testing.T) {
	audit := &failingAudit{}
	m, _, _ := newTestManager(t, WithAuditWriter(audit))
	mustCreate(t, m, owner, "k1")
	if audit.calls != 1 {
		t.Fatalf("expected audit call, got %d", audit.calls)
	}
}

func TestManager_WithSQLiteStore(t *testing.T) {
	store, err := db.NewStoreFromDSN("sqlite", "file:keys_manager_sqlite?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	m := NewManager(store, newGenerator(t))
	ctx := context.Background()

	mustCreate(t, m, owner, "k1")
	if _, err := m.Create(ctx, owner, model.CreateKeyPairRequest{Name: "k1"}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	m.Delete(ctx, owner, model.DeleteKeyPairRequest{Name: "k1"})
	if kp, _ := m.Get(ctx, owner, "k1"); kp != nil {
		t.Fatal("key pair should be gone")
	}
	entries, err := store.GetAllAuditLogEntries(ctx)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected create and delete audit entries, got (%v, %v)", entries, err)
	}
}

func TestParseExistenceProbePolicy(t *testing.T) {
	for in, want := range map[string]ExistenceProbePolicy{"": ProbeLenient, "Lenient": ProbeLenient, "strict": ProbeStrict} {
		got, err := ParseExistenceProbePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseExistenceProbePolicy(%q) = (%v, %v)", in, got, err)
		}
	}
	if _, err := ParseExistenceProbePolicy("maybe"); err == nil {
		t.Fatal("expected error")
	}
	if ProbeLenient.String() != "lenient" || ProbeStrict.String() != "strict" {
		t.Fatal("unexpected String()")
	}
}
