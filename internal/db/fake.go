package db

import (
	"context"
	"sort"
	"sync"

	"github.com/toeirei/keygate/internal/model"
)

// FakeKeyPairStore is a minimal, configurable in-memory KeyPairStore used by
// tests. It enforces (owner, name) uniqueness like the SQL schema does.
type FakeKeyPairStore struct {
	mu   sync.Mutex
	rows map[fakeKey]model.KeyPair

	// GetErr, PutErr, DeleteErr and ListErr are returned by the matching
	// method when non-nil.
	GetErr    error
	PutErr    error
	DeleteErr error
	ListErr   error

	// Actions collects LogAction calls.
	Actions []string
}

type fakeKey struct {
	account, user, name string
}

func keyOf(owner model.Owner, name string) fakeKey {
	return fakeKey{owner.Account, owner.User, name}
}

// NewFakeKeyPairStore returns an empty fake.
func NewFakeKeyPairStore() *FakeKeyPairStore {
	return &FakeKeyPairStore{rows: map[fakeKey]model.KeyPair{}}
}

func (f *FakeKeyPairStore) Get(_ context.Context, owner model.Owner, name string) (*model.KeyPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	kp, ok := f.rows[keyOf(owner, name)]
	if !ok {
		return nil, nil
	}
	return &kp, nil
}

func (f *FakeKeyPairStore) Put(_ context.Context, kp *model.KeyPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PutErr != nil {
		return f.PutErr
	}
	k := keyOf(kp.Owner, kp.Name)
	if _, ok := f.rows[k]; ok {
		return ErrDuplicate
	}
	f.rows[k] = *kp
	return nil
}

func (f *FakeKeyPairStore) Delete(_ context.Context, owner model.Owner, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return false, f.DeleteErr
	}
	k := keyOf(owner, name)
	if _, ok := f.rows[k]; !ok {
		return false, nil
	}
	delete(f.rows, k)
	return true, nil
}

func (f *FakeKeyPairStore) List(_ context.Context, owner model.Owner) ([]model.KeyPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := []model.KeyPair{}
	for k, kp := range f.rows {
		if k.account == owner.Account && k.user == owner.User {
			out = append(out, kp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LogAction implements AuditWriter.
func (f *FakeKeyPairStore) LogAction(_ context.Context, action string, details string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Actions = append(f.Actions, action+" "+details)
	return nil
}

// Len returns the number of stored key pairs.
func (f *FakeKeyPairStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}
