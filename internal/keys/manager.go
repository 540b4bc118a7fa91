// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keys implements the lifecycle of named SSH key pairs scoped to an
// owner: create, describe, delete and import.
//
// The private key of a pair exists only in the response to Create. Stored
// records carry the public key and its fingerprint.
package keys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/toeirei/keygate/internal/crypto/ssh"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/logging"
	"github.com/toeirei/keygate/internal/model"
)

// MaxNameLength is the longest accepted key pair name.
const MaxNameLength = 255

// Audit actions written by the manager.
const (
	AuditCreate       = "CREATE_KEY_PAIR"
	AuditDelete       = "DELETE_KEY_PAIR"
	AuditDeleteFailed = "DELETE_KEY_PAIR_FAILED"
)

// Clock provides an abstraction over time.Now for testability.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Manager creates, lists and removes key pairs in a KeyPairStore.
type Manager struct {
	store db.KeyPairStore
	gen   ssh.KeyGenerator
	audit db.AuditWriter
	probe ExistenceProbePolicy
	clock Clock
	log   *clog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithExistenceProbe selects how Create treats a failed existence check.
func WithExistenceProbe(p ExistenceProbePolicy) Option {
	return func(m *Manager) { m.probe = p }
}

// WithAuditWriter sets where lifecycle events are recorded. By default the
// store is used when it implements db.AuditWriter.
func WithAuditWriter(w db.AuditWriter) Option {
	return func(m *Manager) { m.audit = w }
}

// WithClock replaces the clock used for CreatedAt.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger. nil selects logging.L.
func WithLogger(l *clog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager returns a Manager backed by store and gen.
func NewManager(store db.KeyPairStore, gen ssh.KeyGenerator, opts ...Option) *Manager {
	m := &Manager{store: store, gen: gen, probe: ProbeLenient, clock: systemClock{}}
	if w, ok := store.(db.AuditWriter); ok {
		m.audit = w
	}
	for _, o := range opts {
		o(m)
	}
	m.log = logging.Or(m.log).With("component", "keys")
	return m
}

// ValidateName checks that name is 1 to MaxNameLength printable ASCII
// characters.
func ValidateName(name string) error {
	const op = "keys.ValidateName"
	if strings.TrimSpace(name) == "" {
		return errs.E(errs.KindValidation, op, "key pair name must not be empty")
	}
	if len(name) > MaxNameLength {
		return errs.E(errs.KindValidation, op, "key pair name is longer than %d characters", MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c > 0x7e {
			return errs.E(errs.KindValidation, op, "key pair name contains invalid character at position %d", i)
		}
	}
	return nil
}

func validateOwner(op string, owner model.Owner) error {
	if owner.Account == "" || owner.User == "" {
		return errs.E(errs.KindValidation, op, "owner account and user are required")
	}
	return nil
}

// Create generates a new key pair named req.Name for owner. The returned
// KeyMaterial is the only copy of the private key.
func (m *Manager) Create(ctx context.Context, owner model.Owner, req model.CreateKeyPairRequest) (model.CreateKeyPairResponse, error) {
	const op = "keys.Create"
	var resp model.CreateKeyPairResponse
	if err := validateOwner(op, owner); err != nil {
		return resp, err
	}
	if err := ValidateName(req.Name); err != nil {
		return resp, err
	}

	exists, err := m.exists(ctx, owner, req.Name)
	if err != nil {
		return resp, err
	}
	if exists {
		return resp, errs.E(errs.KindAlreadyExists, op, "key pair %q already exists", req.Name)
	}

	pub, priv, err := m.gen.Generate()
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	fp, err := m.gen.Fingerprint(pub)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	authorized, err := m.gen.AuthorizedKey(pub)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	material, err := m.gen.EncodePrivateKey(priv)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}

	kp := &model.KeyPair{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Owner:       owner,
		PublicKey:   authorized,
		Fingerprint: fp,
		CreatedAt:   m.clock.Now().UTC(),
	}
	if err := m.store.Put(ctx, kp); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return resp, errs.Wrap(errs.KindAlreadyExists, op, err, "key pair %q already exists", req.Name)
		}
		return resp, errs.Wrap(errs.KindPersistence, op, err, "store key pair %q", req.Name)
	}

	m.log.Info("created key pair", "owner", owner.String(), "name", req.Name, "fingerprint", fp)
	m.record(ctx, AuditCreate, fmt.Sprintf("owner: %s, key: %s, fingerprint: %s", owner, req.Name, fp))

	return model.CreateKeyPairResponse{Name: req.Name, Fingerprint: fp, KeyMaterial: string(material)}, nil
}

// exists runs the existence probe under the configured policy.
func (m *Manager) exists(ctx context.Context, owner model.Owner, name string) (bool, error) {
	kp, err := m.store.Get(ctx, owner, name)
	if err == nil {
		return kp != nil, nil
	}
	switch m.probe {
	case ProbeLenient:
		m.log.Warn("existence check failed, assuming key pair is absent", "owner", owner.String(), "name", name, "err", err)
		return false, nil
	default:
		return false, errs.Wrap(errs.KindPersistence, "keys.Create", err, "check key pair %q", name)
	}
}

// Describe lists owner's key pairs whose name is in req.Names, or all of
// them when req.Names is empty. Items are ordered by name.
func (m *Manager) Describe(ctx context.Context, owner model.Owner, req model.DescribeKeyPairsRequest) (model.DescribeKeyPairsResponse, error) {
	const op = "keys.Describe"
	resp := model.DescribeKeyPairsResponse{KeyPairs: []model.KeyPairSummary{}}
	if err := validateOwner(op, owner); err != nil {
		return resp, err
	}
	all, err := m.store.List(ctx, owner)
	if err != nil {
		return resp, errs.Wrap(errs.KindPersistence, op, err, "list key pairs")
	}

	var filter map[string]struct{}
	if len(req.Names) > 0 {
		filter = make(map[string]struct{}, len(req.Names))
		for _, n := range req.Names {
			filter[n] = struct{}{}
		}
	}
	for _, kp := range all {
		if filter != nil {
			if _, ok := filter[kp.Name]; !ok {
				continue
			}
		}
		resp.KeyPairs = append(resp.KeyPairs, model.KeyPairSummary{Name: kp.Name, Fingerprint: kp.Fingerprint})
	}
	sort.Slice(resp.KeyPairs, func(i, j int) bool { return resp.KeyPairs[i].Name < resp.KeyPairs[j].Name })
	return resp, nil
}

// Delete removes owner's key pair named req.Name. It always reports
// success; a missing key pair or a store failure is logged and audited
// instead.
func (m *Manager) Delete(ctx context.Context, owner model.Owner, req model.DeleteKeyPairRequest) model.DeleteKeyPairResponse {
	removed, err := m.store.Delete(ctx, owner, req.Name)
	switch {
	case err != nil:
		m.log.Warn("delete key pair failed", "owner", owner.String(), "name", req.Name, "err", err)
		m.record(ctx, AuditDeleteFailed, fmt.Sprintf("owner: %s, key: %s, error: %v", owner, req.Name, err))
	case !removed:
		m.log.Warn("delete of unknown key pair", "owner", owner.String(), "name", req.Name)
		m.record(ctx, AuditDeleteFailed, fmt.Sprintf("owner: %s, key: %s, error: not found", owner, req.Name))
	default:
		m.log.Info("deleted key pair", "owner", owner.String(), "name", req.Name)
		m.record(ctx, AuditDelete, fmt.Sprintf("owner: %s, key: %s", owner, req.Name))
	}
	return model.DeleteKeyPairResponse{Return: true}
}

// Import is reserved. It stores nothing and never fails.
func (m *Manager) Import(ctx context.Context, owner model.Owner, req model.ImportKeyPairRequest) (model.ImportKeyPairResponse, error) {
	m.log.Debug("import requested; importing key pairs is not supported", "owner", owner.String(), "name", req.Name)
	return model.ImportKeyPairResponse{}, nil
}

// Get returns owner's key pair named name, or nil when there is none.
func (m *Manager) Get(ctx context.Context, owner model.Owner, name string) (*model.KeyPair, error) {
	return m.store.Get(ctx, owner, name)
}

func (m *Manager) record(ctx context.Context, action, details string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogAction(ctx, action, details); err != nil {
		m.log.Warn("failed to write audit entry", "action", action, "err", err)
	}
}
