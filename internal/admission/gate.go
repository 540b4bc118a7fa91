// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// Package admission resolves and authorizes the SSH credential of a
// provisioning request before it is scheduled. The gate denies by default:
// any lookup or policy failure rejects the request.
package admission

import (
	"context"
	"fmt"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/errs"
	"github.com/toeirei/keygate/internal/logging"
	"github.com/toeirei/keygate/internal/model"
	"github.com/toeirei/keygate/internal/policy"
)

// AuditDenied is the audit action written for rejected requests.
const AuditDenied = "ADMISSION_DENIED"

// KeyPairLookup finds a stored key pair. It returns (nil, nil) when the
// owner has no key pair of that name.
type KeyPairLookup interface {
	Get(ctx context.Context, owner model.Owner, name string) (*model.KeyPair, error)
}

// Gate is the admission checkpoint for provisioning requests.
type Gate struct {
	keys      KeyPairLookup
	policy    policy.Engine
	platforms model.PlatformSet
	audit     db.AuditWriter
	log       *clog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithCredentialPlatforms sets the platforms that cannot be provisioned
// without a key pair. The default is Platform.RequiresCredential.
func WithCredentialPlatforms(s model.PlatformSet) Option {
	return func(g *Gate) { g.platforms = s }
}

// WithAuditWriter records denials.
func WithAuditWriter(w db.AuditWriter) Option {
	return func(g *Gate) { g.audit = w }
}

// WithLogger sets the logger. nil selects logging.L.
func WithLogger(l *clog.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// NewGate returns a Gate that looks key pairs up in keys and asks engine
// for authorization.
func NewGate(keys KeyPairLookup, engine policy.Engine, opts ...Option) *Gate {
	g := &Gate{keys: keys, policy: engine}
	for _, o := range opts {
		o(g)
	}
	g.log = logging.Or(g.log).With("component", "admission")
	return g
}

// Verify resolves the credential requested by actx. On success
// actx.KeyInfo holds the resolved credential, which is empty when none was
// requested and none is required. On failure actx is left untouched and
// the error carries one of the errs kinds.
func (g *Gate) Verify(ctx context.Context, actx *model.AllocationContext) error {
	const op = "admission.Verify"
	if actx == nil {
		return errs.E(errs.KindValidation, op, "nil allocation context")
	}
	req := actx.Request
	log := g.log.With("request_id", uuid.NewString(), "image", req.ImageID, "owner", req.Owner.String())

	name, named := req.KeyName.Name()
	if !named {
		if g.platforms.Contains(req.Platform) {
			err := errs.E(errs.KindMissingCredential, op, "you must specify a key pair when running a %s instance: %s", req.Platform, req.ImageID)
			g.deny(ctx, log, req, err)
			return err
		}
		actx.KeyInfo = &model.KeyInfo{}
		log.Debug("admitted without key pair", "platform", string(req.Platform))
		return nil
	}

	action := policy.RequestToAction(req.Action)

	kp, err := g.keys.Get(ctx, req.Owner, name)
	if err != nil {
		err = errs.Wrap(errs.KindPersistence, op, err, "look up key pair %q", name)
		g.deny(ctx, log, req, err)
		return err
	}
	if kp == nil {
		err := errs.E(errs.KindCredentialNotFound, op, "failed to find key pair: %s", name)
		g.deny(ctx, log, req, err)
		return err
	}

	allowed, err := g.policy.IsAuthorized(ctx, policy.Query{
		ResourceType: policy.ResourceKeyPair,
		ResourceName: name,
		Account:      req.Owner.Account,
		Action:       action,
		User:         req.Owner.User,
	})
	if err != nil || !allowed {
		denial := errs.E(errs.KindNotAuthorized, op, "not authorized to use key pair %s by %s", name, req.Owner.User)
		if err != nil {
			denial.Err = err
		}
		g.deny(ctx, log, req, denial)
		return denial
	}

	info := model.KeyInfoFrom(*kp)
	actx.KeyInfo = &info
	log.Info("admitted", "key", name, "fingerprint", kp.Fingerprint, "action", action)
	return nil
}

func (g *Gate) deny(ctx context.Context, log *clog.Logger, req model.AllocationRequest, err error) {
	log.Warn("admission denied", "kind", errs.KindOf(err).String(), "err", err)
	if g.audit == nil {
		return
	}
	details := fmt.Sprintf("owner: %s, image: %s, key: %s, reason: %s", req.Owner, req.ImageID, req.KeyName, errs.KindOf(err))
	if aerr := g.audit.LogAction(ctx, AuditDenied, details); aerr != nil {
		log.Warn("failed to write audit entry", "err", aerr)
	}
}
