// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/toeirei/keygate/internal/model"
	"github.com/uptrace/bun"
)

// KeyPairModel maps the key_pairs table for Bun queries.
type KeyPairModel struct {
	bun.BaseModel `bun:"table:key_pairs"`
	ID            string    `bun:"id,pk"`
	Account       string    `bun:"account,notnull"`
	UserName      string    `bun:"user_name,notnull"`
	Name          string    `bun:"name,notnull"`
	PublicKey     string    `bun:"public_key,notnull"`
	Fingerprint   string    `bun:"fingerprint,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func keyPairModelToModel(m KeyPairModel) model.KeyPair {
	return model.KeyPair{
		ID:          m.ID,
		Name:        m.Name,
		Owner:       model.Owner{Account: m.Account, User: m.UserName},
		PublicKey:   m.PublicKey,
		Fingerprint: m.Fingerprint,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func keyPairModelFromModel(kp *model.KeyPair) *KeyPairModel {
	return &KeyPairModel{
		ID:          kp.ID,
		Account:     kp.Owner.Account,
		UserName:    kp.Owner.User,
		Name:        kp.Name,
		PublicKey:   kp.PublicKey,
		Fingerprint: kp.Fingerprint,
		CreatedAt:   kp.CreatedAt.UTC(),
	}
}

// GetKeyPairBun returns the key pair named name owned by owner, or nil.
func GetKeyPairBun(ctx context.Context, bdb bun.IDB, owner model.Owner, name string) (*model.KeyPair, error) {
	var m KeyPairModel
	err := bdb.NewSelect().Model(&m).
		Where("account = ?", owner.Account).
		Where("user_name = ?", owner.User).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	kp := keyPairModelToModel(m)
	return &kp, nil
}

// InsertKeyPairBun inserts kp. The unique index on (account, user_name, name)
// turns a concurrent duplicate into ErrDuplicate.
func InsertKeyPairBun(ctx context.Context, bdb bun.IDB, kp *model.KeyPair) error {
	_, err := bdb.NewInsert().Model(keyPairModelFromModel(kp)).Exec(ctx)
	return MapDBError(err)
}

// DeleteKeyPairBun removes the key pair and reports whether a row was deleted.
func DeleteKeyPairBun(ctx context.Context, bdb bun.IDB, owner model.Owner, name string) (bool, error) {
	res, err := bdb.NewDelete().Model((*KeyPairModel)(nil)).
		Where("account = ?", owner.Account).
		Where("user_name = ?", owner.User).
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListKeyPairsBun returns the owner's key pairs ordered by name.
func ListKeyPairsBun(ctx context.Context, bdb bun.IDB, owner model.Owner) ([]model.KeyPair, error) {
	var ms []KeyPairModel
	err := bdb.NewSelect().Model(&ms).
		Where("account = ?", owner.Account).
		Where("user_name = ?", owner.User).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.KeyPair, 0, len(ms))
	for _, m := range ms {
		out = append(out, keyPairModelToModel(m))
	}
	return out, nil
}

// ListAllKeyPairsBun returns every stored key pair, used by backups.
func ListAllKeyPairsBun(ctx context.Context, bdb bun.IDB) ([]model.KeyPair, error) {
	var ms []KeyPairModel
	if err := bdb.NewSelect().Model(&ms).OrderExpr("account, user_name, name").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.KeyPair, 0, len(ms))
	for _, m := range ms {
		out = append(out, keyPairModelToModel(m))
	}
	return out, nil
}
