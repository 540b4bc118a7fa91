// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// package ssh provides convenience wrappers around the golang.org/x/crypto/ssh package
// for generating, fingerprinting and encoding the key pairs keygate hands out.
package ssh // import "github.com/toeirei/keygate/internal/crypto/ssh"

import (
	"crypto"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// The following variables are re-exported from golang.org/x/crypto/ssh for convenience.

// NewPublicKey creates a new ssh.PublicKey from a crypto.PublicKey.
var NewPublicKey = ssh.NewPublicKey

// MarshalAuthorizedKey serializes a public key to the authorized_keys wire format.
var MarshalAuthorizedKey = ssh.MarshalAuthorizedKey

// FingerprintSHA256 returns the SHA256 fingerprint of the public key.
var FingerprintSHA256 = ssh.FingerprintSHA256

// FingerprintLegacyMD5 returns the colon separated MD5 fingerprint.
var FingerprintLegacyMD5 = ssh.FingerprintLegacyMD5

// FingerprintFormat selects how public keys are fingerprinted.
type FingerprintFormat string

const (
	FingerprintSHA256Format FingerprintFormat = "sha256"
	FingerprintMD5Format    FingerprintFormat = "md5"
)

// Fingerprint returns the fingerprint of key in the requested format. An
// unknown format falls back to SHA256.
func Fingerprint(key ssh.PublicKey, format FingerprintFormat) string {
	if format == FingerprintMD5Format {
		return FingerprintLegacyMD5(key)
	}
	return FingerprintSHA256(key)
}

// AuthorizedKeyString renders pub as a single authorized_keys line with an
// optional trailing comment.
func AuthorizedKeyString(pub ssh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(MarshalAuthorizedKey(pub)))
	if comment != "" {
		line = line + " " + comment
	}
	return line
}

// ParseAuthorizedKey parses one authorized_keys line. Options before the key
// type are accepted and dropped.
func ParseAuthorizedKey(line string) (ssh.PublicKey, string, error) {
	pk, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return pk, comment, nil
}

// MarshalPrivateKey converts a private key to a PEM block in the OpenSSH
// private key format. key must be a type x/crypto/ssh can marshal
// (ed25519.PrivateKey, *rsa.PrivateKey, *ecdsa.PrivateKey).
func MarshalPrivateKey(key crypto.PrivateKey, comment string) (*pem.Block, error) {
	pemBlock, err := ssh.MarshalPrivateKey(key, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pemBlock, nil
}
