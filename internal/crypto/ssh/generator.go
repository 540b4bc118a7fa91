// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains logic for generating new SSH key pairs.
package ssh

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"strings"
)

// Algorithm names a supported key type.
type Algorithm string

const (
	AlgorithmEd25519 Algorithm = "ed25519"
	AlgorithmRSA     Algorithm = "rsa"
)

const (
	// DefaultRSABits matches the key size the EC2 API hands out.
	DefaultRSABits = 2048
	minRSABits     = 2048
)

// KeyGenerator produces key pairs for the key lifecycle manager.
type KeyGenerator interface {
	// Generate creates a fresh asymmetric key pair.
	Generate() (crypto.PublicKey, crypto.PrivateKey, error)
	// Fingerprint derives the deterministic fingerprint of pub.
	Fingerprint(pub crypto.PublicKey) (string, error)
	// AuthorizedKey renders pub in authorized_keys format.
	AuthorizedKey(pub crypto.PublicKey) (string, error)
	// EncodePrivateKey renders priv as PEM.
	EncodePrivateKey(priv crypto.PrivateKey) ([]byte, error)
}

// Options configure a Generator.
type Options struct {
	Algorithm   Algorithm
	RSABits     int
	Fingerprint FingerprintFormat
	// Comment is appended to the authorized_keys line and embedded in the
	// private key.
	Comment string
}

// Generator is the default KeyGenerator.
type Generator struct {
	opts Options
}

var _ KeyGenerator = (*Generator)(nil)

// NewGenerator validates opts and returns a Generator. Zero options select
// ed25519 with SHA256 fingerprints.
func NewGenerator(opts Options) (*Generator, error) {
	switch Algorithm(strings.ToLower(string(opts.Algorithm))) {
	case "", AlgorithmEd25519:
		opts.Algorithm = AlgorithmEd25519
	case AlgorithmRSA:
		opts.Algorithm = AlgorithmRSA
		if opts.RSABits == 0 {
			opts.RSABits = DefaultRSABits
		}
		if opts.RSABits < minRSABits {
			return nil, fmt.Errorf("rsa key size %d is below the minimum of %d", opts.RSABits, minRSABits)
		}
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", opts.Algorithm)
	}
	switch FingerprintFormat(strings.ToLower(string(opts.Fingerprint))) {
	case "", FingerprintSHA256Format:
		opts.Fingerprint = FingerprintSHA256Format
	case FingerprintMD5Format:
		opts.Fingerprint = FingerprintMD5Format
	default:
		return nil, fmt.Errorf("unsupported fingerprint format %q", opts.Fingerprint)
	}
	return &Generator{opts: opts}, nil
}

// Algorithm returns the configured key algorithm.
func (g *Generator) Algorithm() Algorithm { return g.opts.Algorithm }

// Generate creates a new key pair of the configured algorithm.
func (g *Generator) Generate() (crypto.PublicKey, crypto.PrivateKey, error) {
	switch g.opts.Algorithm {
	case AlgorithmRSA:
		priv, err := rsa.GenerateKey(rand.Reader, g.opts.RSABits)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate rsa key pair: %w", err)
		}
		return &priv.PublicKey, priv, nil
	default:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}
		return pub, priv, nil
	}
}

// Fingerprint returns the fingerprint of pub in the configured format. The
// result only depends on the public key bytes.
func (g *Generator) Fingerprint(pub crypto.PublicKey) (string, error) {
	sshPub, err := NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to create SSH public key: %w", err)
	}
	return Fingerprint(sshPub, g.opts.Fingerprint), nil
}

// FingerprintAuthorizedKey parses an authorized_keys line and fingerprints
// it the same way Fingerprint does.
func (g *Generator) FingerprintAuthorizedKey(line string) (string, error) {
	pk, _, err := ParseAuthorizedKey(line)
	if err != nil {
		return "", err
	}
	return Fingerprint(pk, g.opts.Fingerprint), nil
}

// AuthorizedKey renders pub as an authorized_keys line.
func (g *Generator) AuthorizedKey(pub crypto.PublicKey) (string, error) {
	sshPub, err := NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to create SSH public key: %w", err)
	}
	return AuthorizedKeyString(sshPub, g.opts.Comment), nil
}

// EncodePrivateKey renders priv as an OpenSSH PEM private key.
func (g *Generator) EncodePrivateKey(priv crypto.PrivateKey) ([]byte, error) {
	block, err := MarshalPrivateKey(priv, g.opts.Comment)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}
