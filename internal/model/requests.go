// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// CreateKeyPairRequest asks for a new key pair called Name.
type CreateKeyPairRequest struct {
	Name string `json:"name"`
}

// CreateKeyPairResponse is the only place the private key ever appears.
type CreateKeyPairResponse struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	// KeyMaterial is the PEM encoded private key.
	KeyMaterial string `json:"key_material"`
}

// DescribeKeyPairsRequest filters by name; an empty Names selects all.
type DescribeKeyPairsRequest struct {
	Names []string `json:"names,omitempty"`
}

// KeyPairSummary is what describe exposes about a key pair.
type KeyPairSummary struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}

type DescribeKeyPairsResponse struct {
	KeyPairs []KeyPairSummary `json:"key_pairs"`
}

type DeleteKeyPairRequest struct {
	Name string `json:"name"`
}

// DeleteKeyPairResponse always reports Return == true.
type DeleteKeyPairResponse struct {
	Return bool `json:"return"`
}

type ImportKeyPairRequest struct {
	Name              string `json:"name"`
	PublicKeyMaterial string `json:"public_key_material"`
}

type ImportKeyPairResponse struct{}
