// Copyright (c) 2025 ToeiRei
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"fmt"
	"slices"

	"github.com/toeirei/keygate/internal/crypto/ssh"
	"github.com/toeirei/keygate/internal/db"
	"github.com/toeirei/keygate/internal/keys"
	"github.com/toeirei/keygate/internal/model"
)

type ConfigDatabase struct {
	Type string `mapstructure:"type" yaml:"type"`
	Dsn  string `mapstructure:"dsn" yaml:"dsn"`
}

type ConfigKeys struct {
	Algorithm      string `mapstructure:"algorithm" yaml:"algorithm"`
	RSABits        int    `mapstructure:"rsa_bits" yaml:"rsa_bits"`
	Fingerprint    string `mapstructure:"fingerprint" yaml:"fingerprint"`
	ExistenceProbe string `mapstructure:"existence_probe" yaml:"existence_probe"`
}

type ConfigPolicy struct {
	// File is a YAML rule set. Without one every named key pair is denied.
	File string `mapstructure:"file" yaml:"file"`
}

type ConfigAdmission struct {
	CredentialPlatforms []string `mapstructure:"credential_platforms" yaml:"credential_platforms"`
}

type ConfigLog struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Config is keygate's configuration file layout.
type Config struct {
	Database  ConfigDatabase  `mapstructure:"database" yaml:"database"`
	Keys      ConfigKeys      `mapstructure:"keys" yaml:"keys"`
	Policy    ConfigPolicy    `mapstructure:"policy" yaml:"policy"`
	Admission ConfigAdmission `mapstructure:"admission" yaml:"admission"`
	Log       ConfigLog       `mapstructure:"log" yaml:"log"`
	Language  string          `mapstructure:"language" yaml:"language"`
}

// Defaults returns the default value of every config key.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":                  "sqlite",
		"database.dsn":                   "./keygate.db",
		"keys.algorithm":                 string(ssh.AlgorithmEd25519),
		"keys.rsa_bits":                  ssh.DefaultRSABits,
		"keys.fingerprint":               string(ssh.FingerprintSHA256Format),
		"keys.existence_probe":           keys.ProbeLenient.String(),
		"policy.file":                    "",
		"admission.credential_platforms": []string{string(model.PlatformWindows)},
		"log.level":                      "info",
		"language":                       "en",
	}
}

// DefaultConfig returns Defaults as a Config, for writing a starter file.
func DefaultConfig() Config {
	return Config{
		Database:  ConfigDatabase{Type: "sqlite", Dsn: "./keygate.db"},
		Keys:      ConfigKeys{Algorithm: string(ssh.AlgorithmEd25519), RSABits: ssh.DefaultRSABits, Fingerprint: string(ssh.FingerprintSHA256Format), ExistenceProbe: keys.ProbeLenient.String()},
		Admission: ConfigAdmission{CredentialPlatforms: []string{string(model.PlatformWindows)}},
		Log:       ConfigLog{Level: "info"},
		Language:  "en",
	}
}

// Validate checks values that cannot be checked by decoding alone.
func (c Config) Validate() error {
	if !slices.Contains(db.SupportedTypes, c.Database.Type) {
		return fmt.Errorf("database.type: unsupported value %q (want one of %v)", c.Database.Type, db.SupportedTypes)
	}
	if c.Database.Dsn == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	if _, err := ssh.NewGenerator(c.GeneratorOptions()); err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	if _, err := keys.ParseExistenceProbePolicy(c.Keys.ExistenceProbe); err != nil {
		return fmt.Errorf("keys.existence_probe: %w", err)
	}
	for _, p := range c.Admission.CredentialPlatforms {
		if _, err := model.ParsePlatform(p); err != nil || p == "" {
			return fmt.Errorf("admission.credential_platforms: unknown platform %q", p)
		}
	}
	return nil
}

// GeneratorOptions maps the keys section onto key generator options.
func (c Config) GeneratorOptions() ssh.Options {
	return ssh.Options{
		Algorithm:   ssh.Algorithm(c.Keys.Algorithm),
		RSABits:     c.Keys.RSABits,
		Fingerprint: ssh.FingerprintFormat(c.Keys.Fingerprint),
		Comment:     "keygate",
	}
}
