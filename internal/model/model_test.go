// Copyright (c) 2026 Keymaster Team
// Keygate - SSH credential admission for compute controllers
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"testing"
)

func TestOwnerString(t *testing.T) {
	o := Owner{Account: "123456789012", User: "alice"}
	if got := o.String(); got != "123456789012/alice" {
		t.Errorf("unexpected Owner.String(): %q", got)
	}
	if o.IsZero() {
		t.Errorf("owner should not be zero")
	}
}

func TestParseKeyName(t *testing.T) {
	cases := []struct {
		raw   string
		named bool
		name  string
	}{
		{"", false, ""},
		{"   ", false, ""},
		{"none", false, ""},
		{"k1", true, "k1"},
		{" k1 ", true, "k1"},
		{"None", true, "None"},
	}
	for _, c := range cases {
		k := ParseKeyName(c.raw)
		name, named := k.Name()
		if named != c.named || name != c.name {
			t.Errorf("ParseKeyName(%q) = (%q,%v), want (%q,%v)", c.raw, name, named, c.name, c.named)
		}
	}
	if NoKey().IsNamed() {
		t.Errorf("NoKey must not be named")
	}
	var zero KeyName
	if zero.IsNamed() {
		t.Errorf("zero KeyName must be NoKey")
	}
}

func TestKeyNameJSON(t *testing.T) {
	b, err := json.Marshal(AllocationRequest{KeyName: Named("k1")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back AllocationRequest
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n, ok := back.KeyName.Name(); !ok || n != "k1" {
		t.Fatalf("round trip lost key name: %v", back.KeyName)
	}

	if err := json.Unmarshal([]byte(`{"key_name":null}`), &back); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if back.KeyName.IsNamed() {
		t.Fatalf("null should decode to NoKey")
	}
	if err := json.Unmarshal([]byte(`{"key_name":"none"}`), &back); err != nil {
		t.Fatalf("unmarshal sentinel: %v", err)
	}
	if back.KeyName.IsNamed() {
		t.Fatalf("legacy sentinel should decode to NoKey")
	}
}

func TestPlatform(t *testing.T) {
	p, err := ParsePlatform("Windows")
	if err != nil || p != PlatformWindows {
		t.Fatalf("ParsePlatform(Windows) = %q, %v", p, err)
	}
	if p, _ := ParsePlatform(""); p != PlatformLinux {
		t.Fatalf("empty platform should default to linux, got %q", p)
	}
	if _, err := ParsePlatform("plan9"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
	if !PlatformWindows.RequiresCredential() || PlatformLinux.RequiresCredential() {
		t.Fatalf("unexpected RequiresCredential defaults")
	}

	var nilSet PlatformSet
	if !nilSet.Contains(PlatformWindows) {
		t.Fatalf("nil set should fall back to defaults")
	}
	s := NewPlatformSet("linux", "bogus")
	if !s.Contains(PlatformLinux) || s.Contains(PlatformWindows) {
		t.Fatalf("configured set not honoured: %v", s)
	}
}

func TestKeyInfo(t *testing.T) {
	if !(KeyInfo{}).IsEmpty() {
		t.Fatalf("zero KeyInfo should be empty")
	}
	ki := KeyInfoFrom(KeyPair{Name: "k1", PublicKey: "ssh-ed25519 AAAA", Fingerprint: "SHA256:x", ID: "id"})
	if ki.IsEmpty() || ki.Name != "k1" || ki.Fingerprint != "SHA256:x" {
		t.Fatalf("unexpected KeyInfo %+v", ki)
	}
}
