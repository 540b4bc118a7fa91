package logging

import (
	"bytes"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

// TestLoggingHelpers_WriteToBuffer verifies the package helper functions write
// formatted messages to the package-level logger `L`. The test swaps `L` with
// a buffer-backed logger and restores it afterwards.
func TestLoggingHelpers_WriteToBuffer(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	L.SetLevel(clog.DebugLevel)
	defer func() { L = prev }()

	Debugf("hello %s", "dbg")
	Infof("info %d", 1)
	Warnf("warn")
	Errorf("err %v", "E")
	With("owner", "acct/alice").Info("scoped")

	out := buf.String()
	for _, want := range []string{"hello dbg", "info 1", "warn", "err E", "owner=acct/alice"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q; got: %s", want, out)
		}
	}
}

func TestConfigure_Level(t *testing.T) {
	var buf bytes.Buffer
	prev := L
	L = clog.New(&buf)
	defer func() { L = prev }()

	Configure("warn", &buf)
	Infof("hidden")
	Warnf("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn missing: %s", buf.String())
	}

	Configure("nonsense", nil)
	if L.GetLevel() != clog.InfoLevel {
		t.Fatalf("expected fallback to info, got %v", L.GetLevel())
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != L {
		t.Fatalf("Or(nil) should return L")
	}
	l := clog.New(&bytes.Buffer{})
	if Or(l) != l {
		t.Fatalf("Or should keep a non-nil logger")
	}
}
