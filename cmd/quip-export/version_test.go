package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestGetVersion tests version resolution.
func TestGetVersion(t *testing.T) {
	t.Run("returns ldflags version when set", func(t *testing.T) {
		orig := version
		defer func() { version = orig }()

		version = "v1.2.3"
		if got := getVersion(); got != "v1.2.3" {
			t.Errorf("expected 'v1.2.3', got %q", got)
		}
	})

	t.Run("returns non-empty version without ldflags", func(t *testing.T) {
		orig := version
		defer func() { version = orig }()

		version = ""
		if got := getVersion(); got == "" {
			t.Error("expected non-empty version")
		}
	})
}

// TestGetCommit tests commit hash resolution.
func TestGetCommit(t *testing.T) {
	t.Run("returns ldflags commit when set", func(t *testing.T) {
		orig := commit
		defer func() { commit = orig }()

		commit = "abc1234"
		if got := getCommit(); got != "abc1234" {
			t.Errorf("expected 'abc1234', got %q", got)
		}
	})

	t.Run("returns non-empty commit without ldflags", func(t *testing.T) {
		orig := commit
		defer func() { commit = orig }()

		commit = ""
		if got := getCommit(); got == "" {
			t.Error("expected non-empty commit")
		}
	})
}

// TestGetDate tests build date resolution.
func TestGetDate(t *testing.T) {
	t.Run("returns ldflags date when set", func(t *testing.T) {
		orig := date
		defer func() { date = orig }()

		date = "2026-01-01"
		if got := getDate(); got != "2026-01-01" {
			t.Errorf("expected '2026-01-01', got %q", got)
		}
	})
}

// TestNewVersionCmd tests the version command output.
func TestNewVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	output := buf.String()
	if !strings.Contains(output, "quip-export version") {
		t.Errorf("expected version line in output, got: %s", output)
	}
	if !strings.Contains(output, "commit:") {
		t.Errorf("expected commit line in output, got: %s", output)
	}
	if !strings.Contains(output, "built:") {
		t.Errorf("expected built line in output, got: %s", output)
	}
}
