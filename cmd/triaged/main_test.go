package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"config", "log-level", "dev"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected --%s flag", name)
		}
	}
}

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := newRootCommand()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(&stderr)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing", "config.toml"), "extra"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "extra") {
		t.Fatalf("expected positional argument to be rejected, got %v", err)
	}
}
