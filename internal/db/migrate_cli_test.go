package db

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	steps := []struct {
		action string
		want   string
	}{
		{"version", "schema version 0\n"},
		{"up", "schema version 2\n"},
		{"down", "schema version 1\n"},
		{"up", "schema version 2\n"},
		{"version", "schema version 2\n"},
	}
	for _, step := range steps {
		var out bytes.Buffer
		if err := RunMigrateCommand(step.action, path, &out); err != nil {
			t.Fatalf("migrate %s failed: %v", step.action, err)
		}
		if out.String() != step.want {
			t.Errorf("migrate %s: got %q, want %q", step.action, out.String(), step.want)
		}
	}
}

func TestRunMigrateCommand_UnknownAction(t *testing.T) {
	var out bytes.Buffer
	if err := RunMigrateCommand("sideways", filepath.Join(t.TempDir(), "cli.db"), &out); err == nil {
		t.Error("expected error for unknown action")
	}
}
