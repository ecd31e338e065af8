// Package main provides tests for the gridview CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/gridview/internal/cli"
	"github.com/leapstack-labs/gridview/internal/cli/config"
)

// run executes the root command against a database and state store in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{
		"--database", filepath.Join(dir, "grid.duckdb"),
		"--state", filepath.Join(dir, "state.db"),
	}, args...))

	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	output, err := run(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "gridview") {
		t.Errorf("version output should contain 'gridview', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command error = %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"tables", "load", "peek", "browse", "shell", "state", "serve"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestLoadAndPeek(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(csvPath, []byte("id,name\n1,alice\n2,bob\n3,carol\n"), 0o600); err != nil {
		t.Fatalf("failed to write csv: %v", err)
	}

	output, err := run(t, dir, "load", "people", csvPath)
	if err != nil {
		t.Fatalf("load command error = %v", err)
	}
	if !strings.Contains(output, "Loaded 3 rows (2 columns) into people") {
		t.Errorf("unexpected load output: %s", output)
	}

	output, err = run(t, dir, "tables")
	if err != nil {
		t.Fatalf("tables command error = %v", err)
	}
	if !strings.Contains(output, "people") {
		t.Errorf("tables output should list people, got: %s", output)
	}

	output, err = run(t, dir, "peek", "people", "--sort", "id:desc", "-o", "csv", "--save", "people/desc")
	if err != nil {
		t.Fatalf("peek command error = %v", err)
	}
	carol, alice := strings.Index(output, "carol"), strings.Index(output, "alice")
	if carol < 0 || alice < 0 || carol > alice {
		t.Errorf("peek output should be sorted by id descending, got: %s", output)
	}

	output, err = run(t, dir, "state", "list")
	if err != nil {
		t.Fatalf("state list error = %v", err)
	}
	if !strings.Contains(output, "people/desc") {
		t.Errorf("state list should show the saved key, got: %s", output)
	}
}

func TestPeekMissingTable(t *testing.T) {
	if _, err := run(t, t.TempDir(), "peek", "nope"); err == nil {
		t.Error("peek of a missing table should fail")
	}
}
