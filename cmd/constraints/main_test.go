package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/sensorbelief/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
epsilon1: 0.5
epsilon2: 0.1
clusters:
  - nodes: [0, 1]
    params:
      c: [0, 0]
      a: [[1, 0], [0, 1]]
      sigma: [[1, 0], [0, 1]]
`

const testTrace = `# epoch cluster head nodes
0 0 G G:0:1:1 G:0:1:2
1 0 G G:0:0 G:0:0
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		ConfigPath: writeFile(t, dir, "network.yaml", testConfig),
		TracePath:  "-",
		DBPath:     filepath.Join(dir, "runs.db"),
		HTMLPath:   filepath.Join(dir, "kinds.html"),
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, strings.NewReader(testTrace), &out))

	assert.Equal(t, []string{
		"0:x[1,1] = 1.000000",
		"0:x[1,2] = 2.000000",
		"1:2,1,0.400000,1.600000",
		"1:2,2,1.400000,2.600000",
	}, strings.Split(strings.TrimSpace(out.String()), "\n"))

	store, err := db.NewDB(opts.DBPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	stored, err := store.Constraints(runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	html, err := os.ReadFile(opts.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "equality")
}

func TestRun_TraceFileAndAnchors(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		ConfigPath: writeFile(t, dir, "network.yaml", testConfig),
		TracePath:  writeFile(t, dir, "trace.txt", testTrace),
		RunAnchors: true,
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), opts, nil, &out))
	assert.Contains(t, out.String(), "3:-0.5;0.5;1,2,1;-1.000000,1,1\n")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "network.yaml", testConfig)

	err := run(context.Background(), options{ConfigPath: filepath.Join(dir, "missing.yaml"), TracePath: "-"}, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)

	err = run(context.Background(), options{ConfigPath: cfg, TracePath: filepath.Join(dir, "missing.txt")}, nil, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(context.Background(), options{ConfigPath: cfg, TracePath: "-"}, strings.NewReader("0 0 G G:0:1:1\n"), &bytes.Buffer{})
	assert.Error(t, err, "record with the wrong node count")
}
