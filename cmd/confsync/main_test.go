package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/Azure/AppConfiguration-Sync/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type workspace struct {
	dir string
	db  string
}

func newWorkspace(t *testing.T, files map[string]string) *workspace {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return &workspace{dir: dir, db: filepath.Join(dir, "state.db")}
}

// args returns the flags isolating a run to the workspace.
func (w *workspace) args(cmd string, extra ...string) []string {
	base := []string{
		cmd,
		"--config", filepath.Join(w.dir, "confsync.toml"),
		"--env-file", filepath.Join(w.dir, "none.env"),
		"--log-output", "discard",
		"--root", w.dir,
		"--store", "sqlite",
		"--store-path", w.db,
	}
	return append(base, extra...)
}

// storeArgs isolates a store-only command to the workspace database.
func (w *workspace) storeArgs(cmd string, extra ...string) []string {
	base := []string{
		cmd,
		"--config", filepath.Join(w.dir, "confsync.toml"),
		"--env-file", filepath.Join(w.dir, "none.env"),
		"--log-output", "discard",
		"--store", "sqlite",
		"--store-path", w.db,
	}
	return append(base, extra...)
}

func (w *workspace) values(t *testing.T) map[string]string {
	t.Helper()
	s, err := sqlite.Open(w.db)
	require.NoError(t, err)
	defer s.Close()
	out := map[string]string{}
	for e, err := range s.List(context.Background(), kvs.Filter{}) {
		require.NoError(t, err)
		out[e.Key] = e.Value
	}
	return out
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestSync_Flags(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"app.yaml": "db:\n  host: localhost\n  port: 5432\n",
	})

	out, err := execute(t, w.args("sync", "--files", "*.yaml", "--format", "yaml", "--separator", "__", "--prefix", "svc/")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration sync succeeded.")
	assert.Equal(t, map[string]string{"svc/db__host": "localhost", "svc/db__port": "5432"}, w.values(t))
}

func TestSync_ConfigFileWithFlagOverride(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"a.json": `{"k": {"nested": true}}`,
		"confsync.toml": `
files = "*.json"
format = "json"
separator = "."
depth = 5
`,
	})

	_, err := execute(t, w.args("sync", "--separator", ":")...)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k:nested": "true"}, w.values(t))
}

func TestPlan_DoesNotWrite(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.json": `{"k": "v"}`})

	out, err := execute(t, w.args("plan", "--files", "*.json", "--format", "json", "--separator", ".", "--output", "json")...)
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "k"`)
	assert.Empty(t, w.values(t))
}

func TestSync_InvalidSettings(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.json": `{}`})

	_, err := execute(t, w.args("sync", "--files", "*.json", "--format", "json", "--separator", "|")...)
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
	assert.Contains(t, err.Error(), "Separator '|' is invalid.")

	_, err = execute(t, w.args("sync", "--files", "*.json", "--format", "json", "--separator", ".", "--depth", "0")...)
	assert.EqualError(t, err, "Depth '0' is invalid. Depth should be a positive number.")

	_, err = execute(t, "version", "--output", "xml")
	assert.Equal(t, exitCommandError, exitCode(err))
}

func TestSync_FailureExitCode(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.json": `{"locked": "new"}`})
	s, err := sqlite.Open(w.db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, kvs.Entry{Key: "locked", Value: "old"}))
	require.NoError(t, s.Close())

	out, err := execute(t, w.storeArgs("lock", "locked")...)
	require.NoError(t, err)
	assert.Equal(t, "locked [] read-only: true\n", out)

	out, err = execute(t, w.args("sync", "--files", "*.json", "--format", "json", "--separator", ".")...)
	require.Error(t, err)
	assert.Equal(t, "Configuration sync failed.", err.Error())
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, out, "Failed to add key 'locked' with label ''. Status code: 409 Conflict")
}

func TestLock_Unlock(t *testing.T) {
	w := newWorkspace(t, map[string]string{"a.json": `{"k": "new"}`})
	s, err := sqlite.Open(w.db)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), kvs.Entry{Key: "k", Value: "old", Label: kvs.LabelOf("prod")}))
	require.NoError(t, s.Close())

	_, err = execute(t, w.storeArgs("lock", "k", "--label", "prod")...)
	require.NoError(t, err)
	_, err = execute(t, w.storeArgs("unlock", "k", "--label", "prod")...)
	require.NoError(t, err)

	_, err = execute(t, w.args("sync", "--files", "*.json", "--format", "json", "--separator", ".", "--label", "prod")...)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "new"}, w.values(t))

	_, err = execute(t, w.storeArgs("lock", "missing")...)
	assert.Equal(t, "Status code: 404 Not Found", kvs.Reason(err))
	_, err = execute(t, w.storeArgs("lock", "k", "--store", "redis")...)
	assert.Equal(t, exitCommandError, exitCode(err))
}
