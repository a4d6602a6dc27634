package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestApplySharedOnlyTouchesDeclaredBlocks(t *testing.T) {
	shared := tree{
		"redis":    tree{"addr": "redis:6379"},
		"database": tree{"dsn": "x"},
	}
	base := tree{
		"redis": tree{"addr": "127.0.0.1:6379", "db": 2},
	}

	out := applyShared(base, shared)
	assert.Equal(t, tree{"addr": "redis:6379", "db": 2}, out["redis"])
	assert.NotContains(t, out, "database")
	assert.Equal(t, "127.0.0.1:6379", base["redis"].(tree)["addr"], "base must not be mutated")
}

func TestMergeOverridesNestedValues(t *testing.T) {
	merged := merge(
		tree{"sandbox": tree{"enableCgroup": true, "cpuCores": 1}},
		tree{"sandbox": tree{"enableCgroup": false}, "extra": []any{1}},
	)
	assert.Equal(t, tree{"enableCgroup": false, "cpuCores": 1}, merged["sandbox"])
	assert.Equal(t, []any{1}, merged["extra"])
}

func TestRunRendersServices(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("judge.yaml", "redis:\n  addr: local:1\nlogger:\n  level: info\n")
	write("profile.yaml", `outputDir: out
shared:
  redis:
    addr: shared:6379
  database:
    dsn: nope
services:
  judge-service:
    base: judge.yaml
    overrides:
      logger:
        level: debug
`)

	require.NoError(t, run([]string{"-profile", filepath.Join(dir, "profile.yaml")}, &bytes.Buffer{}))

	data, err := os.ReadFile(filepath.Join(dir, "out", "judge.yaml"))
	require.NoError(t, err)
	var got tree
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, tree{"addr": "shared:6379"}, got["redis"])
	assert.Equal(t, tree{"level": "debug"}, got["logger"])
	assert.NotContains(t, got, "database")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.yaml"),
		[]byte("outputDir: out\nservices:\n  a:\n    base: a.yaml\n"), 0o644))

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-profile", filepath.Join(dir, "p.yaml"), "-dry-run"}, &stdout))
	assert.Contains(t, stdout.String(), "# a ->")
	assert.Contains(t, stdout.String(), "x: 1")
	_, err := os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(err))
}
