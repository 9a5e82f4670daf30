package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RedDragonet/bootvisor/cgroup/subsystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLimit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, applyLimit(root, "perception", 2048, 31337))

	limit, err := os.ReadFile(filepath.Join(root, "perception", "memory.max"))
	require.NoError(t, err)
	assert.Equal(t, "2147483648", string(limit))

	pids, err := subsystem.ReadProcs(filepath.Join(root, "perception"))
	require.NoError(t, err)
	assert.Equal(t, []int{31337}, pids)
}

func TestApplyLimitFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-there")
	assert.Error(t, applyLimit(root, "perception", 64, 1))
}

func TestApplyLimitRejectsSharedCgroups(t *testing.T) {
	tests := []struct {
		name    string
		service string
	}{
		{"launcher child", "init"},
		{"container root", "/"},
		{"nested", "a/b"},
		{"parent", ".."},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			shared := filepath.Join(root, "init")
			require.NoError(t, os.Mkdir(shared, 0755))

			assert.Error(t, applyLimit(root, tt.service, 64, 31337))
			assert.NoFileExists(t, filepath.Join(root, "memory.max"))
			assert.NoFileExists(t, filepath.Join(shared, "memory.max"))
			assert.NoDirExists(t, filepath.Join(root, "a", "b"))
		})
	}
}

func TestRunLimitedRejectsBadInput(t *testing.T) {
	assert.Error(t, RunLimited(t.TempDir(), "x", 64, nil))
	assert.Error(t, RunLimited(t.TempDir(), "x", -1, []string{"true"}))
}
