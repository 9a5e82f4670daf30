package guard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	diskMB  uint64
	diskErr error
	memMB   uint64
	memErr  error
}

func (f fakeProbe) AvailableDiskMB(context.Context, string) (uint64, error) {
	return f.diskMB, f.diskErr
}

func (f fakeProbe) TotalMemoryMB(context.Context) (uint64, error) {
	return f.memMB, f.memErr
}

func fillLogDir(t *testing.T) (string, uint64) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "old", "nested"), 0755))
	files := map[string]int{
		"boot.log":              4096,
		"old/rotated.log.1":     10000,
		"old/nested/crash.dump": 123456,
	}
	var total uint64
	for name, size := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644))
		total += uint64(size)
	}
	return dir, total
}

func TestCheckAndRecover(t *testing.T) {
	tests := []struct {
		name       string
		diskMB     uint64
		wantPurged bool
	}{
		{"below threshold", 42, true},
		{"just below", 99, true},
		{"at threshold", 100, false},
		{"plenty", 20000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := test.NewGlobal()
			defer hook.Reset()

			dir, size := fillLogDir(t)
			g := New("/", dir, DefaultThresholdMB)
			g.Probe = fakeProbe{diskMB: tt.diskMB, memMB: 3900}

			state := g.CheckAndRecover(context.Background())
			assert.Equal(t, HostState{AvailableDiskMB: tt.diskMB, TotalMemoryMB: 3900}, state)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			if tt.wantPurged {
				assert.Empty(t, entries)
				assert.True(t, hasEntry(hook, logrus.InfoLevel, humanize.IBytes(size)),
					"expected a log line reporting %s", humanize.IBytes(size))
			} else {
				assert.Len(t, entries, 2)
			}
		})
	}
}

func TestCheckAndRecoverToleratesFailures(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	g := New("/", filepath.Join(t.TempDir(), "missing"), DefaultThresholdMB)
	g.Probe = fakeProbe{diskMB: 1, memMB: 0, memErr: errors.New("no meminfo")}

	state := g.CheckAndRecover(context.Background())
	assert.Equal(t, uint64(1), state.AvailableDiskMB)
	assert.Equal(t, uint64(0), state.TotalMemoryMB)
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "清理日志目录"))
}

func TestCheckAndRecoverSkipsPurgeWithoutDiskReading(t *testing.T) {
	dir, _ := fillLogDir(t)
	g := New("/", dir, DefaultThresholdMB)
	g.Probe = fakeProbe{diskErr: errors.New("statfs failed"), memMB: 1024}

	state := g.CheckAndRecover(context.Background())
	assert.Equal(t, uint64(1024), state.TotalMemoryMB)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func hasEntry(hook *test.Hook, level logrus.Level, substr string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
