package session

import (
	"testing"

	"github.com/RedDragonet/bootvisor/cgroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemdScopeWrap(t *testing.T) {
	got := SystemdScope{}.Wrap("perception", 2048, cgroup.Isolation{}, "/opt/bin/perception --gpu")
	assert.Equal(t, "systemd-run --scope --unit='bootvisor-perception' --property=MemoryMax=2048M -- sh -c '/opt/bin/perception --gpu'", got)

	got = SystemdScope{User: true}.Wrap("p", 1, cgroup.Isolation{}, "x")
	assert.Contains(t, got, "systemd-run --user --scope")
}

func TestNewLimiter(t *testing.T) {
	l, err := NewLimiter("", "/bin/bv")
	require.NoError(t, err)
	assert.Equal(t, SelfLimiter{Executable: "/bin/bv"}, l)

	l, err = NewLimiter("systemd", "/bin/bv")
	require.NoError(t, err)
	assert.Equal(t, SystemdScope{}, l)

	_, err = NewLimiter("ulimit", "/bin/bv")
	assert.Error(t, err)
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "'plain'"},
		{"a b && c", "'a b && c'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shellQuote(tt.in))
	}
}

func TestTailLines(t *testing.T) {
	in := "a\nb\nc\nd\n"
	assert.Equal(t, in, tailLines(in, 0))
	assert.Equal(t, in, tailLines(in, 10))
	assert.Equal(t, "c\nd\n", tailLines(in, 2))
}
