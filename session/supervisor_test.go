package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/RedDragonet/bootvisor/cgroup"
	"github.com/RedDragonet/bootvisor/guard"
	"github.com/RedDragonet/bootvisor/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	sessions map[string]bool
	created  []string
	lines    map[string][]string
	newErr   error
	sendErr  error
	idErr    error
}

func newFakeHost() *fakeHost {
	return &fakeHost{sessions: map[string]bool{}, lines: map[string][]string{}}
}

func (h *fakeHost) HasSession(name string) bool { return h.sessions[name] }

func (h *fakeHost) NewSession(name string) error {
	if h.newErr != nil {
		return h.newErr
	}
	h.sessions[name] = true
	h.created = append(h.created, name)
	return nil
}

func (h *fakeHost) SessionID(name string) (string, error) {
	if h.idErr != nil {
		return "", h.idErr
	}
	return "$" + name, nil
}

func (h *fakeHost) SendLine(name, line string) error {
	if h.sendErr != nil {
		return h.sendErr
	}
	h.lines[name] = append(h.lines[name], line)
	return nil
}

var (
	planner = service.Descriptor{Name: "planner", MemoryLimitMB: 1024, Command: "/opt/bin/planner --fast", Wave: service.WaveNormal}
	host    = guard.HostState{AvailableDiskMB: 5000, TotalMemoryMB: 7800}
	ready   = cgroup.Isolation{Status: cgroup.StatusReady, Subtree: &cgroup.Subtree{RootPath: "/sys/fs/cgroup/docker/abc"}}
)

func newTestSupervisor(h Host, opts Options) *Supervisor {
	if opts.Executable == "" {
		opts.Executable = "/usr/bin/bootvisor"
	}
	s := NewSupervisor(h, SelfLimiter{Executable: opts.Executable}, opts)
	s.Environ = func() []string { return nil }
	return s
}

func TestSuperviseLaunchesWrappedCommand(t *testing.T) {
	h := newFakeHost()
	s := newTestSupervisor(h, Options{})

	sess := s.Supervise(planner, host, ready)
	require.NoError(t, sess.Err)
	assert.Equal(t, StateRunning, sess.State)
	assert.Equal(t, "$planner", sess.Handle)
	assert.Equal(t, 1024, sess.MemoryLimitMB)
	assert.False(t, sess.Reused)
	assert.Equal(t, "'/usr/bin/bootvisor' limit --cgroup-root '/sys/fs/cgroup/docker/abc' --name 'planner' --memory 1024 -- sh -c '/opt/bin/planner --fast'", sess.Command)
	assert.Equal(t, []string{sess.Command}, h.lines["planner"])
}

func TestSuperviseIsIdempotent(t *testing.T) {
	h := newFakeHost()
	s := newTestSupervisor(h, Options{})

	first := s.Supervise(planner, host, ready)
	second := s.Supervise(planner, host, ready)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"planner"}, h.created)
	assert.Len(t, h.lines["planner"], 1)

	// 进程重启后会话仍在，复用而不是新建
	again := newTestSupervisor(h, Options{}).Supervise(planner, host, ready)
	assert.True(t, again.Reused)
	assert.Equal(t, StateRunning, again.State)
	assert.Equal(t, []string{"planner"}, h.created)
}

func TestResolveMemoryLimitOverride(t *testing.T) {
	descs := []service.Descriptor{
		planner,
		{Name: "tiny", MemoryLimitMB: 16, Command: "tiny", Wave: service.WavePriority},
		{Name: "unlimited", MemoryLimitMB: 0, Command: "u", Wave: service.WaveNormal},
	}
	s := newTestSupervisor(newFakeHost(), Options{NoMemoryLimits: true})
	for _, d := range descs {
		assert.Equal(t, int(host.TotalMemoryMB), s.ResolveMemoryLimit(d, host), d.Name)
		assert.Equal(t, int(host.TotalMemoryMB), s.Supervise(d, host, ready).MemoryLimitMB, d.Name)
	}

	s = newTestSupervisor(newFakeHost(), Options{})
	assert.Equal(t, 16, s.ResolveMemoryLimit(descs[1], host))
}

func TestSuperviseDisabledGetsPlaceholderOnly(t *testing.T) {
	tests := []struct {
		name     string
		disabled service.DisableSet
	}{
		{"listed", "planner"},
		{"substring of another service", "planner_viz,telemetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			s := newTestSupervisor(h, Options{Disabled: tt.disabled})
			s.Environ = func() []string { return []string{"ROS_DOMAIN_ID=7"} }
			s.Options.EnvPrefixes = DefaultEnvPrefixes

			sess := s.Supervise(planner, host, ready)
			require.NoError(t, sess.Err)
			assert.True(t, sess.Disabled)
			assert.Equal(t, StateRunning, sess.State)
			assert.Equal(t, "'/usr/bin/bootvisor' placeholder 'planner'", sess.Command)
			for _, line := range h.lines["planner"] {
				assert.NotContains(t, line, planner.Command)
			}
		})
	}
}

func TestSuperviseRunsBareWithoutIsolation(t *testing.T) {
	tests := []struct {
		name string
		desc service.Descriptor
		iso  cgroup.Isolation
	}{
		{"skipped", planner, cgroup.Isolation{Status: cgroup.StatusSkipped}},
		{"unlimited service", service.Descriptor{Name: "recorder", Command: "/opt/bin/recorder", Wave: service.WaveNormal}, ready},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			sess := newTestSupervisor(h, Options{}).Supervise(tt.desc, host, tt.iso)
			require.NoError(t, sess.Err)
			assert.Equal(t, tt.desc.Command, sess.Command)
		})
	}
}

func TestSuperviseSystemdScopeWithoutIsolation(t *testing.T) {
	h := newFakeHost()
	s := NewSupervisor(h, SystemdScope{}, Options{Executable: "/usr/bin/bootvisor"})
	s.Environ = func() []string { return nil }

	sess := s.Supervise(planner, host, cgroup.Isolation{Status: cgroup.StatusSkipped})
	require.NoError(t, sess.Err)
	assert.True(t, strings.HasPrefix(sess.Command, "systemd-run --scope"), sess.Command)
	assert.Contains(t, sess.Command, "--property=MemoryMax=1024M")
}

func TestSupervisePropagatesPrefixedEnv(t *testing.T) {
	h := newFakeHost()
	s := newTestSupervisor(h, Options{EnvPrefixes: DefaultEnvPrefixes})
	environ := []string{
		"ROS_DOMAIN_ID=7",
		"PLATFORM_VEHICLE=test car's",
		"HOME=/root",
		"PATH=/usr/bin",
		"XROS_FAKE=1",
	}
	s.Environ = func() []string { return environ }

	sess := s.Supervise(planner, host, ready)
	require.NoError(t, sess.Err)
	assert.Equal(t, map[string]string{"ROS_DOMAIN_ID": "7", "PLATFORM_VEHICLE": "test car's"}, sess.Environment)

	lines := h.lines["planner"]
	require.Len(t, lines, 2)
	assert.Equal(t, `export PLATFORM_VEHICLE='test car'\''s' ROS_DOMAIN_ID='7'`, lines[0])
	assert.Equal(t, sess.Command, lines[1])
}

func TestSuperviseEnvCapturedAtCallTime(t *testing.T) {
	h := newFakeHost()
	s := newTestSupervisor(h, Options{EnvPrefixes: []string{"ROS_"}})

	value := "1"
	s.Environ = func() []string { return []string{"ROS_DOMAIN_ID=" + value} }
	value = "2"

	sess := s.Supervise(planner, host, ready)
	assert.Equal(t, "2", sess.Environment["ROS_DOMAIN_ID"])
}

func TestSuperviseHostFailures(t *testing.T) {
	h := newFakeHost()
	h.newErr = errors.New("no server running")
	sess := newTestSupervisor(h, Options{}).Supervise(planner, host, ready)
	assert.Error(t, sess.Err)
	assert.Equal(t, StateAbsent, sess.State)

	h = newFakeHost()
	h.sendErr = errors.New("pane gone")
	sess = newTestSupervisor(h, Options{}).Supervise(planner, host, ready)
	assert.Error(t, sess.Err)
	assert.Equal(t, StateCreated, sess.State)

	h = newFakeHost()
	h.idErr = errors.New("display-message failed")
	sess = newTestSupervisor(h, Options{}).Supervise(planner, host, ready)
	assert.NoError(t, sess.Err)
	assert.Equal(t, "planner", sess.Handle)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Absent", StateAbsent.String())
	assert.Equal(t, "Created", StateCreated.String())
	assert.Equal(t, "Up", StateRunning.String())
}

func TestExportLineEmpty(t *testing.T) {
	assert.Equal(t, "", exportLine(nil))
	assert.True(t, strings.HasPrefix(exportLine(map[string]string{"A": "b"}), "export "))
}
