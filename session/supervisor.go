// Package session 把服务分发到常驻的 tmux 会话中。
//
// 分发只发送命令，不等待进程，也不负责重启。
package session

import (
	"fmt"
	"os"

	"github.com/RedDragonet/bootvisor/cgroup"
	"github.com/RedDragonet/bootvisor/guard"
	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/RedDragonet/bootvisor/service"
)

var DefaultEnvPrefixes = []string{"ROS_", "PLATFORM_"}

type Options struct {
	Disabled       service.DisableSet
	NoMemoryLimits bool
	EnvPrefixes    []string
	// bootvisor 自身路径，用于占位命令
	Executable string
}

// ExecutionSession 记录一次 Supervise 的结果。
// 会话创建或命令发送失败时 Err 非空，只用于记录
type ExecutionSession struct {
	ServiceName   string
	Handle        string
	Environment   map[string]string
	MemoryLimitMB int
	Disabled      bool
	// 实际发送到会话中的命令行
	Command string
	State   State
	Reused  bool
	Err     error
}

type Supervisor struct {
	Host    Host
	Limiter Limiter
	Options Options
	// 调用时读取环境变量，默认 os.Environ
	Environ func() []string

	sessions map[string]ExecutionSession
}

func NewSupervisor(host Host, limiter Limiter, opts Options) *Supervisor {
	return &Supervisor{
		Host:     host,
		Limiter:  limiter,
		Options:  opts,
		Environ:  os.Environ,
		sessions: map[string]ExecutionSession{},
	}
}

// ResolveMemoryLimit 返回服务实际使用的内存上限(MB)
func (s *Supervisor) ResolveMemoryLimit(d service.Descriptor, host guard.HostState) int {
	if s.Options.NoMemoryLimits {
		return int(host.TotalMemoryMB)
	}
	return d.MemoryLimitMB
}

func (s *Supervisor) Supervise(d service.Descriptor, host guard.HostState, iso cgroup.Isolation) ExecutionSession {
	if sess, ok := s.sessions[d.Name]; ok {
		log.Infof("服务 %s 本次启动已分发，跳过", d.Name)
		return sess
	}

	sess := s.dispatch(d, host, iso)
	if sess.Err != nil {
		log.Errorf("服务 %s 分发失败 %v", d.Name, sess.Err)
	}
	if s.sessions == nil {
		s.sessions = map[string]ExecutionSession{}
	}
	s.sessions[d.Name] = sess
	return sess
}

func (s *Supervisor) dispatch(d service.Descriptor, host guard.HostState, iso cgroup.Isolation) ExecutionSession {
	sess := ExecutionSession{
		ServiceName:   d.Name,
		MemoryLimitMB: s.ResolveMemoryLimit(d, host),
		Disabled:      service.ShouldDisable(d, s.Options.Disabled),
		State:         StateAbsent,
	}

	if s.Host.HasSession(d.Name) {
		log.Infof("会话 %s 已存在，复用", d.Name)
		sess.Reused = true
	} else if err := s.Host.NewSession(d.Name); err != nil {
		sess.Err = fmt.Errorf("创建会话失败: %w", err)
		return sess
	}
	sess.State = StateCreated

	if id, err := s.Host.SessionID(d.Name); err != nil {
		log.Warnf("获取会话 %s 标识失败 %v", d.Name, err)
		sess.Handle = d.Name
	} else {
		sess.Handle = id
	}

	environ := os.Environ
	if s.Environ != nil {
		environ = s.Environ
	}
	sess.Environment = captureEnv(environ(), s.Options.EnvPrefixes)
	if line := exportLine(sess.Environment); line != "" {
		if err := s.Host.SendLine(d.Name, line); err != nil {
			sess.Err = fmt.Errorf("写入环境变量失败: %w", err)
			return sess
		}
	}

	sess.Command = s.commandLine(d, sess, iso)
	if err := s.Host.SendLine(d.Name, sess.Command); err != nil {
		sess.Err = fmt.Errorf("发送启动命令失败: %w", err)
		return sess
	}
	sess.State = StateRunning

	if sess.Disabled {
		log.Infof("服务 %s 已禁用，启动占位进程", d.Name)
	} else {
		log.Infof("服务 %s 已启动，内存上限 %d MB", d.Name, sess.MemoryLimitMB)
	}
	return sess
}

func (s *Supervisor) commandLine(d service.Descriptor, sess ExecutionSession, iso cgroup.Isolation) string {
	if sess.Disabled {
		return PlaceholderLine(s.Options.Executable, d.Name)
	}
	if sess.MemoryLimitMB <= 0 || s.Limiter == nil {
		return d.Command
	}
	if s.Limiter.NeedsSubtree() && !iso.Available() {
		return d.Command
	}
	return s.Limiter.Wrap(d.Name, sess.MemoryLimitMB, iso, d.Command)
}

// PlaceholderLine 是被禁用服务的会话中代替真实命令运行的占位命令
func PlaceholderLine(executable, name string) string {
	return shellQuote(executable) + " placeholder " + shellQuote(name)
}
