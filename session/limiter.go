package session

import (
	"fmt"
	"strings"

	"github.com/RedDragonet/bootvisor/cgroup"
)

// Limiter 把服务命令包装成带内存上限运行的 shell 命令行
type Limiter interface {
	Wrap(name string, limitMB int, iso cgroup.Isolation, command string) string
	// NeedsSubtree 为 true 时只有内存隔离可用才会包装命令
	NeedsSubtree() bool
}

// SelfLimiter 通过 bootvisor 自身的 limit 子命令运行服务：
// 先进入已准备好的父 cgroup 下属于该服务的子 cgroup，再 exec 目标命令
type SelfLimiter struct {
	Executable string
}

func (SelfLimiter) NeedsSubtree() bool { return true }

func (l SelfLimiter) Wrap(name string, limitMB int, iso cgroup.Isolation, command string) string {
	return fmt.Sprintf("%s limit --cgroup-root %s --name %s --memory %d -- sh -c %s",
		shellQuote(l.Executable), shellQuote(iso.Subtree.RootPath), shellQuote(name), limitMB, shellQuote(command))
}

// SystemdScope 把服务放进带 MemoryMax 的临时 systemd scope，
// 由 systemd 管理 cgroup，不依赖容器内准备的子树
type SystemdScope struct {
	User bool
}

func (SystemdScope) NeedsSubtree() bool { return false }

func (l SystemdScope) Wrap(name string, limitMB int, _ cgroup.Isolation, command string) string {
	args := []string{"systemd-run"}
	if l.User {
		args = append(args, "--user")
	}
	args = append(args,
		"--scope",
		"--unit="+shellQuote("bootvisor-"+name),
		fmt.Sprintf("--property=MemoryMax=%dM", limitMB),
		"--", "sh", "-c", shellQuote(command))
	return strings.Join(args, " ")
}

func NewLimiter(kind, executable string) (Limiter, error) {
	switch kind {
	case "", "self":
		return SelfLimiter{Executable: executable}, nil
	case "systemd":
		return SystemdScope{}, nil
	case "systemd-user":
		return SystemdScope{User: true}, nil
	}
	return nil, fmt.Errorf("未知的内存限制方式 %q", kind)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
