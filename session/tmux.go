package session

import (
	"fmt"
	"os/exec"
	"strings"
)

// Host 创建常驻的命名会话，并向其中发送命令
type Host interface {
	HasSession(name string) bool
	NewSession(name string) error
	SessionID(name string) (string, error)
	SendLine(name, line string) error
}

// Tmux 是基于 tmux 服务器的 Host，socket 为空时使用默认服务器
type Tmux struct {
	socketPath string
}

func NewTmux(socketPath string) *Tmux {
	return &Tmux{socketPath: socketPath}
}

func (t *Tmux) args(args ...string) []string {
	if t.socketPath == "" {
		return args
	}
	return append([]string{"-S", t.socketPath}, args...)
}

func (t *Tmux) run(args ...string) (string, error) {
	cmd := exec.Command("tmux", t.args(args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w (%s)",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

func (t *Tmux) HasSession(name string) bool {
	cmd := exec.Command("tmux", t.args("has-session", "-t", exactTarget(name))...)
	return cmd.Run() == nil
}

func (t *Tmux) NewSession(name string) error {
	_, err := t.run("new-session", "-d", "-s", name)
	return err
}

// SessionID 返回 tmux 分配的会话 id，例如 "$3"
func (t *Tmux) SessionID(name string) (string, error) {
	out, err := t.run("display-message", "-p", "-t", paneTarget(name), "#{session_id}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SendLine 把一行命令输入会话当前窗格并回车
func (t *Tmux) SendLine(name, line string) error {
	target := paneTarget(name)
	if _, err := t.run("send-keys", "-t", target, "-l", line); err != nil {
		return err
	}
	_, err := t.run("send-keys", "-t", target, "Enter")
	return err
}

// CapturePane 返回窗格内容，maxLines > 0 时只保留最后 maxLines 行
func (t *Tmux) CapturePane(name string, maxLines int) (string, error) {
	out, err := t.run("capture-pane", "-p", "-t", paneTarget(name), "-S", "-", "-E", "-")
	if err != nil {
		return "", err
	}
	return tailLines(out, maxLines), nil
}

//"=" 前缀避免 tmux 按前缀匹配到其他会话
func exactTarget(name string) string {
	return "=" + name
}

func paneTarget(name string) string {
	return exactTarget(name) + ":"
}

func tailLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n") + "\n"
}
