package cgroup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/RedDragonet/bootvisor/cgroup/subsystem"
	"github.com/RedDragonet/bootvisor/hostctl"
	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/RedDragonet/bootvisor/service"
	"golang.org/x/sys/unix"
)

const DefaultChildName = service.ReservedName

type Status int

const (
	StatusReady Status = iota
	//可用，但有进程未能迁出
	StatusDegraded
	//不可用，服务不加内存限制运行
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusDegraded:
		return "degraded"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type Subtree struct {
	RootPath     string
	ChildPath    string
	MigratedPIDs []int
}

// Isolation 是 Prepare 的结果，Status 为 StatusSkipped 时 Subtree 为 nil
type Isolation struct {
	Status   Status
	Subtree  *Subtree
	Reason   string
	Warnings []string
}

func (i Isolation) Available() bool {
	return i.Status != StatusSkipped && i.Subtree != nil
}

func skipped(reason string) Isolation {
	log.Warnf("跳过内存隔离: %s", reason)
	return Isolation{Status: StatusSkipped, Reason: reason}
}

type Channel interface {
	Ping(ctx context.Context) error
	ContainerCgroup(ctx context.Context) (string, error)
}

// Hierarchy 是 Prepare 对 cgroupfs 的读写操作
type Hierarchy interface {
	ReadProcs(cgroupPath string) ([]int, error)
	MovePID(cgroupPath string, pid int) error
	EnableControllers(cgroupPath string, controllers ...string) error
}

type kernelHierarchy struct{}

func (kernelHierarchy) ReadProcs(p string) ([]int, error) { return subsystem.ReadProcs(p) }
func (kernelHierarchy) MovePID(p string, pid int) error { return subsystem.WriteProc(p, pid) }
func (kernelHierarchy) EnableControllers(p string, controllers ...string) error {
	return subsystem.EnableControllers(p, controllers...)
}

type Preparer struct {
	Channel Channel
	// MountPoint 为空时从 mountinfo 查找
	MountPoint string
	ChildName  string
	Hierarchy  Hierarchy
	SelfCgroup func() (string, error)
	CapCheck   func() ([]string, error)
}

func NewPreparer(channel Channel) *Preparer {
	return &Preparer{
		Channel:    channel,
		ChildName:  DefaultChildName,
		Hierarchy:  kernelHierarchy{},
		SelfCgroup: subsystem.SelfCgroup,
		CapCheck: func() ([]string, error) {
			return hostctl.MissingCapabilities("CAP_SYS_ADMIN")
		},
	}
}

// Prepare 不返回错误，任何失败都只会降级为 skipped 或 degraded
func (p *Preparer) Prepare(ctx context.Context) Isolation {
	log.Infof("准备内存隔离")
	if p.Channel == nil {
		return skipped("未配置宿主机控制通道")
	}
	if err := p.Channel.Ping(ctx); err != nil {
		return skipped(fmt.Sprintf("宿主机控制通道不可用: %v", err))
	}

	root, err := p.resolveRoot(ctx)
	if err != nil {
		return skipped(err.Error())
	}
	log.Infof("容器 cgroup 路径 %s", root)

	if p.CapCheck != nil {
		if missing, err := p.CapCheck(); err != nil {
			log.Warnf("检查进程权限失败 %v", err)
		} else if len(missing) > 0 {
			log.Warnf("缺少权限 %v，cgroup 写入可能失败", missing)
		}
	}

	child, err := subsystem.GetCgroupPath(root, p.ChildName, true)
	if err != nil {
		return skipped(fmt.Sprintf("创建子 cgroup 失败: %v", err))
	}

	iso := Isolation{
		Status:  StatusReady,
		Subtree: &Subtree{RootPath: root, ChildPath: child},
	}

	pids, err := p.Hierarchy.ReadProcs(root)
	if err != nil {
		return skipped(fmt.Sprintf("读取 %s 进程列表失败: %v", root, err))
	}
	for _, pid := range pids {
		if err := p.Hierarchy.MovePID(child, pid); err != nil {
			if errors.Is(err, unix.ESRCH) {
				log.Debugf("进程 %d 已退出，无需迁移", pid)
				continue
			}
			log.Warnf("迁移进程 %d 失败 %v", pid, err)
			iso.Warnings = append(iso.Warnings, fmt.Sprintf("迁移进程 %d 失败: %v", pid, err))
			continue
		}
		iso.Subtree.MigratedPIDs = append(iso.Subtree.MigratedPIDs, pid)
	}
	log.Infof("已迁移 %d 个进程到 %s", len(iso.Subtree.MigratedPIDs), child)

	remaining, err := p.Hierarchy.ReadProcs(root)
	if err != nil {
		log.Warnf("复查 %s 进程列表失败 %v", root, err)
		iso.Warnings = append(iso.Warnings, fmt.Sprintf("复查进程列表失败: %v", err))
	}
	for _, pid := range remaining {
		log.Warnf("进程 %d 仍留在 %s", pid, root)
		iso.Warnings = append(iso.Warnings, fmt.Sprintf("进程 %d 仍留在父 cgroup", pid))
	}

	if err := p.Hierarchy.EnableControllers(root, "memory"); err != nil {
		return skipped(fmt.Sprintf("开启 memory 委派失败: %v", err))
	}
	if len(iso.Warnings) > 0 {
		iso.Status = StatusDegraded
	}
	log.Infof("内存隔离准备完成，状态 %s", iso.Status)
	return iso
}

func (p *Preparer) resolveRoot(ctx context.Context) (string, error) {
	mount := p.MountPoint
	if mount == "" {
		var err error
		if mount, err = subsystem.FindCgroupMountPoint(); err != nil {
			return "", err
		}
	}

	rel, err := p.Channel.ContainerCgroup(ctx)
	if err != nil {
		log.Warnf("通过控制通道获取容器 cgroup 失败 %v", err)
	} else if root := path.Join(mount, rel); exists(root) {
		return root, nil
	} else {
		log.Debugf("%s 不存在，可能处于独立的 cgroup namespace", root)
	}

	//独立 cgroup namespace 下 /proc/self/cgroup 给出的是相对挂载点的路径
	if p.SelfCgroup == nil {
		return "", fmt.Errorf("无法确定容器 cgroup 路径")
	}
	self, err := p.SelfCgroup()
	if err != nil {
		return "", fmt.Errorf("读取 /proc/self/cgroup 失败: %w", err)
	}
	root := path.Join(mount, self)
	//上一次启动已经迁入子 cgroup
	if path.Base(root) == p.ChildName {
		root = path.Dir(root)
	}
	if !exists(root) {
		return "", fmt.Errorf("cgroup 目录 %s 不存在", root)
	}
	return root, nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
