package cgroup

import (
	"github.com/RedDragonet/bootvisor/cgroup/subsystem"
	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
)

// CgroupManager 把单个服务放到启动时准备好的父 cgroup 之下
type CgroupManager struct {
	// 已开启 memory 委派的父 cgroup 绝对路径
	Root string
	// 相对 Root 的路径，通常就是服务名
	Path string
	// 资源配置
	Resource *subsystem.ResourceConfig
}

func NewCgroupManager(root, path string) *CgroupManager {
	return &CgroupManager{
		Root: root,
		Path: path,
	}
}

// 将进程pid加入到这个cgroup中
func (c *CgroupManager) Apply(pid int, res *subsystem.ResourceConfig) error {
	cgroupPath, err := subsystem.GetCgroupPath(c.Root, c.Path, false)
	if err != nil {
		return err
	}
	for _, subSysIns := range subsystem.SubsystemIns {
		if err := subSysIns.Apply(cgroupPath, pid, res); err != nil {
			return err
		}
	}
	return nil
}

// 设置cgroup资源限制
func (c *CgroupManager) Set(res *subsystem.ResourceConfig) error {
	cgroupPath, err := subsystem.GetCgroupPath(c.Root, c.Path, true)
	if err != nil {
		return err
	}
	for _, subSysIns := range subsystem.SubsystemIns {
		if err := subSysIns.Set(cgroupPath, res); err != nil {
			return err
		}
	}
	c.Resource = res
	return nil
}

//释放cgroup
func (c *CgroupManager) Destroy() error {
	cgroupPath, err := subsystem.GetCgroupPath(c.Root, c.Path, false)
	if err != nil {
		return nil
	}
	for _, subSysIns := range subsystem.SubsystemIns {
		if err := subSysIns.Remove(cgroupPath); err != nil {
			log.Warnf("remove cgroup fail %v", err)
		}
	}
	return nil
}
