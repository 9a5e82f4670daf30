package main

import (
	"fmt"
	"os"
	"os/exec"
	"path"

	"github.com/RedDragonet/bootvisor/cgroup"
	"github.com/RedDragonet/bootvisor/cgroup/subsystem"
	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"golang.org/x/sys/unix"
)

// RunLimited 把当前进程放入 root/name 并设置内存上限，然后 exec 目标命令。
// 只有设置失败时才会返回。
func RunLimited(root, name string, memoryMB int, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("缺少要运行的命令")
	}
	if memoryMB < 0 {
		return fmt.Errorf("内存上限 %d 不能为负数", memoryMB)
	}

	if err := applyLimit(root, name, memoryMB, os.Getpid()); err != nil {
		return err
	}

	command, err := exec.LookPath(argv[0])
	if err != nil {
		log.Errorf("命令 %s 查找失败 %v", argv[0], err)
		return err
	}
	log.Debugf("exec %s %v", command, argv)
	return unix.Exec(command, argv, os.Environ())
}

func applyLimit(root, name string, memoryMB, pid int) error {
	if err := checkChildName(root, name); err != nil {
		return err
	}
	cgroupManager := cgroup.NewCgroupManager(root, name)
	res := &subsystem.ResourceConfig{MemoryLimitMB: memoryMB}

	if err := cgroupManager.Set(res); err != nil {
		_ = cgroupManager.Destroy()
		return fmt.Errorf("服务 %s 设置内存上限失败: %w", name, err)
	}
	if err := cgroupManager.Apply(pid, res); err != nil {
		_ = cgroupManager.Destroy()
		return fmt.Errorf("服务 %s 加入 cgroup 失败: %w", name, err)
	}
	log.Infof("服务 %s 内存上限 %d MB", name, memoryMB)
	return nil
}

//只允许 root 下一级的子 cgroup，且不能是启动器自身所在的子 cgroup
func checkChildName(root, name string) error {
	p := path.Join(root, name)
	if path.Dir(p) != path.Clean(root) || path.Base(p) == cgroup.DefaultChildName {
		return fmt.Errorf("服务名 %q 不能作为 %s 下的子 cgroup", name, root)
	}
	return nil
}
