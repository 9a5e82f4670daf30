package subsystem

import (
	"fmt"
	"os"
	"path"
	"strconv"

	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
)

type MemorySubSystem struct {
}

func (c *MemorySubSystem) Name() string {
	return "memory"
}

func memoryMax(limitMB int) string {
	if limitMB <= 0 {
		return "max"
	}
	return strconv.FormatInt(int64(limitMB)*1024*1024, 10)
}

func (c *MemorySubSystem) Set(cgroupPath string, res *ResourceConfig) error {
	value := memoryMax(res.MemoryLimitMB)
	log.Debugf("设置 cgroup memory.max=%s 开始 %s", value, cgroupPath)
	if err := os.WriteFile(path.Join(cgroupPath, "memory.max"), []byte(value), 0644); err != nil {
		log.Errorf("设置 cgroup memory 失败 %v", err)
		return fmt.Errorf("设置 cgroup memory 失败: %w", err)
	}
	log.Debugf("设置 cgroup memory 成功")
	return nil
}

func (c *MemorySubSystem) Apply(cgroupPath string, pid int, res *ResourceConfig) error {
	log.Debugf("写入 cgroup memory pid=%d 开始", pid)
	if err := WriteProc(cgroupPath, pid); err != nil {
		log.Errorf("写入 cgroup memory pid=%d 失败 %v", pid, err)
		return fmt.Errorf("写入 cgroup memory pid=%d 失败: %w", pid, err)
	}
	log.Debugf("写入 cgroup memory pid=%d 成功", pid)
	return nil
}

func (c *MemorySubSystem) Remove(cgroupPath string) error {
	log.Debugf("删除 cgroup memory 开始 %s", cgroupPath)
	//cgroup 目录只能 rmdir，不能递归删除
	if err := os.Remove(cgroupPath); err != nil && !os.IsNotExist(err) {
		log.Errorf("删除 cgroup memory 失败 %v", err)
		return err
	}
	return nil
}
