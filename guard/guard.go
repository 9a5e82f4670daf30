// Package guard 在服务启动前采样磁盘和内存，根文件系统将满时清理日志。
package guard

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	DefaultThresholdMB = 100
	DefaultRoot        = "/"
	DefaultLogDir      = "/data/log"
)

// HostState 在启动时采样一次，之后只读
type HostState struct {
	AvailableDiskMB uint64
	TotalMemoryMB   uint64
}

type Probe interface {
	AvailableDiskMB(ctx context.Context, path string) (uint64, error)
	TotalMemoryMB(ctx context.Context) (uint64, error)
}

type hostProbe struct{}

func (hostProbe) AvailableDiskMB(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free / humanize.MiByte, nil
}

func (hostProbe) TotalMemoryMB(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Total / humanize.MiByte, nil
}

type Guard struct {
	Root        string
	LogDir      string
	ThresholdMB uint64
	Probe       Probe
}

func New(root, logDir string, thresholdMB uint64) *Guard {
	return &Guard{
		Root:        root,
		LogDir:      logDir,
		ThresholdMB: thresholdMB,
		Probe:       hostProbe{},
	}
}

// CheckAndRecover 不会失败：采样出错时对应字段为 0，清理失败只记日志
func (g *Guard) CheckAndRecover(ctx context.Context) HostState {
	var state HostState

	free, diskErr := g.Probe.AvailableDiskMB(ctx, g.Root)
	if diskErr != nil {
		log.Warnf("读取磁盘剩余空间 %s 失败 %v", g.Root, diskErr)
	} else {
		state.AvailableDiskMB = free
	}

	total, err := g.Probe.TotalMemoryMB(ctx)
	if err != nil {
		log.Warnf("读取内存总量失败 %v", err)
	} else {
		state.TotalMemoryMB = total
	}
	log.Infof("磁盘剩余 %d MB，内存总量 %d MB", state.AvailableDiskMB, state.TotalMemoryMB)

	if diskErr != nil {
		//读不到磁盘信息时不清理日志
		return state
	}
	if state.AvailableDiskMB >= g.ThresholdMB {
		return state
	}

	log.Warnf("磁盘剩余空间不足 %d MB，清理日志目录 %s", g.ThresholdMB, g.LogDir)
	size, err := dirSize(g.LogDir)
	if err != nil {
		log.Warnf("统计日志目录 %s 大小失败 %v", g.LogDir, err)
	}
	if err := purgeDir(g.LogDir); err != nil {
		log.Warnf("清理日志目录 %s 失败 %v", g.LogDir, err)
		return state
	}
	log.Infof("日志清理完成，释放 %s", humanize.IBytes(size))
	return state
}

func dirSize(dir string) (uint64, error) {
	var size uint64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			size += uint64(info.Size())
		}
		return nil
	})
	return size, err
}

//只删除目录内容，保留目录本身
func purgeDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var firstErr error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
