// Package config 保存启动时从环境变量和命令行参数读取的全部配置，
// 读取后不再改变，main 以外的包不直接读环境变量。
package config

import (
	"fmt"
	"time"

	"github.com/RedDragonet/bootvisor/guard"
	"github.com/RedDragonet/bootvisor/hostctl"
	"github.com/RedDragonet/bootvisor/service"
	"github.com/RedDragonet/bootvisor/session"
)

const DefaultSettleDelay = 5 * time.Second

type Config struct {
	Disabled       service.DisableSet
	NoMemoryLimits bool
	EnvPrefixes    []string
	Registry       *service.Registry

	HostControl     string
	LogDir          string
	DiskRoot        string
	DiskThresholdMB uint64
	SettleDelay     time.Duration

	Limiter    string
	TmuxSocket string
	Executable string
}

func Default() Config {
	return Config{
		EnvPrefixes:     append([]string(nil), session.DefaultEnvPrefixes...),
		Registry:        service.Default(),
		HostControl:     hostctl.DefaultAddress,
		LogDir:          guard.DefaultLogDir,
		DiskRoot:        guard.DefaultRoot,
		DiskThresholdMB: guard.DefaultThresholdMB,
		SettleDelay:     DefaultSettleDelay,
		Limiter:         "self",
	}
}

//path 为空时使用内置服务表
func LoadRegistry(path string) (*service.Registry, error) {
	if path == "" {
		return service.Default(), nil
	}
	return service.LoadFile(path)
}

func (c Config) Validate() error {
	if c.Registry == nil {
		return fmt.Errorf("缺少服务表")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("等待时间 %s 不能为负数", c.SettleDelay)
	}
	if c.Executable == "" {
		return fmt.Errorf("无法确定 bootvisor 自身路径")
	}
	if _, err := session.NewLimiter(c.Limiter, c.Executable); err != nil {
		return err
	}
	return nil
}

func (c Config) SessionOptions() session.Options {
	return session.Options{
		Disabled:       c.Disabled,
		NoMemoryLimits: c.NoMemoryLimits,
		EnvPrefixes:    c.EnvPrefixes,
		Executable:     c.Executable,
	}
}
