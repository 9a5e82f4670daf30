package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/RedDragonet/bootvisor/config"
	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/RedDragonet/bootvisor/service"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"
)

func serviceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "services",
			Usage:   "服务表 yaml 文件，为空时使用内置服务表",
			EnvVars: []string{"BOOTVISOR_SERVICES"},
		},
		&cli.StringFlag{
			Name:    "disable",
			Usage:   "禁用的服务，按子串匹配服务名",
			EnvVars: []string{"DISABLED_SERVICES"},
		},
		&cli.StringFlag{
			Name:    "tmux-socket",
			Usage:   "tmux 服务器 socket，为空时使用默认服务器",
			EnvVars: []string{"BOOTVISOR_TMUX_SOCKET"},
		},
	}
}

func bootCommand() *cli.Command {
	defaults := config.Default()
	return &cli.Command{
		Name:  "boot",
		Usage: `检查磁盘，准备内存隔离，按批次启动所有服务`,
		Flags: append(serviceFlags(),
			&cli.BoolFlag{
				Name:    "no-memory-limits",
				Usage:   "所有服务的内存上限改为物理内存总量",
				EnvVars: []string{"NO_MEMORY_LIMITS"},
			},
			&cli.StringSliceFlag{
				Name:    "env-prefix",
				Usage:   "传递到服务会话中的环境变量前缀",
				Value:   cli.NewStringSlice(defaults.EnvPrefixes...),
				EnvVars: []string{"BOOTVISOR_ENV_PREFIXES"},
			},
			&cli.StringFlag{
				Name:    "host-control",
				Usage:   "宿主机容器引擎地址",
				Value:   defaults.HostControl,
				EnvVars: []string{"BOOTVISOR_HOST_CONTROL"},
			},
			&cli.StringFlag{
				Name:    "log-dir",
				Usage:   "磁盘空间不足时清理的日志目录",
				Value:   defaults.LogDir,
				EnvVars: []string{"BOOTVISOR_LOG_DIR"},
			},
			&cli.StringFlag{
				Name:  "disk-root",
				Usage: "检查剩余空间的挂载点",
				Value: defaults.DiskRoot,
			},
			&cli.Uint64Flag{
				Name:  "disk-threshold",
				Usage: "剩余空间低于该值(MB)时清理日志",
				Value: defaults.DiskThresholdMB,
			},
			&cli.DurationFlag{
				Name:  "settle",
				Usage: "两批服务之间的等待时间",
				Value: defaults.SettleDelay,
			},
			&cli.StringFlag{
				Name:    "limiter",
				Usage:   "内存限制方式 self|systemd|systemd-user",
				Value:   defaults.Limiter,
				EnvVars: []string{"BOOTVISOR_LIMITER"},
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "启动完成后保持运行，作为容器主进程",
				Value: true,
			},
		),
		Action: func(context *cli.Context) error {
			cfg, err := configFromContext(context)
			if err != nil {
				return err
			}
			Boot(cfg)
			if context.Bool("wait") {
				waitForSignal()
			}
			return nil
		},
	}
}

func configFromContext(context *cli.Context) (config.Config, error) {
	cfg := config.Default()

	registry, err := config.LoadRegistry(context.String("services"))
	if err != nil {
		return cfg, err
	}
	cfg.Registry = registry
	cfg.Disabled = service.DisableSet(context.String("disable"))
	cfg.NoMemoryLimits = context.Bool("no-memory-limits")
	cfg.EnvPrefixes = splitPrefixes(context.StringSlice("env-prefix"))
	cfg.HostControl = context.String("host-control")
	cfg.LogDir = context.String("log-dir")
	cfg.DiskRoot = context.String("disk-root")
	cfg.DiskThresholdMB = context.Uint64("disk-threshold")
	cfg.SettleDelay = context.Duration("settle")
	cfg.Limiter = context.String("limiter")
	cfg.TmuxSocket = context.String("tmux-socket")

	if cfg.Executable, err = os.Executable(); err != nil {
		return cfg, fmt.Errorf("获取自身路径失败: %w", err)
	}
	return cfg, cfg.Validate()
}

//环境变量里的前缀可能用空格分隔
func splitPrefixes(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Fields(strings.ReplaceAll(v, ",", " "))...)
	}
	return out
}

func limitCommand() *cli.Command {
	return &cli.Command{
		Name:      "limit",
		Usage:     `在内存受限的 cgroup 中运行命令，由 boot 调用`,
		ArgsUsage: "-- command [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "cgroup-root",
				Usage:    "已开启 memory 委派的父 cgroup",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "name",
				Usage:    "服务名，即子 cgroup 名称",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "memory",
				Usage: "内存上限(MB)，0 表示不限制",
			},
		},
		Action: func(context *cli.Context) error {
			return RunLimited(context.String("cgroup-root"), context.String("name"),
				context.Int("memory"), context.Args().Slice())
		},
	}
}

func placeholderCommand() *cli.Command {
	return &cli.Command{
		Name:      "placeholder",
		Usage:     `被禁用服务的占位进程，只占住会话`,
		ArgsUsage: "service",
		Action: func(context *cli.Context) error {
			log.Infof("服务 %s 已被禁用，不启动", context.Args().First())
			waitForSignal()
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "ps",
		Usage: `列出所有服务及会话状态`,
		Flags: serviceFlags(),
		Action: func(context *cli.Context) error {
			registry, err := config.LoadRegistry(context.String("services"))
			if err != nil {
				return err
			}
			return ListServices(os.Stdout, registry, service.DisableSet(context.String("disable")),
				newTmux(context))
		},
	}
}

func logCommand() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     `显示服务会话的输出`,
		ArgsUsage: "service",
		Flags: append(serviceFlags(),
			&cli.IntFlag{
				Name:  "n",
				Usage: "只显示最后 n 行",
			},
		),
		Action: func(context *cli.Context) error {
			if context.Args().Len() < 1 {
				return fmt.Errorf("缺少服务名")
			}
			registry, err := config.LoadRegistry(context.String("services"))
			if err != nil {
				return err
			}
			name := context.Args().First()
			if _, ok := registry.Lookup(name); !ok {
				return fmt.Errorf("未知的服务 %s", name)
			}
			return logService(os.Stdout, newTmux(context), name, context.Int("n"))
		},
	}
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGTERM, unix.SIGINT, unix.SIGHUP)
	s := <-sig
	log.Infof("收到信号 %v，退出", s)
}
