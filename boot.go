package main

import (
	"context"
	"time"

	"github.com/RedDragonet/bootvisor/cgroup"
	"github.com/RedDragonet/bootvisor/config"
	"github.com/RedDragonet/bootvisor/guard"
	"github.com/RedDragonet/bootvisor/hostctl"
	log "github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/RedDragonet/bootvisor/service"
	"github.com/RedDragonet/bootvisor/session"
)

type hostGuard interface {
	CheckAndRecover(ctx context.Context) guard.HostState
}

type isolationPreparer interface {
	Prepare(ctx context.Context) cgroup.Isolation
}

type dispatcher interface {
	Supervise(d service.Descriptor, host guard.HostState, iso cgroup.Isolation) session.ExecutionSession
}

type bootSequence struct {
	guard      hostGuard
	preparer   isolationPreparer
	registry   *service.Registry
	supervisor dispatcher
	settle     time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Boot 按顺序执行整个启动流程，任何一步失败都不会中断启动
func Boot(cfg config.Config) []session.ExecutionSession {
	b := newBootSequence(cfg)
	return b.run(context.Background())
}

func newBootSequence(cfg config.Config) *bootSequence {
	var preparer *cgroup.Preparer
	channel, err := hostctl.NewChannel(cfg.HostControl)
	if err != nil {
		log.Warnf("宿主机控制通道配置无效 %v", err)
		preparer = cgroup.NewPreparer(nil)
	} else {
		preparer = cgroup.NewPreparer(channel)
	}

	//Validate 已检查过
	limiter, _ := session.NewLimiter(cfg.Limiter, cfg.Executable)

	return &bootSequence{
		guard:      guard.New(cfg.DiskRoot, cfg.LogDir, cfg.DiskThresholdMB),
		preparer:   preparer,
		registry:   cfg.Registry,
		supervisor: session.NewSupervisor(session.NewTmux(cfg.TmuxSocket), limiter, cfg.SessionOptions()),
		settle:     cfg.SettleDelay,
		sleep:      sleepContext,
	}
}

func (b *bootSequence) run(ctx context.Context) []session.ExecutionSession {
	log.Infof("检查磁盘空间")
	host := b.guard.CheckAndRecover(ctx)

	iso := b.preparer.Prepare(ctx)
	if !iso.Available() {
		log.Warnf("内存隔离不可用(%s)，self 方式下服务将不受内存限制", iso.Reason)
	}

	var sessions []session.ExecutionSession
	sessions = append(sessions, b.startWave(service.WavePriority, host, iso)...)

	log.Infof("等待 %s 后启动其余服务", b.settle)
	if err := b.sleep(ctx, b.settle); err != nil {
		log.Warnf("等待被中断 %v，继续启动", err)
	}

	sessions = append(sessions, b.startWave(service.WaveNormal, host, iso)...)

	failed := 0
	for _, s := range sessions {
		if s.Err != nil {
			failed++
		}
	}
	log.Infof("启动完成，共 %d 个服务，分发失败 %d 个", len(sessions), failed)
	return sessions
}

func (b *bootSequence) startWave(w service.Wave, host guard.HostState, iso cgroup.Isolation) []session.ExecutionSession {
	services := b.registry.ServicesForWave(w)
	log.Infof("启动 %s 批次，共 %d 个服务", w, len(services))
	out := make([]session.ExecutionSession, 0, len(services))
	for _, d := range services {
		out = append(out, b.supervisor.Supervise(d, host, iso))
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
