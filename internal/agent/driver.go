package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"mintpilot/internal/logger"
)

// ErrAlreadyRunning 循环已在运行时再次 Start 返回。
var ErrAlreadyRunning = errors.New("loop already running")

// loopState 两态状态机。没有 paused / stopping 等中间态。
type loopState int

const (
	stateIdle loopState = iota
	stateRunning
)

func (s loopState) String() string {
	if s == stateRunning {
		return "running"
	}
	return "idle"
}

// loopCore 交易与营销两个循环共用的驱动骨架：
// 固定间隔触发 tick，每个 tick 在独立 goroutine 里执行。
// Stop 只停表，不打断在途 tick，因此慢 tick 可能与下一个 tick 重叠。
type loopCore struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)

	mu     sync.Mutex
	state  loopState
	cancel context.CancelFunc

	statsMu  sync.Mutex
	tickSeq  uint64
	lastTick time.Time
}

func newLoopCore(name string, interval time.Duration, tick func(ctx context.Context)) *loopCore {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &loopCore{name: name, interval: interval, tick: tick}
}

// Start 启动循环。重复启动返回 ErrAlreadyRunning。
// 首个 tick 立即执行，不等第一个间隔。
func (l *loopCore) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == stateRunning {
		return ErrAlreadyRunning
	}
	// runCtx 只控制定时循环本身；tick 挂在调用方传入的 ctx 上，
	// Stop 因而不会打断在途 tick 的网络调用。
	runCtx, cancel := context.WithCancel(context.Background())
	l.state = stateRunning
	l.cancel = cancel

	go l.run(runCtx, ctx)
	logger.Infof("[%s] 循环启动，间隔 %s", l.name, l.interval)
	return nil
}

// Stop 停止触发新 tick。未启动时为 no-op。在途 tick 不被取消。
func (l *loopCore) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != stateRunning {
		return
	}
	l.cancel()
	l.cancel = nil
	l.state = stateIdle
	logger.Infof("[%s] 循环停止", l.name)
}

func (l *loopCore) run(runCtx, tickCtx context.Context) {
	l.spawnTick(tickCtx)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			return
		case <-tickCtx.Done():
			return
		case <-ticker.C:
			l.spawnTick(tickCtx)
		}
	}
}

func (l *loopCore) spawnTick(ctx context.Context) {
	l.statsMu.Lock()
	l.tickSeq++
	seq := l.tickSeq
	l.lastTick = time.Now()
	l.statsMu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[%s] tick #%d panic: %v", l.name, seq, r)
			}
		}()
		l.tick(ctx)
	}()
}

// State 当前状态名（status 接口展示用）。
func (l *loopCore) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.String()
}

// TickCount 已触发的 tick 总数。
func (l *loopCore) TickCount() uint64 {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.tickSeq
}

// LastTickAt 最近一次 tick 触发时间。
func (l *loopCore) LastTickAt() time.Time {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.lastTick
}
