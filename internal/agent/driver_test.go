package agent

import (
	"context"
	"testing"
	"time"
)

func TestStopDoesNotCancelInflightTick(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})
	got := make(chan error, 1)
	core := newLoopCore("inflight", time.Hour, func(ctx context.Context) {
		close(entered)
		<-proceed
		got <- ctx.Err()
	})

	if err := core.Start(context.Background()); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("首个 tick 未按时触发")
	}

	core.Stop()
	close(proceed)

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("Stop 不应取消在途 tick 的 context: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("在途 tick 未完成")
	}
	if core.State() != "idle" {
		t.Fatalf("Stop 后状态应为 idle: %s", core.State())
	}
}

func TestParentContextCancelStopsTicker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan struct{}, 8)
	core := newLoopCore("parent", 10*time.Millisecond, func(ctx context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	if err := core.Start(ctx); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("循环未触发 tick")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(50 * time.Millisecond)
	if len(ticks) != 0 {
		t.Fatal("父 context 取消后不应继续触发 tick")
	}
}
