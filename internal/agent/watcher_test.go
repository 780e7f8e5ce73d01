package agent

import (
	"context"
	"testing"
	"time"

	sol "mintpilot/internal/gateway/solana"
)

type fakeSubscriber struct {
	ch chan<- sol.CurveUpdate
}

func (s *fakeSubscriber) SubscribeAccount(ctx context.Context, ch chan<- sol.CurveUpdate) error {
	s.ch = ch
	return nil
}

func TestWatcherTracksLastPrice(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewPriceWatcher(sub, 5)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	sub.ch <- sol.CurveUpdate{Slot: 10, Price: 0.001}
	sub.ch <- sol.CurveUpdate{Slot: 11, Price: 0.0012}
	close(sub.ch)

	deadline := time.After(time.Second)
	for {
		price, at := w.LastPrice()
		if price == 0.0012 && !at.IsZero() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("最新价格未更新: %f", price)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWatcherIgnoresZeroPrice(t *testing.T) {
	sub := &fakeSubscriber{}
	w := NewPriceWatcher(sub, 5)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sub.ch <- sol.CurveUpdate{Slot: 10, Price: 0} // 非 curve 布局的更新
	close(sub.ch)

	time.Sleep(20 * time.Millisecond)
	if price, _ := w.LastPrice(); price != 0 {
		t.Fatalf("零价更新不应被记录: %f", price)
	}
}
