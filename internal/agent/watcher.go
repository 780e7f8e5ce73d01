package agent

import (
	"context"
	"math"
	"sync"
	"time"

	sol "mintpilot/internal/gateway/solana"
	"mintpilot/internal/logger"
)

// CurveSubscriber curve 账户的 WS 订阅面，由 gateway/solana 的 Client 实现。
type CurveSubscriber interface {
	SubscribeAccount(ctx context.Context, ch chan<- sol.CurveUpdate) error
}

// PriceWatcher 在轮询 tick 之间实时跟踪 curve 价格。
// 显著波动与 curve 毕业（complete）只在此处记日志，交易决策仍由循环负责。
type PriceWatcher struct {
	subscriber CurveSubscriber
	movePct    float64 // 触发日志的最小涨跌幅（%）

	mu        sync.RWMutex
	lastPrice float64
	lastSlot  uint64
	updatedAt time.Time
}

func NewPriceWatcher(subscriber CurveSubscriber, movePct float64) *PriceWatcher {
	if movePct <= 0 {
		movePct = 5
	}
	return &PriceWatcher{subscriber: subscriber, movePct: movePct}
}

// Start 建立订阅并持续消费更新，ctx 结束后自动退出。
func (w *PriceWatcher) Start(ctx context.Context) error {
	ch := make(chan sol.CurveUpdate, 16)
	if err := w.subscriber.SubscribeAccount(ctx, ch); err != nil {
		return err
	}
	go w.consume(ch)
	logger.Infof("[watcher] curve 价格订阅已启动")
	return nil
}

func (w *PriceWatcher) consume(ch <-chan sol.CurveUpdate) {
	for update := range ch {
		w.observe(update)
	}
	logger.Infof("[watcher] curve 价格订阅已结束")
}

func (w *PriceWatcher) observe(update sol.CurveUpdate) {
	if update.Price <= 0 {
		return
	}
	w.mu.Lock()
	prev := w.lastPrice
	w.lastPrice = update.Price
	w.lastSlot = update.Slot
	w.updatedAt = time.Now()
	w.mu.Unlock()

	if update.Complete {
		logger.Warnf("[watcher] bonding curve 已毕业 (slot=%d)，报价将迁往 AMM", update.Slot)
	}
	if prev <= 0 {
		return
	}
	change := (update.Price - prev) / prev * 100
	if math.Abs(change) >= w.movePct {
		logger.Infof("[watcher] 价格波动 %+.2f%%: %.12f -> %.12f (slot=%d)",
			change, prev, update.Price, update.Slot)
	}
}

// LastPrice 最近一次 WS 推送的价格与时间；尚无推送时价格为 0。
func (w *PriceWatcher) LastPrice() (float64, time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastPrice, w.updatedAt
}
