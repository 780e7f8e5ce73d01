package market

import (
	"context"
	"sync"
	"time"

	talib "github.com/markcheno/go-talib"

	"mintpilot/internal/logger"
)

// 中文说明：
// SnapshotBuilder 在每个 tick 从 ChainReader 拉取一揽子市场数据并拼装快照。
// 价格历史在 builder 内滚动保留，用于涨跌幅与 RSI/SMA 计算；
// 单项拉取失败只降级对应字段，不让整个快照失败。

const (
	historyMax = 288 // 30s 间隔约一天
	rsiPeriod  = 14
	smaPeriod  = 20
)

type SnapshotBuilder struct {
	reader ChainReader

	mu      sync.Mutex
	history []pricePoint
}

type pricePoint struct {
	price float64
	ts    time.Time
}

func NewSnapshotBuilder(reader ChainReader) *SnapshotBuilder {
	return &SnapshotBuilder{reader: reader}
}

// Build 构建一份新快照。price 拉取失败会返回错误（快照没有价格没有意义），
// 其余字段失败仅记日志并保留零值。
func (b *SnapshotBuilder) Build(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: time.Now()}

	price, err := b.reader.GetTokenPrice(ctx)
	if err != nil {
		return snap, err
	}
	snap.Price = price
	b.record(price, snap.TakenAt)

	if vol, err := b.reader.GetVolume24h(ctx); err == nil {
		snap.Volume24h = vol
	} else {
		logger.Warnf("[market] 拉取 24h 成交量失败: %v", err)
	}
	if mc, err := b.reader.MarketCap(ctx); err == nil {
		snap.MarketCap = mc
	} else {
		logger.Warnf("[market] 拉取市值失败: %v", err)
	}
	if holders, err := b.reader.HolderCount(ctx); err == nil {
		snap.HolderCount = holders
	} else {
		logger.Warnf("[market] 拉取持有人数失败: %v", err)
	}
	if txns, err := b.reader.RecentTransactions(ctx, 10); err == nil {
		snap.RecentTxns = txns
	} else {
		logger.Warnf("[market] 拉取近期交易失败: %v", err)
	}

	snap.PriceChangePct = b.changePct(price)
	snap.Momentum = b.momentum()
	return snap, nil
}

func (b *SnapshotBuilder) record(price float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, pricePoint{price: price, ts: ts})
	if len(b.history) > historyMax {
		b.history = b.history[len(b.history)-historyMax:]
	}
}

// changePct 相对历史窗口最早一笔价格的涨跌幅（%）。
func (b *SnapshotBuilder) changePct(current float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) < 2 {
		return 0
	}
	base := b.history[0].price
	if base <= 0 {
		return 0
	}
	return (current - base) / base * 100
}

// momentum 基于价格历史计算 RSI14/SMA20；样本不足时 Valid=false。
func (b *SnapshotBuilder) momentum() Momentum {
	b.mu.Lock()
	prices := make([]float64, len(b.history))
	for i, p := range b.history {
		prices[i] = p.price
	}
	b.mu.Unlock()

	if len(prices) <= rsiPeriod || len(prices) < smaPeriod {
		return Momentum{}
	}
	rsi := talib.Rsi(prices, rsiPeriod)
	sma := talib.Sma(prices, smaPeriod)
	return Momentum{
		RSI14: rsi[len(rsi)-1],
		SMA20: sma[len(sma)-1],
		Valid: true,
	}
}

// HistoryLen 供状态接口与测试观察历史积累情况。
func (b *SnapshotBuilder) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// History 返回价格历史拷贝（升序），供报表绘图使用。
func (b *SnapshotBuilder) History() ([]float64, []time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prices := make([]float64, len(b.history))
	times := make([]time.Time, len(b.history))
	for i, p := range b.history {
		prices[i] = p.price
		times[i] = p.ts
	}
	return prices, times
}
