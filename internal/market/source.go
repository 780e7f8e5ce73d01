package market

import (
	"context"
	"time"
)

// TxnSummary 近期链上交易的摘要（来自 signature 历史）。
type TxnSummary struct {
	Signature string
	Slot      uint64
	BlockTime int64
	Failed    bool
}

// Snapshot 单个决策周期使用的市场数据快照。每个 tick 重新构建，用完即弃。
type Snapshot struct {
	Price          float64 // SOL 计价
	Volume24h      float64
	PriceChangePct float64
	MarketCap      float64
	HolderCount    int
	RecentTxns     []TxnSummary
	Momentum       Momentum
	TakenAt        time.Time
}

// Momentum 从价格历史衍生的动能指标；样本不足时为零值。
type Momentum struct {
	RSI14 float64
	SMA20 float64
	Valid bool
}

// ChainReader 统一对接链上数据源。gateway/solana 提供实现。
type ChainReader interface {
	// GetTokenPrice 返回当前代币价格（SOL）。
	GetTokenPrice(ctx context.Context) (float64, error)
	// GetVolume24h 返回近 24h 成交量估计（SOL）。
	GetVolume24h(ctx context.Context) (float64, error)
	// MarketCap 返回按当前价与总供给计算的市值（SOL）。
	MarketCap(ctx context.Context) (float64, error)
	// HolderCount 返回持有人数量估计。
	HolderCount(ctx context.Context) (int, error)
	// RecentTransactions 返回最近 limit 笔交易摘要，按时间降序。
	RecentTransactions(ctx context.Context, limit int) ([]TxnSummary, error)
}
