package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mintpilot/internal/config"
	"mintpilot/internal/decision"
	"mintpilot/internal/gateway/provider"
	sol "mintpilot/internal/gateway/solana"
	"mintpilot/internal/logger"
	"mintpilot/internal/market"
	tradingpkg "mintpilot/internal/pkg/trading"
)

// confidenceThreshold 执行门槛。低于等于此值的决策只记录不执行。
const confidenceThreshold = 0.7

// SnapshotSource 每个 tick 提供一份市场快照。
type SnapshotSource interface {
	Build(ctx context.Context) (market.Snapshot, error)
}

// ChainExecutor 链上执行面，由 gateway/solana 的 Client 实现。
type ChainExecutor interface {
	SubmitTrade(ctx context.Context, side sol.TradeSide, amount float64) (string, error)
	CollectFees(ctx context.Context) (float64, error)
	BuybackAndBurn(ctx context.Context, amountSOL, burnPct float64) (string, error)
	AddLiquidity(ctx context.Context, amountSOL float64) error
	WalletBalance(ctx context.Context) (float64, error)
}

// DecisionRecorder 决策落库面，由 gateway/database 的 DecisionLogStore 实现。
type DecisionRecorder interface {
	InsertDecision(ctx context.Context, rec decision.Record) error
	MarkExecuted(ctx context.Context, traceID, signature string) error
	InsertPrice(ctx context.Context, price float64, at time.Time) error
}

// TradingParams 交易循环的装配参数。
type TradingParams struct {
	Provider  provider.ModelProvider
	Snapshots SnapshotSource
	Executor  ChainExecutor
	Store     DecisionRecorder
	Trading   config.TradingConfig
	Buyback   config.BuybackConfig
	MaxTokens int
}

// TradingDriver 交易循环：快照 → 模型 → 决策分发，外加独立的回购触发。
type TradingDriver struct {
	*loopCore

	provider  provider.ModelProvider
	snapshots SnapshotSource
	executor  ChainExecutor
	store     DecisionRecorder
	trading   config.TradingConfig
	buyback   config.BuybackConfig
	maxTokens int
}

func NewTradingDriver(p TradingParams) *TradingDriver {
	d := &TradingDriver{
		provider:  p.Provider,
		snapshots: p.Snapshots,
		executor:  p.Executor,
		store:     p.Store,
		trading:   p.Trading,
		buyback:   p.Buyback,
		maxTokens: p.MaxTokens,
	}
	d.loopCore = newLoopCore("trading", p.Trading.Interval(), d.tick)
	return d
}

// tick 单个决策周期。任何一步失败只记日志，循环继续。
func (d *TradingDriver) tick(ctx context.Context) {
	traceID := uuid.NewString()

	snap, err := d.snapshots.Build(ctx)
	if err != nil {
		logger.Errorf("[trading] %s 构建快照失败: %v", traceID, err)
		return
	}
	if d.store != nil {
		if err := d.store.InsertPrice(ctx, snap.Price, snap.TakenAt); err != nil {
			logger.Warnf("[trading] %s 记录价格失败: %v", traceID, err)
		}
	}

	// 回购触发独立于模型决策，两条路径可能在同一 tick 内同时交易。
	// 当前不做串行化，重叠风险记录在案。
	if d.buyback.Enabled && snap.Price < d.buyback.TriggerPrice {
		d.runBuyback(ctx, traceID, snap.Price)
	}

	dec, raw := d.decide(ctx, traceID, snap)

	rec := decision.Record{
		TraceID:    traceID,
		Loop:       "trading",
		ProviderID: d.provider.ID(),
		Decision:   dec,
		RawOutput:  raw,
		Price:      snap.Price,
		DecidedAt:  time.Now(),
	}

	executedSig := ""
	if dec.Confidence > confidenceThreshold {
		executedSig = d.dispatch(ctx, traceID, dec)
		rec.Executed = executedSig != ""
	} else {
		logger.Infof("[trading] %s 置信度 %.2f 未过门槛，仅记录: %s %f",
			traceID, dec.Confidence, dec.Action, dec.Amount)
	}

	if d.store != nil {
		if err := d.store.InsertDecision(ctx, rec); err != nil {
			logger.Warnf("[trading] %s 决策落库失败: %v", traceID, err)
		} else if executedSig != "" {
			if err := d.store.MarkExecuted(ctx, traceID, executedSig); err != nil {
				logger.Warnf("[trading] %s 回填签名失败: %v", traceID, err)
			}
		}
	}
}

// decide 调模型并解析。解析失败回退为 hold 决策，原文进 reasoning。
func (d *TradingDriver) decide(ctx context.Context, traceID string, snap market.Snapshot) (decision.Decision, string) {
	payload := provider.ChatPayload{
		System:     decision.TradingSystemPrompt(d.trading.Strategy),
		User:       decision.BuildTradingPrompt(snap, d.trading.MaxRiskFraction),
		MaxTokens:  d.maxTokens,
		ExpectJSON: d.provider.ExpectsJSON(),
	}
	raw, err := d.provider.Call(ctx, payload)
	if err != nil {
		logger.Errorf("[trading] %s 模型调用失败: %v", traceID, err)
		return decision.HoldFallback("model call failed: " + err.Error()), ""
	}
	logger.LogLLMPayload(d.provider.ID(), raw)

	dec, err := decision.Parse(raw)
	if err != nil {
		logger.Warnf("[trading] %s 模型输出不可解析，按 hold 处理: %v", traceID, err)
		return decision.HoldFallback(raw), raw
	}
	return dec, raw
}

// dispatch 按动作执行。返回交易签名，无链上动作或失败时为空。
func (d *TradingDriver) dispatch(ctx context.Context, traceID string, dec decision.Decision) string {
	switch dec.Action {
	case decision.ActionBuy:
		amount := dec.Amount
		if balance, err := d.executor.WalletBalance(ctx); err != nil {
			logger.Warnf("[trading] %s 查询余额失败，跳过风控钳制: %v", traceID, err)
		} else {
			amount = tradingpkg.ClampBuyAmount(dec.Amount, balance, d.trading.MaxRiskFraction)
			if amount < dec.Amount {
				logger.Infof("[trading] %s 买入金额 %.4f 钳制为 %.4f（余额 %.4f × %.2f）",
					traceID, dec.Amount, amount, balance, d.trading.MaxRiskFraction)
			}
		}
		if amount <= 0 {
			logger.Warnf("[trading] %s 钳制后金额为零，放弃买入", traceID)
			return ""
		}
		sig, err := d.executor.SubmitTrade(ctx, sol.SideBuy, amount)
		if err != nil {
			logger.Errorf("[trading] %s 买入执行失败: %v", traceID, err)
			return ""
		}
		return sig
	case decision.ActionSell:
		sig, err := d.executor.SubmitTrade(ctx, sol.SideSell, dec.Amount)
		if err != nil {
			logger.Errorf("[trading] %s 卖出执行失败: %v", traceID, err)
			return ""
		}
		return sig
	case decision.ActionBurn:
		sig, err := d.executor.BuybackAndBurn(ctx, dec.Amount, 100)
		if err != nil {
			logger.Errorf("[trading] %s 回购销毁执行失败: %v", traceID, err)
			return ""
		}
		return sig
	case decision.ActionAddLP:
		if err := d.executor.AddLiquidity(ctx, dec.Amount); err != nil {
			logger.Errorf("[trading] %s 注入流动性失败: %v", traceID, err)
		}
		return ""
	case decision.ActionHold:
		return ""
	default:
		logger.Warnf("[trading] %s 未知动作 %q，忽略", traceID, dec.Action)
		return ""
	}
}

// runBuyback 价格击穿触发线后的回购路径：归集手续费并全额回购。
func (d *TradingDriver) runBuyback(ctx context.Context, traceID string, price float64) {
	logger.Infof("[trading] %s 价格 %.12f 低于触发线 %.12f，进入回购",
		traceID, price, d.buyback.TriggerPrice)

	fees, err := d.executor.CollectFees(ctx)
	if err != nil {
		logger.Errorf("[trading] %s 归集手续费失败: %v", traceID, err)
		return
	}
	if fees <= 0 {
		logger.Infof("[trading] %s 无可用手续费，跳过回购", traceID)
		return
	}
	sig, err := d.executor.BuybackAndBurn(ctx, fees, d.buyback.BurnPct)
	if err != nil {
		logger.Errorf("[trading] %s 回购执行失败: %v", traceID, err)
		return
	}
	logger.Infof("[trading] %s 回购完成 %.6f SOL 签名=%s", traceID, fees, sig)

	if d.buyback.LPPct > 0 {
		lpShare := decimal.NewFromFloat(fees).
			Mul(decimal.NewFromFloat(d.buyback.LPPct)).
			Div(decimal.NewFromInt(100))
		lp, _ := lpShare.Float64()
		if err := d.executor.AddLiquidity(ctx, lp); err != nil {
			logger.Errorf("[trading] %s 流动性份额注入失败: %v", traceID, err)
		}
	}
}
