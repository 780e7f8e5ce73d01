package agent

import (
	"context"

	"github.com/google/uuid"

	"mintpilot/internal/config"
	"mintpilot/internal/decision"
	"mintpilot/internal/gateway/marketing"
	"mintpilot/internal/gateway/provider"
	"mintpilot/internal/logger"
)

// MarketingBackend 运营后端接口，由 gateway/marketing 的 Client 实现。
type MarketingBackend interface {
	GetMetrics(ctx context.Context) ([]decision.PlatformMetric, error)
	Allocate(ctx context.Context, alloc decision.Allocation) (*marketing.AllocateResult, error)
	Track(ctx context.Context, traceID string, plan decision.AllocationPlan) error
}

// PlanRecorder 分配方案落库。
type PlanRecorder interface {
	InsertAllocationPlan(ctx context.Context, traceID string, plan decision.AllocationPlan) error
}

// MarketingParams 营销循环装配参数。
type MarketingParams struct {
	Provider  provider.ModelProvider
	Backend   MarketingBackend
	Store     PlanRecorder
	Cfg       config.MarketingConfig
	MaxTokens int
}

// MarketingDriver 营销循环：平台指标 → 模型分配 → 逐条提交。
// 各条分配独立提交，某条失败不回滚其他条目。
type MarketingDriver struct {
	*loopCore

	provider  provider.ModelProvider
	backend   MarketingBackend
	store     PlanRecorder
	cfg       config.MarketingConfig
	maxTokens int
}

func NewMarketingDriver(p MarketingParams) *MarketingDriver {
	d := &MarketingDriver{
		provider:  p.Provider,
		backend:   p.Backend,
		store:     p.Store,
		cfg:       p.Cfg,
		maxTokens: p.MaxTokens,
	}
	d.loopCore = newLoopCore("marketing", p.Cfg.Interval(), d.tick)
	return d
}

func (d *MarketingDriver) tick(ctx context.Context) {
	traceID := uuid.NewString()

	metrics, err := d.backend.GetMetrics(ctx)
	if err != nil {
		logger.Errorf("[marketing] %s 拉取指标失败: %v", traceID, err)
		return
	}

	plan := d.decide(ctx, traceID, metrics)
	if len(plan.Allocations) == 0 {
		logger.Infof("[marketing] %s 本周期无分配", traceID)
		return
	}
	logger.Infof("[marketing] %s 分配方案:\n%s", traceID, decision.FormatAllocationTable(plan))

	submitted := 0
	for _, alloc := range plan.Allocations {
		if alloc.Budget <= 0 {
			continue
		}
		res, err := d.backend.Allocate(ctx, alloc)
		if err != nil {
			logger.Errorf("[marketing] %s 分配提交失败: %v", traceID, err)
			continue
		}
		submitted++
		logger.Infof("[marketing] %s %s 提交 %.2f USD campaign=%s",
			traceID, alloc.Platform, alloc.Budget, res.CampaignID)
	}

	if err := d.backend.Track(ctx, traceID, plan); err != nil {
		logger.Warnf("[marketing] %s 追踪上报失败: %v", traceID, err)
	}
	if d.store != nil {
		if err := d.store.InsertAllocationPlan(ctx, traceID, plan); err != nil {
			logger.Warnf("[marketing] %s 方案落库失败: %v", traceID, err)
		}
	}
	logger.Infof("[marketing] %s 周期完成，提交 %d/%d 条", traceID, submitted, len(plan.Allocations))
}

// decide 调模型生成分配方案；模型不可用或不可解析时按平台均分兜底。
func (d *MarketingDriver) decide(ctx context.Context, traceID string, metrics []decision.PlatformMetric) decision.AllocationPlan {
	payload := provider.ChatPayload{
		System:     decision.MarketingSystemPrompt(),
		User:       decision.BuildMarketingPrompt(metrics, d.cfg.BudgetUSD),
		MaxTokens:  d.maxTokens,
		ExpectJSON: d.provider.ExpectsJSON(),
	}
	raw, err := d.provider.Call(ctx, payload)
	if err != nil {
		logger.Errorf("[marketing] %s 模型调用失败，按均分兜底: %v", traceID, err)
		return d.fallbackPlan(metrics, "model call failed: "+err.Error())
	}
	logger.LogLLMPayload(d.provider.ID(), raw)

	plan, err := decision.ParseAllocation(raw)
	if err != nil {
		logger.Warnf("[marketing] %s 模型输出不可解析，按均分兜底: %v", traceID, err)
		return d.fallbackPlan(metrics, raw)
	}
	return plan
}

func (d *MarketingDriver) fallbackPlan(metrics []decision.PlatformMetric, reasoning string) decision.AllocationPlan {
	platforms := make([]string, 0, len(metrics))
	for _, m := range metrics {
		platforms = append(platforms, m.Platform)
	}
	return decision.AllocationPlan{
		Allocations: marketing.SplitEvenly(d.cfg.BudgetUSD, platforms),
		Reasoning:   reasoning,
		Confidence:  0.5,
	}
}
