package marketing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"mintpilot/internal/decision"
	"mintpilot/internal/logger"
)

// Client 运营后端的 HTTP 客户端。所有路径挂在 /api/marketing 下。
type Client struct {
	http *resty.Client
}

// Config 运营后端接入参数。
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("缺少营销 API 地址")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	http := resty.New()
	http.SetBaseURL(base)
	http.SetTimeout(timeout)
	http.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		http.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{http: http}, nil
}

// GetMetrics 拉取各平台近期表现。
func (c *Client) GetMetrics(ctx context.Context) ([]decision.PlatformMetric, error) {
	var out struct {
		Metrics []decision.PlatformMetric `json:"metrics"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/marketing/metrics")
	if err != nil {
		return nil, fmt.Errorf("拉取营销指标失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("营销指标接口返回 %s", resp.Status())
	}
	return out.Metrics, nil
}

// AllocateResult 单条分配的回执。
type AllocateResult struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
}

// Allocate 提交一条预算分配。每条独立提交，失败互不影响。
func (c *Client) Allocate(ctx context.Context, alloc decision.Allocation) (*AllocateResult, error) {
	body := map[string]any{
		"platform":   alloc.Platform,
		"budget_usd": decimal.NewFromFloat(alloc.Budget).Round(2),
		"focus":      alloc.Focus,
	}
	var out AllocateResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/api/marketing/allocate")
	if err != nil {
		return nil, fmt.Errorf("提交分配失败 (%s): %w", alloc.Platform, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("分配接口返回 %s (%s)", resp.Status(), alloc.Platform)
	}
	return &out, nil
}

// Track 上报本周期的分配方案全貌，供运营侧归因。
func (c *Client) Track(ctx context.Context, traceID string, plan decision.AllocationPlan) error {
	body := map[string]any{
		"trace_id":    traceID,
		"allocations": plan.Allocations,
		"reasoning":   plan.Reasoning,
		"confidence":  plan.Confidence,
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/marketing/track")
	if err != nil {
		return fmt.Errorf("上报追踪失败: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("追踪接口返回 %s", resp.Status())
	}
	return nil
}

// CampaignReport 运营侧的投放报告。
type CampaignReport struct {
	CampaignID string  `json:"campaign_id"`
	Platform   string  `json:"platform"`
	SpendUSD   float64 `json:"spend_usd"`
	NewHolders int     `json:"new_holders"`
	Active     bool    `json:"active"`
}

// Report 拉取投放报告列表。
func (c *Client) Report(ctx context.Context) ([]CampaignReport, error) {
	var out struct {
		Campaigns []CampaignReport `json:"campaigns"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/marketing/report")
	if err != nil {
		return nil, fmt.Errorf("拉取投放报告失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("报告接口返回 %s", resp.Status())
	}
	return out.Campaigns, nil
}

// PauseCampaign 暂停指定投放。
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) error {
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id 不能为空")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", campaignID).
		Post("/api/marketing/campaigns/{id}/pause")
	if err != nil {
		return fmt.Errorf("暂停投放失败: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("暂停接口返回 %s", resp.Status())
	}
	logger.Infof("[marketing] 已暂停投放 %s", campaignID)
	return nil
}

// SplitEvenly 均分预算的兜底方案，用于模型未给出分配时。
func SplitEvenly(budgetUSD float64, platforms []string) []decision.Allocation {
	if budgetUSD <= 0 || len(platforms) == 0 {
		return nil
	}
	total := decimal.NewFromFloat(budgetUSD)
	share := total.Div(decimal.NewFromInt(int64(len(platforms)))).Round(2)
	out := make([]decision.Allocation, 0, len(platforms))
	remaining := total
	for i, p := range platforms {
		amt := share
		if i == len(platforms)-1 {
			amt = remaining // 尾差归最后一个平台
		}
		f, _ := amt.Float64()
		out = append(out, decision.Allocation{Platform: p, Budget: f, Focus: "general"})
		remaining = remaining.Sub(amt)
	}
	return out
}
