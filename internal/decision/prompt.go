package decision

import (
	"fmt"
	"strings"
	"time"

	"mintpilot/internal/market"
)

// 中文说明：
// 提示词在这里集中拼装。System 提示声明角色与输出契约（严格 JSON），
// User 提示携带当前快照数据。模型输出交给 Parse 处理，这里不做校验。

const tradingSystemPrompt = `You are the autonomous treasury manager of a Solana token. ` +
	`Analyze the market snapshot and decide one action. ` +
	`Respond with a single JSON object only, no prose, no markdown fence: ` +
	`{"action":"buy|sell|hold|burn|add_lp","amount":<number>,"reasoning":"<string>","confidence":<0..1>}`

const marketingSystemPrompt = `You are the marketing budget allocator of a Solana token project. ` +
	`Split the budget across the given platforms. ` +
	`Respond with a single JSON object only: ` +
	`{"allocations":[{"platform":"<string>","budget":<number>,"focus":"<string>"}],"reasoning":"<string>","confidence":<0..1>}`

// TradingSystemPrompt 交易决策的 system 提示；strategy 非空时追加风格约束。
func TradingSystemPrompt(strategy string) string {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return tradingSystemPrompt
	}
	return tradingSystemPrompt + fmt.Sprintf(` Trading style: %s.`, strategy)
}

// BuildTradingPrompt 把快照渲染为 user 提示。
func BuildTradingPrompt(snap market.Snapshot, maxRiskFraction float64) string {
	var b strings.Builder
	b.WriteString("# Market Snapshot\n")
	b.WriteString(fmt.Sprintf("- time: %s\n", snap.TakenAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("- price: %.12f SOL\n", snap.Price))
	b.WriteString(fmt.Sprintf("- change: %+.2f%%\n", snap.PriceChangePct))
	b.WriteString(fmt.Sprintf("- volume_24h: %.4f SOL (approx)\n", snap.Volume24h))
	b.WriteString(fmt.Sprintf("- market_cap: %.4f SOL\n", snap.MarketCap))
	b.WriteString(fmt.Sprintf("- holders: %d\n", snap.HolderCount))
	if snap.Momentum.Valid {
		b.WriteString(fmt.Sprintf("- rsi14: %.2f\n", snap.Momentum.RSI14))
		b.WriteString(fmt.Sprintf("- sma20: %.12f\n", snap.Momentum.SMA20))
	}
	if len(snap.RecentTxns) > 0 {
		b.WriteString("\n# Recent Transactions\n")
		for _, tx := range snap.RecentTxns {
			status := "ok"
			if tx.Failed {
				status = "failed"
			}
			b.WriteString(fmt.Sprintf("- slot=%d status=%s sig=%s\n", tx.Slot, status, shortSig(tx.Signature)))
		}
	}
	b.WriteString("\n# Constraints\n")
	b.WriteString(fmt.Sprintf("- max fraction of treasury per trade: %.2f\n", maxRiskFraction))
	b.WriteString("- amount is denominated in SOL for buy, tokens for sell\n")
	b.WriteString("\nDecide now.\n")
	return b.String()
}

// PlatformMetric 营销平台的近期表现，来自运营后端。
type PlatformMetric struct {
	Platform    string  `json:"platform"`
	Followers   int     `json:"followers"`
	Engagement  float64 `json:"engagement"`
	SpendUSD    float64 `json:"spend_usd"`
	NewHolders  int     `json:"new_holders"`
	LastFocus   string  `json:"last_focus"`
	WindowHours int     `json:"window_hours"`
}

// MarketingSystemPrompt 营销分配的 system 提示。
func MarketingSystemPrompt() string {
	return marketingSystemPrompt
}

// BuildMarketingPrompt 把平台指标与预算渲染为 user 提示。
func BuildMarketingPrompt(metrics []PlatformMetric, budgetUSD float64) string {
	var b strings.Builder
	b.WriteString("# Platform Metrics\n")
	if len(metrics) == 0 {
		b.WriteString("(no metrics available)\n")
	}
	for _, m := range metrics {
		b.WriteString(fmt.Sprintf("## %s\n", m.Platform))
		b.WriteString(fmt.Sprintf("- followers: %d\n", m.Followers))
		b.WriteString(fmt.Sprintf("- engagement: %.4f\n", m.Engagement))
		b.WriteString(fmt.Sprintf("- spend_usd: %.2f (last %dh)\n", m.SpendUSD, m.WindowHours))
		b.WriteString(fmt.Sprintf("- new_holders: %d\n", m.NewHolders))
		if m.LastFocus != "" {
			b.WriteString(fmt.Sprintf("- last_focus: %s\n", m.LastFocus))
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("# Budget\nTotal budget this cycle: %.2f USD.\n", budgetUSD))
	b.WriteString("Allocate it across the platforms above. Unspent budget is allowed.\n")
	return b.String()
}

func shortSig(sig string) string {
	if len(sig) <= 16 {
		return sig
	}
	return sig[:8] + ".." + sig[len(sig)-4:]
}
