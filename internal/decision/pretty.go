package decision

import (
	"encoding/json"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrettyJSON 尝试对 JSON 文本进行缩进美化；失败则返回原文
func PrettyJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(b)
}

// TrimTo 限制字符串长度，超长则追加省略号
func TrimTo(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// FormatRecordsTable 把决策记录渲染为控制台表格，供日志与状态接口输出。
func FormatRecordsTable(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"time", "loop", "action", "amount", "conf", "exec", "reasoning"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "reasoning", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.DecidedAt.Format("01-02 15:04:05"),
			r.Loop,
			r.Decision.Action,
			r.Decision.Amount,
			r.Decision.Confidence,
			r.Executed,
			strings.ReplaceAll(r.Decision.Reasoning, "\n", " "),
		})
	}
	return t.Render()
}

// FormatAllocationTable 营销分配方案的表格渲染。
func FormatAllocationTable(plan AllocationPlan) string {
	if len(plan.Allocations) == 0 {
		return ""
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"platform", "budget_usd", "focus"})
	var total float64
	for _, a := range plan.Allocations {
		t.AppendRow(table.Row{a.Platform, a.Budget, a.Focus})
		total += a.Budget
	}
	t.AppendFooter(table.Row{"total", total, ""})
	return t.Render()
}
