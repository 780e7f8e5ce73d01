package decision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 中文说明：
// 模型回复 -> 决策结构的解析。解析失败时返回显式的 ParseFailure，
// 由调用方决定是否用 HoldFallback 兜底；解析器自身从不吞错，这样测试
// 可以区分“模型真的决定 hold”与“回复没解析出来”。

// ParseFailure 回复文本无法解析为决策。Raw 保留原文供兜底与排查。
type ParseFailure struct {
	Raw string
	Err error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("decision parse failed: %v", e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// Parse 严格解析回复文本为 Decision。
// 容忍 markdown 代码块与前后杂文（取首个 JSON 对象），但不做任何字段校验：
// confidence 越界、action 不在集合内都原样返回，由上层策略自行取舍。
func Parse(raw string) (Decision, error) {
	var d Decision
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return d, &ParseFailure{Raw: raw, Err: fmt.Errorf("no JSON object found")}
	}
	if err := json.Unmarshal([]byte(candidate), &d); err != nil {
		return Decision{}, &ParseFailure{Raw: raw, Err: err}
	}
	return d, nil
}

// ParseAllocation 解析营销分配计划，规则与 Parse 一致。
func ParseAllocation(raw string) (AllocationPlan, error) {
	var p AllocationPlan
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return p, &ParseFailure{Raw: raw, Err: fmt.Errorf("no JSON object found")}
	}
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return AllocationPlan{}, &ParseFailure{Raw: raw, Err: err}
	}
	return p, nil
}

// HoldFallback 解析失败时的兜底决策：hold、置信度 0.5、原文作为理由。
func HoldFallback(raw string) Decision {
	return Decision{Action: ActionHold, Confidence: 0.5, Reasoning: raw}
}

// extractJSONObject 取文本中首个配平的 JSON 对象；找不到返回空串。
// 字符串字面量内的花括号与转义会被正确跳过。
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	// 优先剥掉 ```json 围栏
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			if inner := strings.TrimSpace(rest[:end]); strings.HasPrefix(inner, "{") {
				s = inner
			}
		}
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
