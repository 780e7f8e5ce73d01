package decision

import "time"

// 中文说明：
// 本文件定义 AI 决策相关的通用数据结构，供循环驱动器与解析器使用。

// 动作集合。解析器不做白名单校验（见 parser.go），这里仅集中定义常量。
const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionHold  = "hold"
	ActionBurn  = "burn"
	ActionAddLP = "add_lp"
)

// Decision 单次 AI 决策。Confidence 取值约定为 [0,1]，但解析时原样保留，
// 不截断越界值。
type Decision struct {
	Action     string  `json:"action"`
	Amount     float64 `json:"amount,omitempty"` // SOL 计价的交易量（仅 buy/sell/add_lp）
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Allocation 营销预算在单个平台上的分配。
type Allocation struct {
	Platform string  `json:"platform"`
	Budget   float64 `json:"budget"`
	Focus    string  `json:"focus,omitempty"`
}

// AllocationPlan 营销循环的决策输出（多平台）。
type AllocationPlan struct {
	Allocations []Allocation `json:"allocations"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Confidence  float64      `json:"confidence"`
}

// Record 决策落库记录，带 trace id 便于和链上签名对账。
type Record struct {
	TraceID    string
	Loop       string // trading / marketing
	ProviderID string
	Decision   Decision
	RawOutput  string
	Price      float64
	Executed   bool
	DecidedAt  time.Time
}
