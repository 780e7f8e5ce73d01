package status

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mintpilot/internal/decision"
	"mintpilot/internal/gateway/database"
)

// LoopStatus 循环驱动器的可观测面，由 agent 的两个 Driver 实现。
type LoopStatus interface {
	State() string
	TickCount() uint64
	LastTickAt() time.Time
}

// DecisionReader 决策与价格的查询面，由 DecisionLogStore 实现。
type DecisionReader interface {
	RecentDecisions(ctx context.Context, limit int) ([]decision.Record, error)
	PricesSince(ctx context.Context, since time.Time) ([]database.PricePoint, error)
}

// Router 状态与报表 API。
type Router struct {
	trading   LoopStatus
	marketing LoopStatus
	store     DecisionReader
	wallet    string
	startedAt time.Time
}

type Params struct {
	Trading   LoopStatus
	Marketing LoopStatus
	Store     DecisionReader
	Wallet    string
}

func NewRouter(p Params) *Router {
	return &Router{
		trading:   p.Trading,
		marketing: p.Marketing,
		store:     p.Store,
		wallet:    p.Wallet,
		startedAt: time.Now(),
	}
}

// Register 挂载状态路由。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/report/chart", r.handleChart)
}

type loopView struct {
	State      string `json:"state"`
	TickCount  uint64 `json:"tick_count"`
	LastTickAt string `json:"last_tick_at,omitempty"`
}

func viewOf(l LoopStatus) loopView {
	if l == nil {
		return loopView{State: "disabled"}
	}
	v := loopView{State: l.State(), TickCount: l.TickCount()}
	if at := l.LastTickAt(); !at.IsZero() {
		v.LastTickAt = at.Format(time.RFC3339)
	}
	return v
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"wallet":     r.wallet,
		"uptime_sec": int(time.Since(r.startedAt).Seconds()),
		"trading":    viewOf(r.trading),
		"marketing":  viewOf(r.marketing),
	})
}

type decisionView struct {
	TraceID    string  `json:"trace_id"`
	Loop       string  `json:"loop"`
	ProviderID string  `json:"provider_id"`
	Action     string  `json:"action"`
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Price      float64 `json:"price"`
	Executed   bool    `json:"executed"`
	DecidedAt  string  `json:"decided_at"`
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "决策存储未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := r.store.RecentDecisions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]decisionView, 0, len(records))
	for _, rec := range records {
		out = append(out, decisionView{
			TraceID:    rec.TraceID,
			Loop:       rec.Loop,
			ProviderID: rec.ProviderID,
			Action:     rec.Decision.Action,
			Amount:     rec.Decision.Amount,
			Confidence: rec.Decision.Confidence,
			Reasoning:  decision.TrimTo(rec.Decision.Reasoning, 300),
			Price:      rec.Price,
			Executed:   rec.Executed,
			DecidedAt:  rec.DecidedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out})
}

func (r *Router) handleChart(c *gin.Context) {
	if r.store == nil {
		c.String(http.StatusServiceUnavailable, "决策存储未启用")
		return
	}
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 || hours > 24*14 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	prices, err := r.store.PricesSince(c.Request.Context(), since)
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("读取价格失败: %v", err))
		return
	}
	records, err := r.store.RecentDecisions(c.Request.Context(), 500)
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("读取决策失败: %v", err))
		return
	}

	chart := buildPriceChart(prices, records, since)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := chart.Render(c.Writer); err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("渲染图表失败: %v", err))
	}
}
