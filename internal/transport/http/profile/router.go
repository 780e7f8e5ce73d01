package profile

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"mintpilot/internal/config/writer"
	"mintpilot/internal/logger"
)

// Router 策略档位 API。
type Router struct {
	writer *writer.ProfileWriter
}

func NewRouter(profilesPath string) *Router {
	return &Router{writer: writer.NewProfileWriter(profilesPath)}
}

// Register 挂载档位路由。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("", r.handleList)
	group.GET("/:name", r.handleGet)
	group.PUT("/:name", r.handleUpdate)
	group.DELETE("/:name", r.handleDelete)
}

// ProfileResponse 档位的 API 表示。
type ProfileResponse struct {
	Name            string  `json:"name"`
	Strategy        string  `json:"strategy,omitempty"`
	SystemPrompt    string  `json:"system_prompt,omitempty"`
	MaxRiskFraction float64 `json:"max_risk_fraction,omitempty"`
	StopLossPct     float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct   float64 `json:"take_profit_pct,omitempty"`
	IntervalSeconds int     `json:"interval_seconds,omitempty"`
	BuybackTrigger  float64 `json:"buyback_trigger,omitempty"`
	BurnPct         float64 `json:"burn_pct,omitempty"`
	Default         bool    `json:"default,omitempty"`
}

func toResponse(name string, e writer.ProfileEntry) ProfileResponse {
	return ProfileResponse{
		Name:            name,
		Strategy:        e.Strategy,
		SystemPrompt:    e.SystemPrompt,
		MaxRiskFraction: e.MaxRiskFraction,
		StopLossPct:     e.StopLossPct,
		TakeProfitPct:   e.TakeProfitPct,
		IntervalSeconds: e.IntervalSeconds,
		BuybackTrigger:  e.BuybackTrigger,
		BurnPct:         e.BurnPct,
		Default:         e.Default,
	}
}

func toEntry(p ProfileResponse) writer.ProfileEntry {
	return writer.ProfileEntry{
		Strategy:        p.Strategy,
		SystemPrompt:    p.SystemPrompt,
		MaxRiskFraction: p.MaxRiskFraction,
		StopLossPct:     p.StopLossPct,
		TakeProfitPct:   p.TakeProfitPct,
		IntervalSeconds: p.IntervalSeconds,
		BuybackTrigger:  p.BuybackTrigger,
		BurnPct:         p.BurnPct,
		Default:         p.Default,
	}
}

func (r *Router) handleList(c *gin.Context) {
	cfg, err := r.writer.Read()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]ProfileResponse, 0, len(cfg.Profiles))
	for name, entry := range cfg.Profiles {
		out = append(out, toResponse(name, entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, gin.H{"profiles": out})
}

func (r *Router) handleGet(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	entry, err := r.writer.GetProfile(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponse(name, *entry))
}

func (r *Router) handleUpdate(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "名称不能为空"})
		return
	}
	var body ProfileResponse
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.writer.UpdateProfile(name, toEntry(body)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[profile] 档位 %s 已更新", name)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleDelete(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if err := r.writer.DeleteProfile(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[profile] 档位 %s 已删除", name)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
