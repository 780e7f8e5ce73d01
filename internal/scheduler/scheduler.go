package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"mintpilot/internal/config"
	"mintpilot/internal/decision"
	"mintpilot/internal/gateway/database"
	"mintpilot/internal/gateway/marketing"
	"mintpilot/internal/logger"
)

// ChainSweeper 定时回购巡检需要的链上操作子集。
type ChainSweeper interface {
	GetTokenPrice(ctx context.Context) (float64, error)
	CollectFees(ctx context.Context) (float64, error)
	BuybackAndBurn(ctx context.Context, amountSOL, burnPct float64) (string, error)
	AddLiquidity(ctx context.Context, amountSOL float64) error
}

// Scheduler 承载全部 cron 任务：日报、回购巡检、周度营销报告。
type Scheduler struct {
	Cron      *cron.Cron
	Chain     ChainSweeper
	Marketing *marketing.Client
	Store     *database.DecisionLogStore
	Buyback   config.BuybackConfig
	Ctx       context.Context
}

func New(ctx context.Context, chain ChainSweeper, mkt *marketing.Client, store *database.DecisionLogStore, buyback config.BuybackConfig) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Chain:     chain,
		Marketing: mkt,
		Store:     store,
		Buyback:   buyback,
		Ctx:       ctx,
	}
}

// RegisterAll 注册全部定时任务。cron 表达式为 6 段（含秒），留空表示关闭该任务。
func (s *Scheduler) RegisterAll(cfg config.ScheduleConfig) error {
	if err := s.register("日报", cfg.DailyReportCron, s.dailyReport); err != nil {
		return err
	}
	if err := s.register("回购巡检", cfg.BuybackSweepCron, s.buybackSweep); err != nil {
		return err
	}
	if err := s.register("周报", cfg.WeeklyReportCron, s.weeklyMarketingReport); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) register(name, spec string, job func()) error {
	if strings.TrimSpace(spec) == "" {
		logger.Infof("[scheduler] %s任务未配置 cron 表达式，跳过", name)
		return nil
	}
	if _, err := s.Cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("注册%s任务失败: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Infof("[scheduler] 已启动 %d 个定时任务", len(s.Cron.Entries()))
}

func (s *Scheduler) Stop() {
	s.Cron.Stop()
	logger.Infof("[scheduler] 已停止")
}

// RunDailyReportNow 手动触发日报（状态接口用）。
func (s *Scheduler) RunDailyReportNow() {
	s.dailyReport()
}

// dailyReport 汇总近 24h 决策并打印表格。
func (s *Scheduler) dailyReport() {
	logger.Infof("[scheduler] 生成日报")
	if s.Store == nil {
		return
	}
	records, err := s.Store.RecentDecisions(s.Ctx, 100)
	if err != nil {
		logger.Errorf("[scheduler] 日报读取决策失败: %v", err)
		return
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	var recent []decision.Record
	executed := 0
	for _, r := range records {
		if r.DecidedAt.Before(cutoff) {
			continue
		}
		recent = append(recent, r)
		if r.Executed {
			executed++
		}
	}
	if len(recent) == 0 {
		logger.Infof("[scheduler] 过去 24h 无决策")
		return
	}
	logger.Infof("[scheduler] 过去 24h 决策 %d 条，执行 %d 条:\n%s",
		len(recent), executed, decision.FormatRecordsTable(recent))
}

// buybackSweep tick 级触发之外的兜底巡检，逻辑与循环内一致。
func (s *Scheduler) buybackSweep() {
	if !s.Buyback.Enabled || s.Chain == nil {
		return
	}
	price, err := s.Chain.GetTokenPrice(s.Ctx)
	if err != nil {
		logger.Errorf("[scheduler] 回购巡检读价失败: %v", err)
		return
	}
	if price >= s.Buyback.TriggerPrice {
		return
	}
	logger.Infof("[scheduler] 巡检发现价格 %.12f 低于触发线 %.12f", price, s.Buyback.TriggerPrice)
	fees, err := s.Chain.CollectFees(s.Ctx)
	if err != nil {
		logger.Errorf("[scheduler] 巡检归集手续费失败: %v", err)
		return
	}
	if fees <= 0 {
		return
	}
	sig, err := s.Chain.BuybackAndBurn(s.Ctx, fees, s.Buyback.BurnPct)
	if err != nil {
		logger.Errorf("[scheduler] 巡检回购失败: %v", err)
		return
	}
	logger.Infof("[scheduler] 巡检回购完成 %.6f SOL 签名=%s", fees, sig)

	if s.Buyback.LPPct > 0 {
		lpShare := decimal.NewFromFloat(fees).
			Mul(decimal.NewFromFloat(s.Buyback.LPPct)).
			Div(decimal.NewFromInt(100))
		lp, _ := lpShare.Float64()
		if err := s.Chain.AddLiquidity(s.Ctx, lp); err != nil {
			logger.Errorf("[scheduler] 巡检流动性份额注入失败: %v", err)
		}
	}
}

// weeklyMarketingReport 拉取投放报告并落日志。
func (s *Scheduler) weeklyMarketingReport() {
	if s.Marketing == nil {
		return
	}
	campaigns, err := s.Marketing.Report(s.Ctx)
	if err != nil {
		logger.Errorf("[scheduler] 周报拉取失败: %v", err)
		return
	}
	var spend float64
	holders := 0
	active := 0
	for _, c := range campaigns {
		spend += c.SpendUSD
		holders += c.NewHolders
		if c.Active {
			active++
		}
	}
	logger.Infof("[scheduler] 周度营销报告: %d 个投放（%d 活跃），花费 %.2f USD，新增持有人 %d",
		len(campaigns), active, spend, holders)
}
