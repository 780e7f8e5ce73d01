package scheduler

import (
	"context"
	"testing"

	"mintpilot/internal/config"
)

type fakeSweeper struct {
	price     float64
	fees      float64
	feesCalls int
	buybacks  []float64
	lpAmounts []float64
}

func (f *fakeSweeper) GetTokenPrice(ctx context.Context) (float64, error) { return f.price, nil }

func (f *fakeSweeper) CollectFees(ctx context.Context) (float64, error) {
	f.feesCalls++
	return f.fees, nil
}

func (f *fakeSweeper) BuybackAndBurn(ctx context.Context, amountSOL, burnPct float64) (string, error) {
	f.buybacks = append(f.buybacks, amountSOL)
	return "sig-sweep", nil
}

func (f *fakeSweeper) AddLiquidity(ctx context.Context, amountSOL float64) error {
	f.lpAmounts = append(f.lpAmounts, amountSOL)
	return nil
}

func TestRegisterAllSkipsBlankCronSpecs(t *testing.T) {
	s := New(context.Background(), nil, nil, nil, config.BuybackConfig{})

	// 默认配置不带回购巡检表达式，注册必须成功且只挂载两个任务。
	cfg := config.ScheduleConfig{
		DailyReportCron:  "0 0 9 * * *",
		WeeklyReportCron: "0 0 9 * * 1",
	}
	if err := s.RegisterAll(cfg); err != nil {
		t.Fatalf("空表达式不应导致注册失败: %v", err)
	}
	if got := len(s.Cron.Entries()); got != 2 {
		t.Fatalf("应注册 2 个任务，实际 %d", got)
	}
}

func TestRegisterAllEmptyConfigRegistersNothing(t *testing.T) {
	s := New(context.Background(), nil, nil, nil, config.BuybackConfig{})
	if err := s.RegisterAll(config.ScheduleConfig{}); err != nil {
		t.Fatalf("全空配置不应报错: %v", err)
	}
	if got := len(s.Cron.Entries()); got != 0 {
		t.Fatalf("全空配置不应注册任务: %d", got)
	}
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), nil, nil, nil, config.BuybackConfig{})
	if err := s.RegisterAll(config.ScheduleConfig{DailyReportCron: "not-a-cron"}); err == nil {
		t.Fatal("非法表达式应报错")
	}
}

func TestBuybackSweepTriggersBelowPrice(t *testing.T) {
	chain := &fakeSweeper{price: 0.00009, fees: 1.5}
	s := New(context.Background(), chain, nil, nil,
		config.BuybackConfig{Enabled: true, TriggerPrice: 0.0001, BurnPct: 50})

	s.buybackSweep()

	if chain.feesCalls != 1 {
		t.Fatalf("应归集手续费: calls=%d", chain.feesCalls)
	}
	if len(chain.buybacks) != 1 || chain.buybacks[0] != 1.5 {
		t.Fatalf("应以归集金额回购，实际: %v", chain.buybacks)
	}
}

func TestBuybackSweepRoutesLPShare(t *testing.T) {
	chain := &fakeSweeper{price: 0.00009, fees: 2.0}
	s := New(context.Background(), chain, nil, nil,
		config.BuybackConfig{Enabled: true, TriggerPrice: 0.0001, BurnPct: 70, LPPct: 30})

	s.buybackSweep()

	if len(chain.lpAmounts) != 1 || chain.lpAmounts[0] != 0.6 {
		t.Fatalf("lp_pct=30 应将 0.6 SOL 份额送入流动性，实际: %v", chain.lpAmounts)
	}
}

func TestBuybackSweepNoopAtOrAboveTrigger(t *testing.T) {
	chain := &fakeSweeper{price: 0.0001, fees: 1.5}
	s := New(context.Background(), chain, nil, nil,
		config.BuybackConfig{Enabled: true, TriggerPrice: 0.0001, BurnPct: 50})

	s.buybackSweep()

	if chain.feesCalls != 0 || len(chain.buybacks) != 0 {
		t.Fatal("价格不低于触发线时巡检不应动作")
	}
}
