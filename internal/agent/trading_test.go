package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mintpilot/internal/config"
	"mintpilot/internal/decision"
	"mintpilot/internal/gateway/provider"
	sol "mintpilot/internal/gateway/solana"
	"mintpilot/internal/market"
)

type fakeProvider struct {
	raw string
	err error

	mu          sync.Mutex
	lastPayload provider.ChatPayload
}

func (p *fakeProvider) ID() string        { return "fake:model" }
func (p *fakeProvider) Enabled() bool     { return true }
func (p *fakeProvider) ExpectsJSON() bool { return true }
func (p *fakeProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	p.mu.Lock()
	p.lastPayload = payload
	p.mu.Unlock()
	return p.raw, p.err
}

func (p *fakeProvider) seenPayload() provider.ChatPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPayload
}

type fakeSnapshots struct {
	snap market.Snapshot
	err  error
}

func (s *fakeSnapshots) Build(ctx context.Context) (market.Snapshot, error) {
	return s.snap, s.err
}

type fakeExecutor struct {
	mu        sync.Mutex
	trades    []string // "buy:0.5" 形式
	fees      float64
	feesCalls int
	buybacks  []float64
	lpCalls   int
	lpAmounts []float64
	tradeErr  error
}

func (e *fakeExecutor) SubmitTrade(ctx context.Context, side sol.TradeSide, amount float64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tradeErr != nil {
		return "", e.tradeErr
	}
	e.trades = append(e.trades, string(side))
	return "sig-trade", nil
}

func (e *fakeExecutor) CollectFees(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feesCalls++
	return e.fees, nil
}

func (e *fakeExecutor) BuybackAndBurn(ctx context.Context, amountSOL, burnPct float64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buybacks = append(e.buybacks, amountSOL)
	return "sig-buyback", nil
}

func (e *fakeExecutor) AddLiquidity(ctx context.Context, amountSOL float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lpCalls++
	e.lpAmounts = append(e.lpAmounts, amountSOL)
	return nil
}

func (e *fakeExecutor) WalletBalance(ctx context.Context) (float64, error) {
	return 100, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	records  []decision.Record
	executed []string
	prices   int
}

func (r *fakeRecorder) InsertDecision(ctx context.Context, rec decision.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecorder) MarkExecuted(ctx context.Context, traceID, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, traceID)
	return nil
}

func (r *fakeRecorder) InsertPrice(ctx context.Context, price float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices++
	return nil
}

func newTestDriver(p *fakeProvider, exec *fakeExecutor, rec *fakeRecorder, buyback config.BuybackConfig) *TradingDriver {
	return NewTradingDriver(TradingParams{
		Provider:  p,
		Snapshots: &fakeSnapshots{snap: market.Snapshot{Price: 0.001, TakenAt: time.Now()}},
		Executor:  exec,
		Store:     rec,
		Trading:   config.TradingConfig{IntervalSeconds: 3600},
		Buyback:   buyback,
	})
}

func TestStartTwiceReturnsErrAlreadyRunning(t *testing.T) {
	d := newTestDriver(&fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"quiet","confidence":0.3}`},
		&fakeExecutor{}, &fakeRecorder{}, config.BuybackConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("首次启动应当成功: %v", err)
	}
	defer d.Stop()
	if err := d.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("重复启动应返回 ErrAlreadyRunning，实际: %v", err)
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	d := newTestDriver(&fakeProvider{raw: "{}"}, &fakeExecutor{}, &fakeRecorder{}, config.BuybackConfig{})
	d.Stop() // 不应 panic
	if got := d.State(); got != "idle" {
		t.Fatalf("未启动时状态应为 idle，实际: %s", got)
	}
}

func TestStopThenRestart(t *testing.T) {
	d := newTestDriver(&fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"r","confidence":0.1}`},
		&fakeExecutor{}, &fakeRecorder{}, config.BuybackConfig{})
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	d.Stop()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("停止后重启应当成功: %v", err)
	}
	d.Stop()
}

func TestConfidenceBelowThresholdNotExecuted(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	d := newTestDriver(&fakeProvider{raw: `{"action":"buy","amount":1.5,"reasoning":"dip","confidence":0.65}`},
		exec, rec, config.BuybackConfig{})

	d.tick(context.Background())

	if len(exec.trades) != 0 {
		t.Fatalf("置信度 0.65 不应执行交易，实际执行 %d 笔", len(exec.trades))
	}
	if len(rec.records) != 1 {
		t.Fatalf("决策应当落库: %d", len(rec.records))
	}
	if rec.records[0].Executed {
		t.Fatal("未执行的决策不应标记 executed")
	}
	if rec.records[0].Decision.Confidence != 0.65 {
		t.Fatalf("置信度应原样保留: %f", rec.records[0].Decision.Confidence)
	}
}

func TestHighConfidenceBuyExecuted(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	d := newTestDriver(&fakeProvider{raw: `{"action":"buy","amount":0.5,"reasoning":"breakout","confidence":0.9}`},
		exec, rec, config.BuybackConfig{})

	d.tick(context.Background())

	if len(exec.trades) != 1 || exec.trades[0] != "buy" {
		t.Fatalf("应执行一笔买入，实际: %v", exec.trades)
	}
	if len(rec.records) != 1 || !rec.records[0].Executed {
		t.Fatal("执行过的决策应标记 executed")
	}
	if len(rec.executed) != 1 {
		t.Fatal("应回填执行签名")
	}
}

func TestUnparsableOutputFallsBackToHold(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	raw := "I think we should definitely buy a lot right now!!!"
	d := newTestDriver(&fakeProvider{raw: raw}, exec, rec, config.BuybackConfig{})

	d.tick(context.Background())

	if len(exec.trades) != 0 {
		t.Fatal("不可解析输出不应触发交易")
	}
	got := rec.records[0].Decision
	if got.Action != decision.ActionHold {
		t.Fatalf("应回退为 hold，实际: %s", got.Action)
	}
	if got.Reasoning != raw {
		t.Fatal("原始输出应原样进入 reasoning")
	}
	if got.Confidence != 0.5 {
		t.Fatalf("回退置信度应为 0.5: %f", got.Confidence)
	}
}

func TestBuybackTriggeredBelowPrice(t *testing.T) {
	exec := &fakeExecutor{fees: 2.5}
	rec := &fakeRecorder{}
	d := NewTradingDriver(TradingParams{
		Provider:  &fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"wait","confidence":0.2}`},
		Snapshots: &fakeSnapshots{snap: market.Snapshot{Price: 0.00009, TakenAt: time.Now()}},
		Executor:  exec,
		Store:     rec,
		Trading:   config.TradingConfig{IntervalSeconds: 3600},
		Buyback:   config.BuybackConfig{Enabled: true, TriggerPrice: 0.0001, BurnPct: 50},
	})

	d.tick(context.Background())

	if exec.feesCalls != 1 {
		t.Fatalf("应先归集手续费: calls=%d", exec.feesCalls)
	}
	if len(exec.buybacks) != 1 || exec.buybacks[0] != 2.5 {
		t.Fatalf("应以归集金额回购，实际: %v", exec.buybacks)
	}
}

func TestBuybackNotTriggeredAtExactPrice(t *testing.T) {
	exec := &fakeExecutor{fees: 2.5}
	d := NewTradingDriver(TradingParams{
		Provider:  &fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"wait","confidence":0.2}`},
		Snapshots: &fakeSnapshots{snap: market.Snapshot{Price: 0.0001, TakenAt: time.Now()}},
		Executor:  exec,
		Store:     &fakeRecorder{},
		Trading:   config.TradingConfig{IntervalSeconds: 3600},
		Buyback:   config.BuybackConfig{Enabled: true, TriggerPrice: 0.0001, BurnPct: 50},
	})

	d.tick(context.Background())

	if exec.feesCalls != 0 || len(exec.buybacks) != 0 {
		t.Fatal("价格等于触发线时不应回购（严格小于）")
	}
}

func TestProviderErrorRecordsHoldFallback(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	d := newTestDriver(&fakeProvider{err: errors.New("upstream 503")}, exec, rec, config.BuybackConfig{})

	d.tick(context.Background())

	if len(exec.trades) != 0 {
		t.Fatal("模型失败不应触发交易")
	}
	if len(rec.records) != 1 || rec.records[0].Decision.Action != decision.ActionHold {
		t.Fatal("模型失败应记录 hold 决策")
	}
}

// slowSnapshots 统计并发中的 Build 调用数，用于验证 tick 允许重叠执行。
type slowSnapshots struct {
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *slowSnapshots) Build(ctx context.Context) (market.Snapshot, error) {
	cur := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		old := s.peak.Load()
		if cur <= old || s.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(s.delay)
	return market.Snapshot{Price: 0.001, TakenAt: time.Now()}, nil
}

func TestOverlappingTicksRunConcurrently(t *testing.T) {
	snaps := &slowSnapshots{delay: 50 * time.Millisecond}
	d := NewTradingDriver(TradingParams{
		Provider:  &fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"wait","confidence":0.2}`},
		Snapshots: snaps,
		Executor:  &fakeExecutor{},
		Store:     &fakeRecorder{},
		Trading:   config.TradingConfig{IntervalSeconds: 3600},
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.tick(context.Background())
		}()
	}
	wg.Wait()

	if snaps.peak.Load() < 2 {
		t.Fatalf("两个 tick 应并发执行，峰值并发: %d", snaps.peak.Load())
	}
}

func TestMaxTokensPassedToProvider(t *testing.T) {
	p := &fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"wait","confidence":0.2}`}
	d := NewTradingDriver(TradingParams{
		Provider:  p,
		Snapshots: &fakeSnapshots{snap: market.Snapshot{Price: 0.001, TakenAt: time.Now()}},
		Executor:  &fakeExecutor{},
		Store:     &fakeRecorder{},
		Trading:   config.TradingConfig{IntervalSeconds: 3600},
		MaxTokens: 1024,
	})

	d.tick(context.Background())

	if got := p.seenPayload().MaxTokens; got != 1024 {
		t.Fatalf("配置的 max_tokens 应透传给模型调用: %d", got)
	}
}

func TestBuybackRoutesLPShare(t *testing.T) {
	exec := &fakeExecutor{fees: 2.0}
	d := NewTradingDriver(TradingParams{
		Provider:  &fakeProvider{raw: `{"action":"hold","amount":0,"reasoning":"wait","confidence":0.2}`},
		Snapshots: &fakeSnapshots{snap: market.Snapshot{Price: 0.00009, TakenAt: time.Now()}},
		Executor:  exec,
		Store:     &fakeRecorder{},
		Trading:   config.TradingConfig{IntervalSeconds: 3600},
		Buyback:   config.BuybackConfig{Enabled: true, TriggerPrice: 0.0001, BurnPct: 70, LPPct: 30},
	})

	d.tick(context.Background())

	if len(exec.lpAmounts) != 1 || exec.lpAmounts[0] != 0.6 {
		t.Fatalf("lp_pct=30 应将 0.6 SOL 份额送入流动性，实际: %v", exec.lpAmounts)
	}
}
