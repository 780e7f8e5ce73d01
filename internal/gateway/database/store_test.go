package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mintpilot/internal/decision"
)

func newTestStore(t *testing.T) *DecisionLogStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开测试库失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndQueryDecisions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []decision.Record{
		{TraceID: "t1", Loop: "trading", ProviderID: "p", Decision: decision.Decision{Action: "hold", Confidence: 0.4}, Price: 0.001, DecidedAt: time.Now().Add(-2 * time.Minute)},
		{TraceID: "t2", Loop: "trading", ProviderID: "p", Decision: decision.Decision{Action: "buy", Amount: 0.5, Confidence: 0.9}, Price: 0.0012, DecidedAt: time.Now()},
	}
	for _, r := range recs {
		if err := s.InsertDecision(ctx, r); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
	}

	got, err := s.RecentDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("条数不符: %d", len(got))
	}
	if got[0].TraceID != "t2" {
		t.Fatalf("应按时间降序: %s", got[0].TraceID)
	}
	if got[0].Decision.Amount != 0.5 || got[0].Decision.Confidence != 0.9 {
		t.Fatalf("决策字段不符: %+v", got[0].Decision)
	}
}

func TestInsertDecisionRequiresTraceID(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertDecision(context.Background(), decision.Record{Loop: "trading"})
	if err == nil {
		t.Fatal("空 trace id 应报错")
	}
}

func TestMarkExecuted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := decision.Record{TraceID: "t1", Loop: "trading", Decision: decision.Decision{Action: "buy"}, DecidedAt: time.Now()}
	if err := s.InsertDecision(ctx, rec); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := s.MarkExecuted(ctx, "t1", "sig-abc"); err != nil {
		t.Fatalf("回填失败: %v", err)
	}
	got, _ := s.RecentDecisions(ctx, 1)
	if len(got) != 1 || !got[0].Executed {
		t.Fatal("执行标记未生效")
	}
}

func TestPricesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if err := s.InsertPrice(ctx, 0.001+float64(i)*0.0001, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("写入价格失败: %v", err)
		}
	}
	got, err := s.PricesSince(ctx, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("窗口过滤不符: %d", len(got))
	}
	if got[0].At.After(got[1].At) {
		t.Fatal("应按时间升序")
	}
}

func TestInsertAllocationPlan(t *testing.T) {
	s := newTestStore(t)
	plan := decision.AllocationPlan{
		Allocations: []decision.Allocation{{Platform: "twitter", Budget: 50, Focus: "threads"}},
		Reasoning:   "r",
		Confidence:  0.7,
	}
	if err := s.InsertAllocationPlan(context.Background(), "t1", plan); err != nil {
		t.Fatalf("写入方案失败: %v", err)
	}
}

func TestClosedStoreRejects(t *testing.T) {
	s := newTestStore(t)
	s.Close()
	if err := s.InsertPrice(context.Background(), 1, time.Now()); err == nil {
		t.Fatal("关闭后的写入应报错")
	}
}
