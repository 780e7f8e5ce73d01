package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"mintpilot/internal/decision"
)

// DecisionLogStore 决策与交易的落库存储（sqlite）。
// 所有方法并发安全；db 指针用互斥锁保护以支持热关闭。
type DecisionLogStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（必要时创建）数据库并跑迁移。
func Open(path string) (*DecisionLogStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "mintpilot.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &DecisionLogStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DecisionLogStore) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (s *DecisionLogStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store 未初始化")
	}
	return db, nil
}

// InsertDecision 记录一次模型决策（含未执行的）。
func (s *DecisionLogStore) InsertDecision(ctx context.Context, rec decision.Record) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(rec.TraceID) == "" {
		return fmt.Errorf("trace id 不能为空")
	}
	decidedAt := rec.DecidedAt
	if decidedAt.IsZero() {
		decidedAt = time.Now()
	}
	_, err = db.ExecContext(ctx, `
        INSERT INTO decisions
            (trace_id, loop, provider_id, action, amount, confidence, reasoning, raw_output, price, executed, decided_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Loop, rec.ProviderID,
		rec.Decision.Action, rec.Decision.Amount, rec.Decision.Confidence, rec.Decision.Reasoning,
		rec.RawOutput, rec.Price, rec.Executed, decidedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("写入决策记录失败: %w", err)
	}
	return nil
}

// MarkExecuted 决策对应的交易落地后回填执行标记与签名。
func (s *DecisionLogStore) MarkExecuted(ctx context.Context, traceID, signature string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE decisions SET executed=1, signature=? WHERE trace_id=?`,
		signature, traceID)
	if err != nil {
		return fmt.Errorf("回填执行标记失败: %w", err)
	}
	return nil
}

// RecentDecisions 最近 limit 条决策，按时间降序。
func (s *DecisionLogStore) RecentDecisions(ctx context.Context, limit int) ([]decision.Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
        SELECT trace_id, loop, provider_id, action, amount, confidence, reasoning, raw_output, price, executed, decided_at
        FROM decisions ORDER BY decided_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询决策记录失败: %w", err)
	}
	defer rows.Close()

	var out []decision.Record
	for rows.Next() {
		var rec decision.Record
		var decidedAt int64
		if err := rows.Scan(&rec.TraceID, &rec.Loop, &rec.ProviderID,
			&rec.Decision.Action, &rec.Decision.Amount, &rec.Decision.Confidence, &rec.Decision.Reasoning,
			&rec.RawOutput, &rec.Price, &rec.Executed, &decidedAt); err != nil {
			return nil, err
		}
		rec.DecidedAt = time.UnixMilli(decidedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PricePoint 历史价格点，供报表绘图读取。
type PricePoint struct {
	Price float64
	At    time.Time
}

// InsertPrice 落一条快照价格。
func (s *DecisionLogStore) InsertPrice(ctx context.Context, price float64, at time.Time) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO prices (price, taken_at) VALUES (?, ?)`, price, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("写入价格失败: %w", err)
	}
	return nil
}

// PricesSince 起始时间之后的价格点，按时间升序。
func (s *DecisionLogStore) PricesSince(ctx context.Context, since time.Time) ([]PricePoint, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT price, taken_at FROM prices WHERE taken_at >= ? ORDER BY taken_at ASC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("查询价格失败: %w", err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		var at int64
		if err := rows.Scan(&p.Price, &at); err != nil {
			return nil, err
		}
		p.At = time.UnixMilli(at)
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertAllocationPlan 记录一次营销分配方案。
func (s *DecisionLogStore) InsertAllocationPlan(ctx context.Context, traceID string, plan decision.AllocationPlan) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	body, err := json.Marshal(plan.Allocations)
	if err != nil {
		return fmt.Errorf("序列化分配方案失败: %w", err)
	}
	_, err = db.ExecContext(ctx, `
        INSERT INTO marketing_plans (trace_id, allocations, reasoning, confidence, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		traceID, string(body), plan.Reasoning, plan.Confidence, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("写入分配方案失败: %w", err)
	}
	return nil
}
