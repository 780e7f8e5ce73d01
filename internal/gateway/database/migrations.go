package database

import "context"

// migrate 建表（幂等）。列变更用 ALTER 追加，失败视为已存在。
func (s *DecisionLogStore) migrate() error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	ctx := context.Background()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS decisions (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            trace_id    TEXT NOT NULL,
            loop        TEXT NOT NULL,
            provider_id TEXT,
            action      TEXT,
            amount      REAL DEFAULT 0,
            confidence  REAL DEFAULT 0,
            reasoning   TEXT,
            raw_output  TEXT,
            price       REAL DEFAULT 0,
            executed    INTEGER DEFAULT 0,
            signature   TEXT,
            decided_at  INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at)`,
		`CREATE TABLE IF NOT EXISTS prices (
            id       INTEGER PRIMARY KEY AUTOINCREMENT,
            price    REAL NOT NULL,
            taken_at INTEGER NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_prices_taken_at ON prices(taken_at)`,
		`CREATE TABLE IF NOT EXISTS marketing_plans (
            id          INTEGER PRIMARY KEY AUTOINCREMENT,
            trace_id    TEXT NOT NULL,
            allocations TEXT,
            reasoning   TEXT,
            confidence  REAL DEFAULT 0,
            created_at  INTEGER NOT NULL
        )`,
	}
	for _, q := range tables {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
