package writer

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestWriter(t *testing.T) *ProfileWriter {
	t.Helper()
	return NewProfileWriter(filepath.Join(t.TempDir(), "profiles.yaml"))
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	w := newTestWriter(t)
	cfg, err := w.Read()
	if err != nil {
		t.Fatalf("文件缺失不应报错: %v", err)
	}
	if len(cfg.Profiles) != 0 {
		t.Fatalf("应为空集合: %d", len(cfg.Profiles))
	}
}

func TestUpdateAndGetRoundTrip(t *testing.T) {
	w := newTestWriter(t)
	entry := ProfileEntry{
		Strategy:        "aggressive",
		MaxRiskFraction: 0.2,
		IntervalSeconds: 15,
		BuybackTrigger:  0.0001,
		BurnPct:         60,
		Default:         true,
	}
	if err := w.UpdateProfile("degen", entry); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	got, err := w.GetProfile("degen")
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if got.Strategy != "aggressive" || got.MaxRiskFraction != 0.2 || got.BurnPct != 60 {
		t.Fatalf("字段不符: %+v", got)
	}
}

func TestDeleteLastProfileRejected(t *testing.T) {
	w := newTestWriter(t)
	if err := w.UpdateProfile("only", ProfileEntry{Strategy: "balanced"}); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.DeleteProfile("only"); err == nil {
		t.Fatal("最后一个档位不应允许删除")
	}
}

func TestDeleteProfile(t *testing.T) {
	w := newTestWriter(t)
	w.UpdateProfile("a", ProfileEntry{Strategy: "x"})
	w.UpdateProfile("b", ProfileEntry{Strategy: "y"})
	if err := w.DeleteProfile("a"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := w.GetProfile("a"); err == nil {
		t.Fatal("删除后不应能读到")
	}
}

func TestWriteCreatesBackup(t *testing.T) {
	w := newTestWriter(t)
	w.UpdateProfile("a", ProfileEntry{Strategy: "x"})
	// 第二次写入应为首次内容留备份
	w.UpdateProfile("a", ProfileEntry{Strategy: "y"})

	backupDir := filepath.Join(filepath.Dir(w.Path()), "backups")
	entries, err := os.ReadDir(backupDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("应生成备份文件: %v", err)
	}
}
