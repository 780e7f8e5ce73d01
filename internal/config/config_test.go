package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Trading.IntervalSeconds != 30 {
		t.Fatalf("默认交易间隔应为 30s: %d", cfg.Trading.IntervalSeconds)
	}
	if cfg.Server.Listen != ":8787" {
		t.Fatalf("默认监听地址不符: %s", cfg.Server.Listen)
	}
	if cfg.Solana.TokenDecimals != 6 {
		t.Fatalf("默认代币精度应为 6: %d", cfg.Solana.TokenDecimals)
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
[trading]
interval_seconds = 15
strategy = "aggressive"

[buyback]
enabled = true
trigger_price = 0.0001
burn_pct = 60.0
`))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Trading.IntervalSeconds != 15 || cfg.Trading.Strategy != "aggressive" {
		t.Fatalf("TOML 覆盖未生效: %+v", cfg.Trading)
	}
	if !cfg.Buyback.Enabled || cfg.Buyback.TriggerPrice != 0.0001 {
		t.Fatalf("buyback 配置未生效: %+v", cfg.Buyback)
	}
}

func TestEnvOverridesTOML(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example.com")
	t.Setenv("WALLET_SECRET_KEY", "base58secret")
	cfg, err := Load(writeTempConfig(t, `
[solana]
rpc_url = "https://from-file.example.com"
`))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Solana.RPCURL != "https://rpc.example.com" {
		t.Fatalf("环境变量应覆盖文件: %s", cfg.Solana.RPCURL)
	}
	if cfg.Solana.WalletSecret != "base58secret" {
		t.Fatal("钱包私钥应从环境变量读入")
	}
}

func TestValidateFailsFast(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("缺少关键项时校验应失败")
	}
}
