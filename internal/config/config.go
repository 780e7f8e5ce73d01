package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// 中文说明：
// 主配置从 TOML 文件加载，敏感字段（钱包私钥、API Key）允许用环境变量覆盖，
// .env 文件通过 godotenv 在进程启动时注入。配置加载后即冻结，运行期不再修改。

type Config struct {
	App       AppConfig       `toml:"app"`
	Solana    SolanaConfig    `toml:"solana"`
	AI        AIConfig        `toml:"ai"`
	Trading   TradingConfig   `toml:"trading"`
	Buyback   BuybackConfig   `toml:"buyback"`
	Marketing MarketingConfig `toml:"marketing"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Schedule  ScheduleConfig  `toml:"schedule"`
}

type AppConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// SolanaConfig 链上侧参数。WalletSecret 为 base58 私钥，建议仅用环境变量提供。
type SolanaConfig struct {
	RPCURL        string  `toml:"rpc_url"`
	WSURL         string  `toml:"ws_url"`
	WalletSecret  string  `toml:"wallet_secret"`
	ProgramID     string  `toml:"program_id"`
	TokenMint     string  `toml:"token_mint"`
	FeeAccount    string  `toml:"fee_account"`
	Slippage      float64 `toml:"slippage"`        // 0.25 = 25%
	PriorityFee   uint64  `toml:"priority_fee"`    // 计算单元价格（micro-lamports）
	TokenDecimals int     `toml:"token_decimals"`  // 默认 6
	TxTimeoutSecs int     `toml:"tx_timeout_secs"` // 默认 30
}

// AIConfig 模型提供方配置（单条目，与 provider 工厂的 ModelCfg 对应）。
type AIConfig struct {
	Provider       string            `toml:"provider"` // openrouter/openai/anthropic/eliza/custom
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	MaxTokens      int               `toml:"max_tokens"`
	Headers        map[string]string `toml:"headers"`
}

func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TradingConfig 交易循环参数。循环启动后不可变。
type TradingConfig struct {
	Enabled         bool    `toml:"enabled"`
	IntervalSeconds int     `toml:"interval_seconds"`
	Strategy        string  `toml:"strategy"`
	MaxRiskFraction float64 `toml:"max_risk_fraction"`
	StopLossPct     float64 `toml:"stop_loss_pct"`
	TakeProfitPct   float64 `toml:"take_profit_pct"`
}

func (c TradingConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// BuybackConfig 回购触发参数。burn_pct 与 lp_pct 不强制相加为 100。
type BuybackConfig struct {
	Enabled      bool    `toml:"enabled"`
	TriggerPrice float64 `toml:"trigger_price"`
	BurnPct      float64 `toml:"burn_pct"`
	LPPct        float64 `toml:"lp_pct"`
}

type MarketingConfig struct {
	Enabled         bool    `toml:"enabled"`
	APIURL          string  `toml:"api_url"`
	IntervalSeconds int     `toml:"interval_seconds"`
	BudgetUSD       float64 `toml:"budget_usd"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

func (c MarketingConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c MarketingConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Listen       string `toml:"listen"`
	ProfilesPath string `toml:"profiles_path"`
}

// ScheduleConfig cron 表达式（带秒位，robfig/cron WithSeconds）。
type ScheduleConfig struct {
	DailyReportCron  string `toml:"daily_report_cron"`
	BuybackSweepCron string `toml:"buyback_sweep_cron"`
	WeeklyReportCron string `toml:"weekly_report_cron"`
}

// Load 读取 TOML 配置并应用环境变量覆盖。path 为空时只用默认值+环境变量。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{LogLevel: "info", LogFormat: "text"},
		Solana: SolanaConfig{
			RPCURL:        "https://api.mainnet-beta.solana.com",
			WSURL:         "wss://api.mainnet-beta.solana.com",
			Slippage:      0.25,
			PriorityFee:   100_000,
			TokenDecimals: 6,
			TxTimeoutSecs: 30,
		},
		AI:      AIConfig{Provider: "openrouter", MaxRetries: 2, TimeoutSeconds: 60},
		Trading: TradingConfig{IntervalSeconds: 30, Strategy: "balanced", MaxRiskFraction: 0.1},
		Marketing: MarketingConfig{
			IntervalSeconds: 300,
			TimeoutSeconds:  15,
		},
		Database: DatabaseConfig{Path: "mintpilot.db"},
		Server:   ServerConfig{Listen: ":8787", ProfilesPath: "profiles.yaml"},
		Schedule: ScheduleConfig{
			DailyReportCron:  "0 0 9 * * *",
			WeeklyReportCron: "0 0 9 * * 1",
		},
	}
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Solana.RPCURL, "RPC_URL")
	setIfEnv(&c.Solana.WSURL, "WS_URL")
	setIfEnv(&c.Solana.WalletSecret, "WALLET_SECRET_KEY")
	setIfEnv(&c.Solana.ProgramID, "PROGRAM_ID")
	setIfEnv(&c.Solana.TokenMint, "TOKEN_MINT")
	setIfEnv(&c.Solana.FeeAccount, "FEE_ACCOUNT")
	setIfEnv(&c.AI.APIKey, "AI_API_KEY")
	setIfEnv(&c.Marketing.APIURL, "MARKETING_API_URL")

	// 按 provider 识别专属 key 变量，便于多套凭据并存。
	if c.AI.APIKey == "" {
		switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
		case "openrouter":
			setIfEnv(&c.AI.APIKey, "OPENROUTER_API_KEY")
		case "openai":
			setIfEnv(&c.AI.APIKey, "OPENAI_API_KEY")
		case "anthropic":
			setIfEnv(&c.AI.APIKey, "ANTHROPIC_API_KEY")
		}
	}
}

func setIfEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate 启动期快速失败：缺少必要标识立即报错，而不是进入循环后静默异常。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Solana.RPCURL) == "" {
		return fmt.Errorf("solana.rpc_url 不能为空")
	}
	if strings.TrimSpace(c.Solana.TokenMint) == "" {
		return fmt.Errorf("solana.token_mint 不能为空")
	}
	if c.Trading.Enabled || c.Buyback.Enabled {
		if strings.TrimSpace(c.Solana.WalletSecret) == "" {
			return fmt.Errorf("缺少钱包私钥（WALLET_SECRET_KEY）")
		}
	}
	if strings.TrimSpace(c.AI.Provider) == "" {
		return fmt.Errorf("ai.provider 不能为空")
	}
	if c.Marketing.Enabled && strings.TrimSpace(c.Marketing.APIURL) == "" {
		return fmt.Errorf("marketing.api_url 不能为空")
	}
	if c.Buyback.Enabled && c.Buyback.TriggerPrice <= 0 {
		return fmt.Errorf("buyback.trigger_price 必须大于 0")
	}
	return nil
}
