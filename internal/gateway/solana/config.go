package solana

import (
	"fmt"
	"strings"
	"time"
)

// Config Solana 接入参数。字段与顶层配置的 [solana] 段一一对应。
type Config struct {
	RPCURL        string
	WSURL         string
	WalletSecret  string
	ProgramID     string
	TokenMint     string
	FeeAccount    string
	Slippage      float64
	PriorityFee   uint64
	TokenDecimals int
	TxTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RPCURL) == "" {
		c.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	if strings.TrimSpace(c.WSURL) == "" {
		c.WSURL = "wss://api.mainnet-beta.solana.com"
	}
	if c.Slippage <= 0 || c.Slippage >= 1 {
		c.Slippage = 0.25
	}
	if c.PriorityFee == 0 {
		c.PriorityFee = 100_000
	}
	if c.TokenDecimals <= 0 {
		c.TokenDecimals = 6
	}
	if c.TxTimeout <= 0 {
		c.TxTimeout = 30 * time.Second
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.WalletSecret) == "" {
		return fmt.Errorf("缺少钱包私钥")
	}
	if strings.TrimSpace(c.TokenMint) == "" {
		return fmt.Errorf("缺少 token mint 地址")
	}
	return nil
}
