package solana

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"mintpilot/internal/logger"
)

// Client 链上门面。持有共享的 RPC/WS 连接与钱包密钥，
// 所有只读查询与交易提交都经由它。实现 market.ChainReader。
type Client struct {
	cfg Config

	rpc *rpc.Client
	ws  *ws.Client

	wallet     solanago.PrivateKey
	mint       solanago.PublicKey
	programID  solanago.PublicKey
	feeAccount solanago.PublicKey

	curve     solanago.PublicKey
	curveATA  solanago.PublicKey
	walletATA solanago.PublicKey
}

// New 建立 RPC/WS 连接并解析全部地址。配置不合法立即报错。
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	wallet, err := solanago.PrivateKeyFromBase58(cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("解析钱包私钥失败: %w", err)
	}
	mint, err := solanago.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return nil, fmt.Errorf("解析 token mint 失败: %w", err)
	}

	programID := pumpProgram
	if cfg.ProgramID != "" {
		programID, err = solanago.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("解析 program id 失败: %w", err)
		}
	}

	var feeAccount solanago.PublicKey
	if cfg.FeeAccount != "" {
		feeAccount, err = solanago.PublicKeyFromBase58(cfg.FeeAccount)
		if err != nil {
			return nil, fmt.Errorf("解析 fee account 失败: %w", err)
		}
	}

	curve, err := deriveCurveAddress(mint, programID)
	if err != nil {
		return nil, err
	}
	curveATA, err := deriveAssociatedCurveAddress(mint, curve)
	if err != nil {
		return nil, err
	}
	walletATA, _, err := solanago.FindAssociatedTokenAddress(wallet.PublicKey(), mint)
	if err != nil {
		return nil, fmt.Errorf("推导钱包 ATA 失败: %w", err)
	}

	wsClient, err := ws.Connect(ctx, cfg.WSURL)
	if err != nil {
		return nil, fmt.Errorf("连接 WS 失败: %w", err)
	}

	c := &Client{
		cfg:        cfg,
		rpc:        rpc.New(cfg.RPCURL),
		ws:         wsClient,
		wallet:     wallet,
		mint:       mint,
		programID:  programID,
		feeAccount: feeAccount,
		curve:      curve,
		curveATA:   curveATA,
		walletATA:  walletATA,
	}
	logger.Infof("[solana] 已连接 rpc=%s wallet=%s mint=%s curve=%s",
		cfg.RPCURL, wallet.PublicKey(), mint, curve)
	return c, nil
}

// WalletAddress 钱包公钥（状态接口展示用）。
func (c *Client) WalletAddress() string {
	return c.wallet.PublicKey().String()
}

func (c *Client) Close() {
	if c.ws != nil {
		c.ws.Close()
	}
}

// curveState 拉取并解析 bonding curve 账户。
func (c *Client) curveState(ctx context.Context) (*CurveState, error) {
	info, err := c.rpc.GetAccountInfo(ctx, c.curve)
	if err != nil {
		return nil, fmt.Errorf("拉取 curve 账户失败: %w", err)
	}
	if info.Value == nil {
		return nil, fmt.Errorf("curve 账户不存在: %s", c.curve)
	}
	return ParseCurveState(info.Value.Data.GetBinary())
}
