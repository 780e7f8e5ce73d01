package solana

import (
	"context"
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"mintpilot/internal/logger"
	"mintpilot/internal/market"
)

// TradeSide 交易方向。
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// AccountExists 查询账户是否存在且有数据。
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	pub, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return false, fmt.Errorf("地址不合法: %w", err)
	}
	info, err := c.rpc.GetAccountInfo(ctx, pub)
	if err != nil {
		if err == rpc.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("查询账户失败: %w", err)
	}
	return info.Value != nil, nil
}

// SubmitTrade 按方向提交一笔交易。buy 的 amount 是 SOL 预算，
// sell 的 amount 是代币数量（<=0 清仓）。
func (c *Client) SubmitTrade(ctx context.Context, side TradeSide, amount float64) (string, error) {
	switch side {
	case SideBuy:
		return c.Buy(ctx, amount)
	case SideSell:
		return c.Sell(ctx, amount)
	default:
		return "", fmt.Errorf("未知交易方向: %q", side)
	}
}

// WalletBalance 钱包 SOL 余额。
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	resp, err := c.rpc.GetBalance(ctx, c.wallet.PublicKey(), rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("查询钱包余额失败: %w", err)
	}
	return float64(resp.Value) / lamportsPerSOL, nil
}

// CollectFees 读取手续费账户余额（SOL）。当前链上程序未提供提取指令，
// 此处仅做余额核对并记录，等待合约侧补齐 withdraw 后再接入。
func (c *Client) CollectFees(ctx context.Context) (float64, error) {
	if c.feeAccount.IsZero() {
		logger.Warnf("[solana] 未配置手续费账户，跳过归集")
		return 0, nil
	}
	resp, err := c.rpc.GetBalance(ctx, c.feeAccount, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("查询手续费账户余额失败: %w", err)
	}
	sol := float64(resp.Value) / lamportsPerSOL
	logger.Infof("[solana] 手续费账户 %s 余额 %.6f SOL（待合约提供提取指令）", c.feeAccount, sol)
	return sol, nil
}

// BuybackAndBurn 用全部回购预算买入，随后按 burnPct 记录销毁意向。
// 销毁本身尚无链上指令，只拆分并记账，不修改链上状态。
func (c *Client) BuybackAndBurn(ctx context.Context, amountSOL, burnPct float64) (string, error) {
	sig, err := c.Buy(ctx, amountSOL)
	if err != nil {
		return "", fmt.Errorf("回购买入失败: %w", err)
	}
	if burnPct > 0 {
		total := decimal.NewFromFloat(amountSOL)
		burn := total.Mul(decimal.NewFromFloat(burnPct).Div(decimal.NewFromInt(100)))
		keep := total.Sub(burn)
		logger.Infof("[solana] 回购 %s SOL 完成，计划销毁 %s SOL 等值代币（保留 %s），签名=%s",
			total.StringFixed(6), burn.StringFixed(6), keep.StringFixed(6), sig)
	}
	return sig, nil
}

// AddLiquidity 流动性注入占位实现：目标池子未定，仅记录意图。
func (c *Client) AddLiquidity(ctx context.Context, amountSOL float64) error {
	logger.Infof("[solana] 计划注入流动性 %.6f SOL（等待池子地址确定）", amountSOL)
	return nil
}

// GetTokenPrice 实时读取 bonding curve 并按储备定价。
func (c *Client) GetTokenPrice(ctx context.Context) (float64, error) {
	state, err := c.curveState(ctx)
	if err != nil {
		return 0, err
	}
	return CurvePrice(state, c.cfg.TokenDecimals)
}

// MarketCap 市值 = 当前价 × 总供给。
func (c *Client) MarketCap(ctx context.Context) (float64, error) {
	state, err := c.curveState(ctx)
	if err != nil {
		return 0, err
	}
	price, err := CurvePrice(state, c.cfg.TokenDecimals)
	if err != nil {
		return 0, err
	}
	return CurveMarketCap(state, price, c.cfg.TokenDecimals), nil
}

// GetVolume24h 以 curve 账户近 24h 的成功交易笔数做成交量近似：
// 笔数 × 当前价 × 单笔均量假设（1% 虚拟储备）。精确值需要逐笔解析，成本过高。
func (c *Client) GetVolume24h(ctx context.Context) (float64, error) {
	limit := 1000
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, c.curve, &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	})
	if err != nil {
		return 0, fmt.Errorf("拉取签名历史失败: %w", err)
	}
	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	count := 0
	for _, s := range sigs {
		if s.Err != nil {
			continue
		}
		if s.BlockTime != nil && s.BlockTime.Time().Unix() < cutoff {
			break
		}
		count++
	}

	state, err := c.curveState(ctx)
	if err != nil {
		return 0, err
	}
	avgTradeSOL := float64(state.VirtualSolReserves) / lamportsPerSOL * 0.01
	return float64(count) * avgTradeSOL, nil
}

// HolderCount 以最大持仓账户列表的非零数量做近似（RPC 最多返回 20 条）。
func (c *Client) HolderCount(ctx context.Context) (int, error) {
	resp, err := c.rpc.GetTokenLargestAccounts(ctx, c.mint, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("拉取持仓账户失败: %w", err)
	}
	count := 0
	for _, acct := range resp.Value {
		if acct.Amount != "0" && acct.Amount != "" {
			count++
		}
	}
	return count, nil
}

// RecentTransactions 最近 limit 笔 curve 交易摘要，按时间降序。
func (c *Client) RecentTransactions(ctx context.Context, limit int) ([]market.TxnSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, c.curve, &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("拉取签名历史失败: %w", err)
	}
	out := make([]market.TxnSummary, 0, len(sigs))
	for _, s := range sigs {
		summary := market.TxnSummary{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			summary.BlockTime = s.BlockTime.Time().Unix()
		}
		out = append(out, summary)
	}
	return out, nil
}

// CurveUpdate curve 账户变更事件。Price 在状态可解析时有效。
type CurveUpdate struct {
	Slot     uint64
	Price    float64
	Complete bool
	RawHead  string // 数据头 8 字节的 base58，便于排查非 curve 布局的更新
}

// SubscribeAccount 订阅 bonding curve 账户变更，更新经 ch 推出。
// ctx 结束时退订并关闭 ch。
func (c *Client) SubscribeAccount(ctx context.Context, ch chan<- CurveUpdate) error {
	sub, err := c.ws.AccountSubscribe(c.curve, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("订阅 curve 账户失败: %w", err)
	}

	go func() {
		defer sub.Unsubscribe()
		defer close(ch)
		for {
			got, err := sub.Recv(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Errorf("[solana] curve 订阅中断: %v", err)
				}
				return
			}
			if got == nil || got.Value.Data == nil {
				continue
			}
			data := got.Value.Data.GetBinary()
			update := CurveUpdate{Slot: got.Context.Slot}
			if len(data) >= 8 {
				update.RawHead = base58.Encode(data[:8])
			}
			if state, err := ParseCurveState(data); err == nil {
				update.Complete = state.Complete
				if price, err := CurvePrice(state, c.cfg.TokenDecimals); err == nil {
					update.Price = price
				}
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
