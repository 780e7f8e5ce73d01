package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	confirm "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"

	"mintpilot/internal/logger"
)

// 链上程序与系统账户地址。program id 可经配置覆盖。
var (
	pumpProgram        = solanago.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	pumpGlobal         = solanago.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	pumpFee            = solanago.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	pumpEventAuthority = solanago.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	systemProgram      = solanago.MustPublicKeyFromBase58("11111111111111111111111111111111")
	tokenProgram       = solanago.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	sysvarRent         = solanago.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// 指令 discriminator（anchor 8 字节方法选择器）。
const (
	buyDiscriminator  uint64 = 16927863322537952870
	sellDiscriminator uint64 = 12502976635542562355
)

// Buy 按 SOL 预算买入。先读 curve 定价换算代币数量，再走交易流水线。
// 返回交易签名。
func (c *Client) Buy(ctx context.Context, amountSOL float64) (string, error) {
	if amountSOL <= 0 {
		return "", fmt.Errorf("买入金额必须为正: %f", amountSOL)
	}
	state, err := c.curveState(ctx)
	if err != nil {
		return "", err
	}
	price, err := CurvePrice(state, c.cfg.TokenDecimals)
	if err != nil {
		return "", err
	}
	tokenAmount := amountSOL / price
	maxLamports := uint64(amountSOL * lamportsPerSOL * (1 + c.cfg.Slippage))

	if err := c.ensureWalletATA(ctx); err != nil {
		return "", err
	}

	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:], buyDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], uint64(tokenAmount*math.Pow10(c.cfg.TokenDecimals)))
	binary.LittleEndian.PutUint64(data[16:], maxLamports)

	ix := c.tradeInstruction(data)
	sig, err := c.sendTransaction(ctx, ix)
	if err != nil {
		return "", fmt.Errorf("买入交易失败: %w", err)
	}
	logger.Infof("[solana] 买入 %.6f SOL (~%.2f token) 签名=%s", amountSOL, tokenAmount, sig)
	return sig, nil
}

// Sell 卖出指定代币数量；amountTokens<=0 表示清仓全部余额。
func (c *Client) Sell(ctx context.Context, amountTokens float64) (string, error) {
	balance, err := c.tokenBalance(ctx)
	if err != nil {
		return "", err
	}
	if balance == 0 {
		return "", fmt.Errorf("无持仓可卖")
	}

	units := balance
	if amountTokens > 0 {
		requested := uint64(amountTokens * math.Pow10(c.cfg.TokenDecimals))
		if requested < units {
			units = requested
		}
	}

	state, err := c.curveState(ctx)
	if err != nil {
		return "", err
	}
	price, err := CurvePrice(state, c.cfg.TokenDecimals)
	if err != nil {
		return "", err
	}
	tokens := float64(units) / math.Pow10(c.cfg.TokenDecimals)
	minSolOutput := uint64(tokens * price * (1 - c.cfg.Slippage) * lamportsPerSOL)

	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:], sellDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], units)
	binary.LittleEndian.PutUint64(data[16:], minSolOutput)

	ix := c.tradeInstruction(data)
	sig, err := c.sendTransaction(ctx, ix)
	if err != nil {
		return "", fmt.Errorf("卖出交易失败: %w", err)
	}
	logger.Infof("[solana] 卖出 %.2f token (最低 %.6f SOL) 签名=%s",
		tokens, float64(minSolOutput)/lamportsPerSOL, sig)
	return sig, nil
}

// tradeInstruction 买卖共用的账户表，仅指令数据不同。
func (c *Client) tradeInstruction(data []byte) solanago.Instruction {
	return solanago.NewInstruction(
		c.programID,
		solanago.AccountMetaSlice{
			{PublicKey: pumpGlobal, IsSigner: false, IsWritable: false},
			{PublicKey: pumpFee, IsSigner: false, IsWritable: true},
			{PublicKey: c.mint, IsSigner: false, IsWritable: false},
			{PublicKey: c.curve, IsSigner: false, IsWritable: true},
			{PublicKey: c.curveATA, IsSigner: false, IsWritable: true},
			{PublicKey: c.walletATA, IsSigner: false, IsWritable: true},
			{PublicKey: c.wallet.PublicKey(), IsSigner: true, IsWritable: true},
			{PublicKey: systemProgram, IsSigner: false, IsWritable: false},
			{PublicKey: tokenProgram, IsSigner: false, IsWritable: false},
			{PublicKey: sysvarRent, IsSigner: false, IsWritable: false},
			{PublicKey: pumpEventAuthority, IsSigner: false, IsWritable: false},
			{PublicKey: c.programID, IsSigner: false, IsWritable: false},
		},
		data,
	)
}

// sendTransaction 组装、签名、模拟、发送并确认一笔交易。
// 统一附带 compute budget 优先费指令。
func (c *Client) sendTransaction(ctx context.Context, ix solanago.Instruction) (string, error) {
	priorityIx, err := computebudget.NewSetComputeUnitPriceInstruction(c.cfg.PriorityFee).ValidateAndBuild()
	if err != nil {
		return "", fmt.Errorf("构建优先费指令失败: %w", err)
	}

	blockhash, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("获取 blockhash 失败: %w", err)
	}

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{priorityIx, ix},
		blockhash.Value.Blockhash,
		solanago.TransactionPayer(c.wallet.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("构建交易失败: %w", err)
	}

	if _, err := tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(c.wallet.PublicKey()) {
			return &c.wallet
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}

	sim, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("交易模拟失败: %w", err)
	}
	if sim.Value.Err != nil {
		return "", fmt.Errorf("交易模拟报错: %v", sim.Value.Err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentFinalized,
	}
	timeout := c.cfg.TxTimeout
	sig, err := confirm.SendAndConfirmTransactionWithOpts(ctx, c.rpc, c.ws, tx, opts, &timeout)
	if err != nil {
		return "", fmt.Errorf("发送交易失败: %w", err)
	}
	return sig.String(), nil
}

// ensureWalletATA 钱包的关联代币账户不存在时先创建。
func (c *Client) ensureWalletATA(ctx context.Context) error {
	_, err := c.rpc.GetAccountInfo(ctx, c.walletATA)
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("检查钱包 ATA 失败: %w", err)
	}

	logger.Infof("[solana] 创建钱包 ATA %s", c.walletATA)
	ix := associatedtokenaccount.NewCreateInstruction(
		c.wallet.PublicKey(),
		c.wallet.PublicKey(),
		c.mint,
	).Build()
	if _, err := c.sendTransaction(ctx, ix); err != nil {
		return fmt.Errorf("创建钱包 ATA 失败: %w", err)
	}
	// 等待账户传播，避免紧随其后的交易引用未确认账户。
	time.Sleep(2 * time.Second)
	return nil
}

// tokenBalance 钱包 ATA 的代币余额（最小单位）。账户不存在按 0 处理。
func (c *Client) tokenBalance(ctx context.Context) (uint64, error) {
	resp, err := c.rpc.GetTokenAccountBalance(ctx, c.walletATA, rpc.CommitmentFinalized)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return 0, nil
		}
		return 0, fmt.Errorf("查询代币余额失败: %w", err)
	}
	if resp.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(resp.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析代币余额失败: %w", err)
	}
	return amount, nil
}
