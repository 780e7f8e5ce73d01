package solana

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// 中文说明：
// bonding curve 账户布局：8 字节 discriminator + 5 个 uint64 + 1 字节 bool。
// 价格由虚拟储备比值给出，与链上程序的报价公式一致。

const lamportsPerSOL = 1_000_000_000

// curveDiscriminator bonding curve 账户的 anchor discriminator。
var curveDiscriminator = func() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, 6966180631402821399)
	return b
}()

// CurveState bonding curve 账户状态。
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

func (s *CurveState) String() string {
	if s == nil {
		return "nil"
	}
	return fmt.Sprintf("CurveState{virtualToken: %d, virtualSol: %d, realToken: %d, realSol: %d, supply: %d, complete: %v}",
		s.VirtualTokenReserves, s.VirtualSolReserves, s.RealTokenReserves, s.RealSolReserves, s.TokenTotalSupply, s.Complete)
}

// ParseCurveState 解析账户原始数据。先校验 discriminator，再用 borsh 解码字段。
func ParseCurveState(data []byte) (*CurveState, error) {
	if len(data) < 8+41 {
		return nil, fmt.Errorf("curve 账户数据过短: %d 字节", len(data))
	}
	if !bytes.Equal(data[:8], curveDiscriminator) {
		return nil, fmt.Errorf("curve 账户 discriminator 不匹配")
	}
	state := &CurveState{}
	if err := bin.NewBorshDecoder(data[8:]).Decode(state); err != nil {
		return nil, fmt.Errorf("解码 curve 状态失败: %w", err)
	}
	return state, nil
}

// CurvePrice 按虚拟储备计算单枚代币的 SOL 价格。
func CurvePrice(state *CurveState, tokenDecimals int) (float64, error) {
	if state == nil || state.VirtualTokenReserves == 0 || state.VirtualSolReserves == 0 {
		return 0, fmt.Errorf("curve 储备无效，无法定价")
	}
	price := (float64(state.VirtualSolReserves) / float64(lamportsPerSOL)) /
		(float64(state.VirtualTokenReserves) / math.Pow10(tokenDecimals))
	return price, nil
}

// CurveMarketCap 市值 = 价格 × 总供给（以 SOL 计）。
func CurveMarketCap(state *CurveState, price float64, tokenDecimals int) float64 {
	if state == nil {
		return 0
	}
	supply := float64(state.TokenTotalSupply) / math.Pow10(tokenDecimals)
	mc, _ := new(big.Float).Mul(big.NewFloat(price), big.NewFloat(supply)).Float64()
	return mc
}

// deriveCurveAddress 从 mint 推导 bonding curve PDA，种子为 "bonding-curve" + mint。
func deriveCurveAddress(mint, programID solanago.PublicKey) (solanago.PublicKey, error) {
	seeds := [][]byte{
		[]byte("bonding-curve"),
		mint.Bytes(),
	}
	addr, _, err := solanago.FindProgramAddress(seeds, programID)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("推导 curve 地址失败: %w", err)
	}
	return addr, nil
}

// deriveAssociatedCurveAddress curve 的关联代币账户，按 ATA 规则推导。
func deriveAssociatedCurveAddress(mint, curve solanago.PublicKey) (solanago.PublicKey, error) {
	addr, _, err := solanago.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("推导 curve ATA 失败: %w", err)
	}
	return addr, nil
}
