package trading

import "math"

// ClampBuyAmount 把买入预算钳制到金库余额的 maxFraction 以内。
// 结果向下取整到 4 位小数，避免因精度溢出余额。
func ClampBuyAmount(requested, treasurySOL, maxFraction float64) float64 {
	if requested <= 0 || treasurySOL <= 0 {
		return 0
	}
	if maxFraction <= 0 || maxFraction > 1 {
		maxFraction = 1
	}
	limit := floorToDecimals(treasurySOL*maxFraction, 4)
	return math.Min(requested, limit)
}

// floorToDecimals 向下取整到指定小数位。
func floorToDecimals(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Floor(v)
	}
	factor := math.Pow10(decimals)
	return math.Floor(v*factor) / factor
}
