package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseDecimalAmount 把十进制字符串金额转换为整数最小单位
//
// **精度策略**：
// - 超出 decimals 位数的小数部分直接截断，绝不向上取整
// - 全程 big.Int 整数运算，不经过浮点
//
// **拒绝规则**（解析阶段，任何网络调用之前）：
// - 空串、负号、非数字字符
// - 多于一个小数点
func ParseDecimalAmount(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is empty")
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("amount has multiple decimal points: %q", amount)
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}

	// "1." 和 ".5" 允许，"." 不允许
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("amount is not a number: %q", amount)
	}
	if intPart == "" {
		intPart = "0"
	}

	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, fmt.Errorf("amount is not a number: %q", amount)
	}

	// 截断超出精度的小数位
	if len(fracPart) > int(decimals) {
		fracPart = fracPart[:decimals]
	}
	// 右侧补零到 decimals 位
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	combined := intPart + fracPart
	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("parse amount failed: %q", amount)
	}

	return result, nil
}

// ParseEditionQuantity 解析 NFT 版本数量
//
// 数量必须是非负整数，不允许小数（没有"半个版本"）。
func ParseEditionQuantity(quantity string) (*big.Int, error) {
	quantity = strings.TrimSpace(quantity)
	if quantity == "" {
		return nil, fmt.Errorf("quantity is empty")
	}
	if !isDigits(quantity) {
		return nil, fmt.Errorf("quantity must be a non-negative integer: %q", quantity)
	}

	result, ok := new(big.Int).SetString(quantity, 10)
	if !ok {
		return nil, fmt.Errorf("parse quantity failed: %q", quantity)
	}
	return result, nil
}

// FormatBaseUnits 把最小单位金额格式化为十进制字符串（去除尾随零）
func FormatBaseUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}

	s := amount.String()
	if decimals == 0 {
		return s
	}

	// 左侧补零保证至少 decimals+1 位
	for len(s) <= int(decimals) {
		s = "0" + s
	}

	intPart := s[:len(s)-int(decimals)]
	fracPart := strings.TrimRight(s[len(s)-int(decimals):], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// isDigits 检查字符串是否全部由 ASCII 数字组成
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
