package quote

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/openmint/token-engine-go/client"
	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// ValidateAmount 验证金额输入并转换为最小单位
//
// **解析阶段规则**（任何网络调用之前）：
// - 非数字、多小数点输入直接拒绝（InvalidAmount）
// - 超出 decimals 的小数位截断，绝不向上取整
// - 转换结果超过实时余额时拒绝（InsufficientBalance）
func ValidateAmount(amount string, balance *big.Int, decimals uint8) (*big.Int, error) {
	baseUnits, err := utils.ParseDecimalAmount(amount, decimals)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid amount %q", amount)
	}

	if baseUnits.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "amount must be greater than zero")
	}

	if balance != nil && baseUnits.Cmp(balance) > 0 {
		return nil, types.NewError(types.ErrKindInsufficientBalance,
			"amount %s exceeds balance %s", baseUnits.String(), balance.String())
	}

	return baseUnits, nil
}

// ValidateEditionQuantity 验证 NFT 版本数量输入
//
// 数量必须是非负整数；持有量给定时同样做余额上限检查。
func ValidateEditionQuantity(quantity string, balance *big.Int) (*big.Int, error) {
	parsed, err := utils.ParseEditionQuantity(quantity)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid quantity %q", quantity)
	}

	if parsed.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "quantity must be greater than zero")
	}

	if balance != nil && parsed.Cmp(balance) > 0 {
		return nil, types.NewError(types.ErrKindInsufficientBalance,
			"quantity %s exceeds balance %s", parsed.String(), balance.String())
	}

	return parsed, nil
}

// BalanceChecker 实时余额校验器
type BalanceChecker struct {
	reader *client.Reader
}

// NewBalanceChecker 创建余额校验器
func NewBalanceChecker(reader *client.Reader) *BalanceChecker {
	return &BalanceChecker{reader: reader}
}

// CheckSpendable 校验 owner 是否有足够余额花费 amount
//
// ERC-20 的余额和精度并行读取；原生币直接查账户余额。
// 返回解析后的最小单位金额。
func (b *BalanceChecker) CheckSpendable(ctx context.Context, token *types.TokenDescriptor, owner common.Address, amount string) (*big.Int, error) {
	if token.IsNative() {
		balance, err := b.reader.NativeBalance(ctx, owner)
		if err != nil {
			return nil, types.WrapError(types.ErrKindNetworkError, err, "read native balance failed")
		}
		return ValidateAmount(amount, balance, token.Decimals)
	}

	var (
		balance  *big.Int
		decimals = token.Decimals
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		value, err := b.reader.BalanceOf(gctx, token.Contract, owner)
		if err != nil {
			return types.WrapError(types.ErrKindNetworkError, err, "read token balance failed")
		}
		balance = value
		return nil
	})
	g.Go(func() error {
		// 链上精度优先于描述符里声明的精度
		value, err := b.reader.Decimals(gctx, token.Contract)
		if err != nil {
			return types.WrapError(types.ErrKindNetworkError, err, "read token decimals failed")
		}
		decimals = value
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ValidateAmount(amount, balance, decimals)
}
