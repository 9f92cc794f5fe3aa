package operation

import (
	"context"
	"math/big"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// fungibleBuilder ERC-20 同质化代币操作构建器
type fungibleBuilder struct {
	quotes QuoteProvider
	config *Config
}

// Build 构建 ERC-20 操作
//
// Buy 和 Swap 是同一个聚合器调用的两个方向：Swap 通过交换
// Buy 调用的买卖腿实现，除腿顺序外不走任何独立路径。
func (b *fungibleBuilder) Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	switch intent.Kind {
	case types.OpBuy:
		// 卖出对手代币，买入主体代币
		return buildAggregatorPlan(ctx, b.quotes, b.config, intent.Counterparty, &intent.Subject, intent.Amount, execCtx)
	case types.OpSwap:
		// Swap = 腿对调的 Buy
		return buildAggregatorPlan(ctx, b.quotes, b.config, &intent.Subject, intent.Counterparty, intent.Amount, execCtx)
	case types.OpSend:
		return b.buildSend(intent)
	case types.OpBurn:
		return b.buildBurn(intent)
	default:
		return nil, unsupported(types.StandardFungible, intent.Kind)
	}
}

// buildSend 构建 transfer(to, amount) 调用
func (b *fungibleBuilder) buildSend(intent *types.OperationIntent) (*types.TransactionPlan, error) {
	amount, err := b.parseAmount(intent)
	if err != nil {
		return nil, err
	}

	callData, err := packERC20Transfer(*intent.Recipient, amount)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidToken, err, "encode transfer failed")
	}

	return &types.TransactionPlan{
		To:       intent.Subject.Contract,
		CallData: callData,
		Value:    new(big.Int),
	}, nil
}

// buildBurn 构建 burn(amount) 调用（假设代币合约暴露持有者发起的 burn 入口）
func (b *fungibleBuilder) buildBurn(intent *types.OperationIntent) (*types.TransactionPlan, error) {
	amount, err := b.parseAmount(intent)
	if err != nil {
		return nil, err
	}

	callData, err := packERC20Burn(amount)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidToken, err, "encode burn failed")
	}

	return &types.TransactionPlan{
		To:       intent.Subject.Contract,
		CallData: callData,
		Value:    new(big.Int),
	}, nil
}

// parseAmount 把意图金额转换为主体代币的最小单位
func (b *fungibleBuilder) parseAmount(intent *types.OperationIntent) (*big.Int, error) {
	amount, err := utils.ParseDecimalAmount(intent.Amount, intent.Subject.Decimals)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid amount %q", intent.Amount)
	}
	if amount.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "amount must be greater than zero")
	}
	return amount, nil
}
