package operation

import (
	"context"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// nativeBuilder 原生币操作构建器
type nativeBuilder struct {
	quotes QuoteProvider
	config *Config
}

// Build 构建原生币操作
//
// - Buy/Swap 走聚合器（Buy 卖对手买原生，Swap 卖原生买对手）
// - Send 是普通转账（calldata 为空）
// - Burn 不支持：原生币没有销毁入口
func (b *nativeBuilder) Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	switch intent.Kind {
	case types.OpBuy:
		return buildAggregatorPlan(ctx, b.quotes, b.config, intent.Counterparty, &intent.Subject, intent.Amount, execCtx)
	case types.OpSwap:
		return buildAggregatorPlan(ctx, b.quotes, b.config, &intent.Subject, intent.Counterparty, intent.Amount, execCtx)
	case types.OpSend:
		return b.buildSend(intent)
	default:
		return nil, unsupported(types.StandardNative, intent.Kind)
	}
}

// buildSend 构建原生币转账
func (b *nativeBuilder) buildSend(intent *types.OperationIntent) (*types.TransactionPlan, error) {
	value, err := utils.ParseDecimalAmount(intent.Amount, intent.Subject.Decimals)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid amount %q", intent.Amount)
	}
	if value.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "amount must be greater than zero")
	}

	return &types.TransactionPlan{
		To:    *intent.Recipient,
		Value: value,
	}, nil
}
