package operation

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/services/quote"
	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// buildAggregatorPlan 构建经聚合器的兑换交易计划
//
// Buy 和 Swap 是同一个操作的两个方向：Buy 卖出对手代币买入主体，
// Swap 把买卖腿对调后走完全相同的构建路径（两者产出结构逐字节一致）。
//
// **授权规则**：卖出腿非原生币即需要授权；聚合器返回 permit2 时
// 走签名式授权，否则对 allowanceTarget 做经典 approve。
func buildAggregatorPlan(ctx context.Context, quotes QuoteProvider, config *Config,
	sell, buy *types.TokenDescriptor, amount string, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {

	// 1. 金额按卖出腿精度转换（解析阶段拒绝坏输入，见 quote.ValidateAmount）
	sellAmount, err := utils.ParseDecimalAmount(amount, sell.Decimals)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid sell amount %q", amount)
	}
	if sellAmount.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "sell amount must be greater than zero")
	}

	// 2. 报价 taker 必须是资金实际所有者（SmartAccount 下是账户地址）
	swapQuote, err := quotes.GetSwapQuote(ctx, &quote.QuoteRequest{
		SellToken:   aggregatorAddress(sell),
		BuyToken:    aggregatorAddress(buy),
		SellAmount:  sellAmount,
		Taker:       execCtx.OwnerAddress(),
		SlippageBps: config.SlippageBps,
		FeeBps:      config.FeeBps,
	})
	if err != nil {
		return nil, err
	}

	if !swapQuote.LiquidityAvailable {
		return nil, types.NewError(types.ErrKindInsufficientLiquidity,
			"no liquidity for %s -> %s", sell.Symbol, buy.Symbol)
	}

	plan := &types.TransactionPlan{
		To:       swapQuote.Transaction.To,
		CallData: swapQuote.Transaction.Data,
		Value:    swapQuote.Transaction.Value,
	}

	// 3. 卖原生币不需要授权
	if sell.IsNative() {
		return plan, nil
	}

	plan.NeedsApproval = true
	if swapQuote.Permit2 != nil {
		plan.Approval = &types.ApprovalPlan{
			Kind:            types.ApprovalPermit,
			AllowanceTarget: swapQuote.AllowanceTarget,
			TypedMessage:    swapQuote.Permit2,
		}
	} else {
		plan.Approval = &types.ApprovalPlan{
			Kind:          types.ApprovalClassic,
			TokenContract: sell.Contract,
			Spender:       swapQuote.AllowanceTarget,
			Amount:        sellAmount,
		}
	}

	return plan, nil
}

// aggregatorAddress 代币在聚合器请求中的地址表示
func aggregatorAddress(token *types.TokenDescriptor) common.Address {
	if token.IsNative() {
		return types.NativeTokenPlaceholder
	}
	return token.Contract
}
