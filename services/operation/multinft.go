package operation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// multiNFTBuilder ERC-1155 多版本 NFT 操作构建器
type multiNFTBuilder struct {
	config *Config
}

// Build 构建 ERC-1155 操作
//
// - Buy 是一级铸造：直接调用铸造合约，用同质化代币支付
// - Swap 不支持
// - Send/Burn 都是 safeTransferFrom，只差目标地址
//   （Burn = 不可逆转入回收地址，不是协议级销毁）
func (b *multiNFTBuilder) Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	switch intent.Kind {
	case types.OpBuy:
		return b.buildPrimaryMint(intent, execCtx)
	case types.OpSend:
		return b.buildTransfer(intent, execCtx, *intent.Recipient)
	case types.OpBurn:
		if b.config.ProceedsAddress == (common.Address{}) {
			return nil, types.NewError(types.ErrKindUnsupportedOperation, "proceeds address is not configured")
		}
		return b.buildTransfer(intent, execCtx, b.config.ProceedsAddress)
	default:
		return nil, unsupported(types.StandardMultiNFT, intent.Kind)
	}
}

// buildPrimaryMint 构建一级铸造调用
//
// totalPrice = unitPrice × quantity，全程整数运算，无任何浮点路径。
// 支付代币需要对铸造合约授权 totalPrice。
func (b *multiNFTBuilder) buildPrimaryMint(intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	if b.config.MinterContract == (common.Address{}) {
		return nil, types.NewError(types.ErrKindUnsupportedOperation, "minter contract is not configured")
	}
	if intent.UnitPrice == nil || intent.UnitPrice.Sign() < 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "unit price is required for primary mint")
	}
	currency := intent.Counterparty
	if currency == nil || currency.IsNative() {
		return nil, types.NewError(types.ErrKindInvalidToken, "primary mint requires a fungible currency token")
	}

	// 数量必须是非负整数，没有"半个版本"
	quantity, err := utils.ParseEditionQuantity(intent.Amount)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid quantity %q", intent.Amount)
	}
	if quantity.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "quantity must be greater than zero")
	}

	totalPrice := new(big.Int).Mul(intent.UnitPrice, quantity)

	callData, err := packMint(
		execCtx.OwnerAddress(),
		quantity,
		intent.Subject.Contract,
		intent.Subject.TokenID,
		totalPrice,
		currency.Contract,
		b.config.Referral,
		"",
	)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidToken, err, "encode mint failed")
	}

	return &types.TransactionPlan{
		To:            b.config.MinterContract,
		CallData:      callData,
		Value:         new(big.Int),
		NeedsApproval: true,
		Approval: &types.ApprovalPlan{
			Kind:          types.ApprovalClassic,
			TokenContract: currency.Contract,
			Spender:       b.config.MinterContract,
			Amount:        totalPrice,
		},
	}, nil
}

// buildTransfer 构建 safeTransferFrom(owner, to, id, amount, "") 调用
func (b *multiNFTBuilder) buildTransfer(intent *types.OperationIntent, execCtx *types.ExecutionContext, to common.Address) (*types.TransactionPlan, error) {
	if to == (common.Address{}) {
		return nil, types.NewError(types.ErrKindInvalidToken, "destination address must not be zero")
	}

	quantity, err := utils.ParseEditionQuantity(intent.Amount)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid quantity %q", intent.Amount)
	}
	if quantity.Sign() == 0 {
		return nil, types.NewError(types.ErrKindInvalidAmount, "quantity must be greater than zero")
	}

	callData, err := packERC1155SafeTransfer(execCtx.OwnerAddress(), to, intent.Subject.TokenID, quantity)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidToken, err, "encode safeTransferFrom failed")
	}

	return &types.TransactionPlan{
		To:       intent.Subject.Contract,
		CallData: callData,
		Value:    new(big.Int),
	}, nil
}
