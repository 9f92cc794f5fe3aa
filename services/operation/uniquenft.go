package operation

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/types"
)

// uniqueNFTBuilder ERC-721 唯一性 NFT 操作构建器
type uniqueNFTBuilder struct {
	config *Config
}

// Build 构建 ERC-721 操作
//
// - Buy/Swap 不支持：唯一性 NFT 不做同质化兑换
// - Send 走 safeTransferFrom(owner, to, tokenId)
// - Burn 是转入约定销毁地址（不假设合约有原生 burn 入口）
func (b *uniqueNFTBuilder) Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	switch intent.Kind {
	case types.OpSend:
		return b.buildTransfer(intent, execCtx, *intent.Recipient)
	case types.OpBurn:
		return b.buildTransfer(intent, execCtx, b.config.BurnAddress)
	default:
		return nil, unsupported(types.StandardUniqueNFT, intent.Kind)
	}
}

// buildTransfer 构建 safeTransferFrom 调用，Send/Burn 只差目标地址
func (b *uniqueNFTBuilder) buildTransfer(intent *types.OperationIntent, execCtx *types.ExecutionContext, to common.Address) (*types.TransactionPlan, error) {
	if to == (common.Address{}) {
		return nil, types.NewError(types.ErrKindInvalidToken, "destination address must not be zero")
	}

	// from 是资金实际所有者：SmartAccount 下是账户地址，不是签名者
	callData, err := packERC721SafeTransfer(execCtx.OwnerAddress(), to, intent.Subject.TokenID)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidToken, err, "encode safeTransferFrom failed")
	}

	return &types.TransactionPlan{
		To:       intent.Subject.Contract,
		CallData: callData,
		Value:    new(big.Int),
	}, nil
}
