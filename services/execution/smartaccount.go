package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/services/operation"
	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
)

// executeSmartAccount 智能账户模式执行
//
// 所有调用（授权、主交易、追加了 permit 签名的交易）统一包装进
// 账户合约的 execute(to, value, data) 入口，由控制者密钥签名提交。
// 绝不以账户地址为 from 直接发交易。
func (s *executionService) executeSmartAccount(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext) (*types.ExecutionResult, error) {
	if s.accounts == nil {
		return failed(types.ErrKindUnsupportedOperation),
			types.NewError(types.ErrKindUnsupportedOperation, "smart account execution service is not configured")
	}
	account := *execCtx.Account

	// 1. 部署预检：未部署的账户无法接收 execute 调用
	deployed, err := s.accounts.CheckAccountDeployment(ctx, account)
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "check account deployment failed")
	}
	if !deployed {
		return failed(types.ErrKindOnChainFailure),
			types.NewError(types.ErrKindOnChainFailure, "account %s is not deployed", account.Hex())
	}

	// 2. 进度文案按调用内容区分（不改变任何执行行为）
	s.report("submitting %s via account %s", describeCall(plan, s.config.ProceedsAddress), account.Hex())

	txHash, err := s.accounts.Execute(ctx, account, plan.To, plan.Value, plan.CallData)
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "account execute failed")
	}

	return s.waitForConfirmation(ctx, txHash)
}

// describeCall 识别调用类型用于进度上报
//
// 多版本 NFT 的 safeTransferFrom 按选择器识别，再解码第二个参数
// （to）与回收地址比对，区分 send 和 burn 的文案。
func describeCall(plan *types.TransactionPlan, proceedsAddress common.Address) string {
	selector, err := utils.Selector(plan.CallData)
	if err != nil {
		// 空 calldata 是普通转账
		return "transfer"
	}

	if selector == operation.ERC1155SafeTransferSelector {
		to, err := utils.DecodeAddressArg(plan.CallData, 1)
		if err == nil && proceedsAddress != (common.Address{}) && to == proceedsAddress {
			return "burn"
		}
		return "send"
	}

	return "call"
}
