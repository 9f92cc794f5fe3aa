package approval

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/utils"
	"github.com/openmint/token-engine-go/wallet"
)

// AllowanceReader 链上授权额度只读接口（由 client.Reader 满足）
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Executor 授权交易提交接口（由 execution.Service 满足）
//
// 经典授权交易必须经当前执行上下文的路由提交：SmartAccount 下
// approve 也要走账户合约的 execute 入口，绝不由签名者直接发出。
type Executor interface {
	Execute(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error)
}

// Service 授权协议接口
type Service interface {
	// Resolve 把交易计划解析为按提交顺序排列的步骤列表
	//
	// 经典授权在解析过程中即被提交并确认（对应步骤以已确认状态返回）；
	// permit 授权产出签名追加后的主交易，不提交任何前置交易。
	Resolve(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ResolvedPlan, error)
}

// approvalService 授权协议实现
type approvalService struct {
	reader   AllowanceReader
	executor Executor
}

// NewService 创建授权协议服务
func NewService(reader AllowanceReader, executor Executor) Service {
	return &approvalService{
		reader:   reader,
		executor: executor,
	}
}

// Resolve 解析交易计划
//
// **幂等性**：额度已足够时直接返回主交易，绝不提交第二笔授权。
func (s *approvalService) Resolve(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ResolvedPlan, error) {
	// 1. 无需授权的计划原样通过
	if !plan.NeedsApproval {
		return &types.ResolvedPlan{
			Steps: []types.ResolvedStep{mainCallStep(plan)},
		}, nil
	}
	if plan.Approval == nil {
		return nil, types.NewError(types.ErrKindUnsupportedOperation, "plan requires approval but carries no approval plan")
	}

	// 2. 按授权类型分流
	switch plan.Approval.Kind {
	case types.ApprovalClassic:
		return s.resolveClassic(ctx, plan, execCtx, signer)
	case types.ApprovalPermit:
		return s.resolvePermit(ctx, plan, execCtx, signer)
	default:
		return nil, types.NewError(types.ErrKindUnsupportedOperation, "unknown approval kind %s", plan.Approval.Kind)
	}
}

// resolveClassic 经典 approve 流程
//
// 确认后重读额度，防止 RPC 读写传播延迟造成的假成功。
func (s *approvalService) resolveClassic(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ResolvedPlan, error) {
	approval := plan.Approval
	owner := execCtx.OwnerAddress()

	// 1. 读当前额度，已足够则跳过授权
	allowance, err := s.reader.Allowance(ctx, approval.TokenContract, owner, approval.Spender)
	if err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "read allowance failed")
	}
	if allowance.Cmp(approval.Amount) >= 0 {
		return &types.ResolvedPlan{
			Steps: []types.ResolvedStep{mainCallStep(plan)},
		}, nil
	}

	// 2. 构建并经当前上下文的路由提交授权交易
	approveCallData, err := packApprove(approval.Spender, approval.Amount)
	if err != nil {
		return nil, types.WrapError(types.ErrKindInvalidToken, err, "encode approve failed")
	}
	approvePlan := &types.TransactionPlan{
		To:       approval.TokenContract,
		CallData: approveCallData,
		Value:    new(big.Int),
	}

	result, err := s.executor.Execute(ctx, approvePlan, execCtx, signer)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, types.NewError(result.ErrorKind, "approval transaction failed")
	}

	// 3. 确认后重读额度
	allowance, err = s.reader.Allowance(ctx, approval.TokenContract, owner, approval.Spender)
	if err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "re-read allowance failed")
	}
	if allowance.Cmp(approval.Amount) < 0 {
		return nil, types.NewError(types.ErrKindApprovalNotEffective,
			"allowance %s still below required %s after approval confirmed", allowance, approval.Amount)
	}

	return &types.ResolvedPlan{
		Steps: []types.ResolvedStep{
			{Kind: types.StepTransaction, Plan: approvePlan, Description: "approval confirmed"},
			mainCallStep(plan),
		},
	}, nil
}

// resolvePermit 签名式授权流程
//
// **安全关键**：签名前必须验证消息 owner 与上下文实际所有者一致。
// SmartAccount 的控制者可以代账户签名，但消息声明的 owner 必须是
// 账户地址本身；不一致立即以 PermitOwnerMismatch 终止，绝不纠正后继续。
func (s *approvalService) resolvePermit(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ResolvedPlan, error) {
	approval := plan.Approval
	if approval.TypedMessage == nil {
		return nil, types.NewError(types.ErrKindUnsupportedOperation, "permit approval carries no typed message")
	}
	owner := execCtx.OwnerAddress()

	// 1. 额度预检：permit 合约已获足够额度时跳过签名
	if token, required, ok := permitSpendDetails(approval.TypedMessage); ok {
		allowance, err := s.reader.Allowance(ctx, token, owner, approval.AllowanceTarget)
		if err != nil {
			return nil, types.WrapError(types.ErrKindNetworkError, err, "read allowance failed")
		}
		if allowance.Cmp(required) >= 0 {
			return &types.ResolvedPlan{
				Steps: []types.ResolvedStep{mainCallStep(plan)},
			}, nil
		}
	}

	// 2. owner 校验先于一切签名请求
	messageOwner, ok := permitOwner(approval.TypedMessage)
	if !ok {
		// 取不到 owner 按不一致处理，宁可中止也不盲签
		return nil, types.NewError(types.ErrKindPermitOwnerMismatch, "permit message carries no owner field")
	}
	if messageOwner != owner {
		return nil, types.NewError(types.ErrKindPermitOwnerMismatch,
			"permit owner %s does not match context owner %s", messageOwner.Hex(), owner.Hex())
	}

	// 3. 签名并追加到主交易 calldata（32 字节大端长度 + 原始签名）
	signature, err := signer.SignTypedData(*approval.TypedMessage)
	if err != nil {
		if wallet.IsRejected(err) {
			return nil, types.WrapError(types.ErrKindUserRejected, err, "permit signature rejected")
		}
		return nil, types.WrapError(types.ErrKindNetworkError, err, "sign permit failed")
	}

	// 值语义：产出新计划，绝不修改传入的计划
	signedPlan := &types.TransactionPlan{
		To:       plan.To,
		CallData: utils.AppendSignature(plan.CallData, signature),
		Value:    plan.Value,
	}

	return &types.ResolvedPlan{
		Steps: []types.ResolvedStep{mainCallStep(signedPlan)},
	}, nil
}

// mainCallStep 主交易步骤
func mainCallStep(plan *types.TransactionPlan) types.ResolvedStep {
	return types.ResolvedStep{
		Kind:        types.StepMainCall,
		Plan:        plan,
		Description: "main call",
	}
}

// permitOwner 从 typed data 消息中提取 owner 地址
func permitOwner(typedData *apitypes.TypedData) (common.Address, bool) {
	raw, ok := typedData.Message["owner"]
	if !ok {
		// permit2 风格消息把 owner 嵌在 spender/details 之外的顶层 from 字段
		raw, ok = typedData.Message["from"]
	}
	if !ok {
		return common.Address{}, false
	}

	str, ok := raw.(string)
	if !ok || !common.IsHexAddress(str) {
		return common.Address{}, false
	}
	return common.HexToAddress(str), true
}

// permitSpendDetails 从 typed data 消息中提取被授权代币与额度
//
// permit2 的 PermitTransferFrom 把两者放在 permitted.{token,amount}，
// PermitSingle 放在 details.{token,amount}。取不到时返回 ok=false，
// 调用方跳过预检、照常签名（签名总是安全的，预检只是省一次签名）。
func permitSpendDetails(typedData *apitypes.TypedData) (common.Address, *big.Int, bool) {
	for _, key := range []string{"permitted", "details"} {
		nested, ok := typedData.Message[key].(map[string]interface{})
		if !ok {
			continue
		}

		tokenStr, ok := nested["token"].(string)
		if !ok || !common.IsHexAddress(tokenStr) {
			continue
		}
		amount, ok := parseMessageAmount(nested["amount"])
		if !ok {
			continue
		}
		return common.HexToAddress(tokenStr), amount, true
	}
	return common.Address{}, nil, false
}

// parseMessageAmount 解析 typed data 消息中的金额字段（十进制或 0x 十六进制字符串）
func parseMessageAmount(raw interface{}) (*big.Int, bool) {
	str, ok := raw.(string)
	if !ok {
		return nil, false
	}

	base := 10
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		str = str[2:]
		base = 16
	}
	amount, ok := new(big.Int).SetString(str, base)
	if !ok {
		return nil, false
	}
	return amount, true
}
