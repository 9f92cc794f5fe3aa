package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/openmint/token-engine-go/services/approval"
	"github.com/openmint/token-engine-go/services/execution"
	"github.com/openmint/token-engine-go/services/operation"
	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/wallet"
)

// Service 操作编排接口
//
// 每个用户动作一次调用：构建 → 授权解析 → 执行，严格顺序，
// 任何前置授权确认前绝不发出主交易。
type Service interface {
	Buy(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error)
	Swap(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error)
	Send(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error)
	Burn(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error)
}

// engineService 操作编排实现
//
// 薄胶水层：不持有任何跨操作可变状态，每次操作的计划与上下文
// 都是独立实例，并发操作互不干扰。重复提交防护（单飞）由调用方负责。
type engineService struct {
	builders operation.Service
	approval approval.Service
	executor execution.Service
	logger   *zap.Logger
}

// NewService 创建操作编排服务
func NewService(builders operation.Service, approvalSvc approval.Service, executor execution.Service, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &engineService{
		builders: builders,
		approval: approvalSvc,
		executor: executor,
		logger:   logger,
	}
}

// Buy 买入主体代币
func (s *engineService) Buy(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	return s.run(ctx, withKind(intent, types.OpBuy), execCtx, signer)
}

// Swap 把主体代币兑换为对手代币
func (s *engineService) Swap(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	return s.run(ctx, withKind(intent, types.OpSwap), execCtx, signer)
}

// Send 转出主体代币
func (s *engineService) Send(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	return s.run(ctx, withKind(intent, types.OpSend), execCtx, signer)
}

// Burn 销毁主体代币
func (s *engineService) Burn(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	return s.run(ctx, withKind(intent, types.OpBurn), execCtx, signer)
}

// run 执行一次完整操作
//
// 错误不经修改向上传播，编排层只负责记录，不做翻译或重试。
func (s *engineService) run(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	logger := s.logger.With(
		zap.String("kind", string(intent.Kind)),
		zap.String("standard", string(intent.Subject.Standard)),
		zap.String("owner", execCtx.OwnerAddress().Hex()),
	)
	logger.Info("operation started", zap.String("amount", intent.Amount))

	// 1. 构建交易计划
	plan, err := s.builders.Build(ctx, intent, execCtx)
	if err != nil {
		logger.Warn("build failed", zap.String("error_kind", string(types.KindOf(err))), zap.Error(err))
		return nil, err
	}

	// 2. 授权解析（经典授权在此阶段提交并确认）
	resolved, err := s.approval.Resolve(ctx, plan, execCtx, signer)
	if err != nil {
		logger.Warn("approval resolution failed", zap.String("error_kind", string(types.KindOf(err))), zap.Error(err))
		return nil, err
	}

	// 3. 主交易在所有授权确认后提交
	var result *types.ExecutionResult
	for _, step := range resolved.Steps {
		if step.Kind != types.StepMainCall {
			logger.Info("prerequisite step completed", zap.String("description", step.Description))
			continue
		}

		result, err = s.executor.Execute(ctx, step.Plan, execCtx, signer)
		if err != nil {
			logger.Warn("execution failed", zap.String("error_kind", string(types.KindOf(err))), zap.Error(err))
			return result, err
		}
	}
	if result == nil {
		return nil, types.NewError(types.ErrKindUnsupportedOperation, "resolved plan carries no main call")
	}

	logger.Info("operation confirmed", zap.String("tx_hash", result.TxHash.Hex()))
	return result, nil
}

// withKind 以指定操作类型复制意图（意图创建后不被修改）
func withKind(intent *types.OperationIntent, kind types.OperationKind) *types.OperationIntent {
	clone := *intent
	clone.Kind = kind
	return &clone
}
