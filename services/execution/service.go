package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/client"
	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/wallet"
)

// StatusFunc 进度回调
//
// 路由通过回调上报人类可读的进度文案，不依赖任何 UI 类型。
type StatusFunc func(message string)

// Config 执行路由配置
type Config struct {
	// ConfirmTimeout 回执确认等待上限（默认 2 分钟）
	ConfirmTimeout time.Duration

	// ProceedsAddress 多版本 NFT 的回收地址，仅用于区分 send/burn 的进度文案
	ProceedsAddress common.Address

	// Status 进度回调，为 nil 时进度被丢弃
	Status StatusFunc
}

// DefaultConfig 默认执行路由配置
func DefaultConfig() *Config {
	return &Config{
		ConfirmTimeout: 2 * time.Minute,
	}
}

// Service 执行路由接口
type Service interface {
	// Execute 把交易计划按执行上下文提交上链并等待确认
	Execute(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error)
}

// executionService 执行路由实现
//
// **双模路由**：
// - DirectWallet：签名者本地签名，原始交易直接广播
// - SmartAccount：一切调用经账户合约 execute 入口，由执行服务代为提交
//
// 两种模式共用同一套回执等待与错误归类。
type executionService struct {
	chain    client.ChainClient
	reader   *client.Reader
	accounts client.AccountClient
	config   *Config
}

// NewService 创建执行路由
//
// accounts 仅 SmartAccount 模式需要，纯直连部署可传 nil。
func NewService(chain client.ChainClient, reader *client.Reader, accounts client.AccountClient, config *Config) Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ConfirmTimeout == 0 {
		config.ConfirmTimeout = 2 * time.Minute
	}

	return &executionService{
		chain:    chain,
		reader:   reader,
		accounts: accounts,
		config:   config,
	}
}

// Execute 提交交易计划
//
// **幂等边界**：确认回执到手后绝不重新提交；协议级去重（nonce 复用防护）
// 由调用方的单飞控制负责，路由不做。
func (s *executionService) Execute(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	switch execCtx.Mode {
	case types.ModeDirectWallet:
		return s.executeDirect(ctx, plan, signer)
	case types.ModeSmartAccount:
		return s.executeSmartAccount(ctx, plan, execCtx)
	default:
		return failed(types.ErrKindUnsupportedOperation),
			types.NewError(types.ErrKindUnsupportedOperation, "unknown execution mode %s", execCtx.Mode)
	}
}

// waitForConfirmation 等待回执并归类结果
//
// 超时归为 ConfirmationTimeout（交易可能仍会上链，可安全重试等待）；
// 确认但回滚归为 OnChainFailure（致命）。
func (s *executionService) waitForConfirmation(ctx context.Context, txHash common.Hash) (*types.ExecutionResult, error) {
	s.report("waiting for confirmation of %s", txHash.Hex())

	receipt, err := s.reader.WaitForReceipt(ctx, txHash, s.config.ConfirmTimeout)
	if err != nil {
		if err == client.ErrWaitTimeout {
			return failedWithHash(types.ErrKindConfirmationTimeout, txHash),
				types.WrapError(types.ErrKindConfirmationTimeout, err, "confirmation wait for %s timed out", txHash.Hex())
		}
		return failedWithHash(types.ErrKindNetworkError, txHash),
			types.WrapError(types.ErrKindNetworkError, err, "wait for receipt failed")
	}

	if receipt.Reverted() {
		return failedWithHash(types.ErrKindOnChainFailure, txHash),
			types.NewError(types.ErrKindOnChainFailure, "transaction %s reverted on chain", txHash.Hex())
	}

	s.report("transaction %s confirmed", txHash.Hex())
	return &types.ExecutionResult{Success: true, TxHash: txHash}, nil
}

// report 上报进度
func (s *executionService) report(format string, args ...interface{}) {
	if s.config.Status != nil {
		s.config.Status(fmt.Sprintf(format, args...))
	}
}

// failed 构造失败结果
func failed(kind types.ErrorKind) *types.ExecutionResult {
	return &types.ExecutionResult{ErrorKind: kind}
}

// failedWithHash 构造带交易哈希的失败结果
func failedWithHash(kind types.ErrorKind, txHash common.Hash) *types.ExecutionResult {
	return &types.ExecutionResult{TxHash: txHash, ErrorKind: kind}
}
