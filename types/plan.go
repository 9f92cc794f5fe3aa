package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ApprovalKind 授权计划类型
type ApprovalKind string

const (
	// ApprovalClassic 经典 approve 交易
	ApprovalClassic ApprovalKind = "classic"
	// ApprovalPermit EIP-712 签名式授权（permit2 风格），签名而非上链交易
	ApprovalPermit ApprovalKind = "permit"
)

// ApprovalPlan 授权计划
//
// Classic 模式使用 TokenContract/Spender/Amount 构建 approve 交易；
// Permit 模式使用 AllowanceTarget/TypedMessage，签名后把原始签名
// 追加到主交易 calldata 末尾。
type ApprovalPlan struct {
	Kind ApprovalKind

	// Classic 字段
	TokenContract common.Address
	Spender       common.Address
	Amount        *big.Int

	// Permit 字段
	AllowanceTarget common.Address
	TypedMessage    *apitypes.TypedData
}

// TransactionPlan 未签名交易计划
//
// **值语义**：
// - 由构建器产出，被授权协议消费一次，再被执行路由消费一次
// - 绝不通过修改字段来重试部分执行过的计划
type TransactionPlan struct {
	To       common.Address
	CallData []byte
	Value    *big.Int

	// NeedsApproval 仅当被花费代币非原生币且当前额度不足时为 true
	NeedsApproval bool
	Approval      *ApprovalPlan
}

// ResolvedStepKind 解析后的步骤类型
type ResolvedStepKind string

const (
	// StepTransaction 需要提交上链的交易
	StepTransaction ResolvedStepKind = "transaction"
	// StepMainCall 主交易（可能已追加 permit 签名）
	StepMainCall ResolvedStepKind = "main_call"
)

// ResolvedStep 授权协议解析出的单个步骤
type ResolvedStep struct {
	Kind ResolvedStepKind
	Plan *TransactionPlan
	// Description 进度提示用途的简短说明
	Description string
}

// ResolvedPlan 授权解析结果：按提交顺序排列的步骤列表
type ResolvedPlan struct {
	Steps []ResolvedStep
}

// ExecutionResult 执行结果
type ExecutionResult struct {
	Success bool
	TxHash  common.Hash
	// ErrorKind 失败时的错误分类，成功时为空
	ErrorKind ErrorKind
}

// AggregatorTransaction 聚合器返回的可执行交易
type AggregatorTransaction struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// QuoteResult 报价结果
//
// AsOfAmount 记录本次报价对应的输入金额。输入在请求在途期间发生变化时，
// 返回的结果会因 AsOfAmount 不匹配而被直接丢弃。
type QuoteResult struct {
	BuyAmount          *big.Int
	LiquidityAvailable bool
	AsOfAmount         string
}

// SwapQuote 聚合器完整报价：报价结果 + 可执行交易 + 授权信息
type SwapQuote struct {
	QuoteResult

	// AllowanceTarget 经典授权的 spender（无 permit2 时使用）
	AllowanceTarget common.Address

	// Permit2 签名式授权的 EIP-712 消息（存在时优先于经典授权）
	Permit2 *apitypes.TypedData

	Transaction AggregatorTransaction
}
