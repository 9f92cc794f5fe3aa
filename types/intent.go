package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OperationKind 用户操作类型
type OperationKind string

const (
	OpBuy  OperationKind = "buy"
	OpSwap OperationKind = "swap"
	OpSend OperationKind = "send"
	OpBurn OperationKind = "burn"
)

// Valid 检查操作类型是否为已知值
func (k OperationKind) Valid() bool {
	switch k {
	case OpBuy, OpSwap, OpSend, OpBurn:
		return true
	}
	return false
}

// OperationIntent 操作意图
//
// **生命周期**：
// - 每次用户提交创建一个新实例，创建后不再修改
// - 操作完成或取消后丢弃，不做任何持久化
type OperationIntent struct {
	Kind   OperationKind
	Amount string // 十进制字符串（Fungible/Native 可带小数；NFT 数量必须为整数）

	// Subject 操作主体代币
	Subject TokenDescriptor

	// Counterparty 对手代币（Buy/Swap 必填；Fungible Buy 的 sell 腿 / Swap 的 buy 腿）
	Counterparty *TokenDescriptor

	// Recipient 接收地址（Send 必填）
	Recipient *common.Address

	// UnitPrice 单价（仅 MultiNFT 一级铸造 Buy，按支付代币的最小单位计）
	UnitPrice *big.Int
}

// Validate 验证意图与操作类型所需字段是否匹配
func (i *OperationIntent) Validate() error {
	if !i.Kind.Valid() {
		return fmt.Errorf("unknown operation kind: %s", i.Kind)
	}
	if err := i.Subject.Validate(); err != nil {
		return fmt.Errorf("subject token: %w", err)
	}
	if i.Amount == "" {
		return fmt.Errorf("amount is required")
	}

	switch i.Kind {
	case OpBuy, OpSwap:
		// MultiNFT 一级铸造 Buy 不需要对手代币由报价决定，但需要支付代币
		if i.Counterparty == nil {
			return fmt.Errorf("%s requires a counterparty token", i.Kind)
		}
		if err := i.Counterparty.Validate(); err != nil {
			return fmt.Errorf("counterparty token: %w", err)
		}
	case OpSend:
		if i.Recipient == nil {
			return fmt.Errorf("send requires a recipient address")
		}
	}

	return nil
}

// ExecutionMode 执行上下文模式
type ExecutionMode string

const (
	// ModeDirectWallet 直连钱包：交易由签名者直接签名提交
	ModeDirectWallet ExecutionMode = "direct_wallet"
	// ModeSmartAccount 智能账户：交易经账户合约的 execute 入口提交，
	// 由控制者密钥签名（ERC-6551 风格）
	ModeSmartAccount ExecutionMode = "smart_account"
)

// ExecutionContext 执行上下文
//
// **所有权语义**：
// - SmartAccount 模式下资金所有者是 Account，Signer 只是控制者
// - DirectWallet 模式下 Signer 即所有者
type ExecutionContext struct {
	Mode    ExecutionMode
	Signer  common.Address
	Account *common.Address // SmartAccount 模式必填
}

// OwnerAddress 返回资金的实际所有者地址
//
// 报价的 taker、permit 消息的 owner 都必须使用这个地址，
// 绝不能在 SmartAccount 模式下退回到 Signer。
func (c *ExecutionContext) OwnerAddress() common.Address {
	if c.Mode == ModeSmartAccount && c.Account != nil {
		return *c.Account
	}
	return c.Signer
}

// Validate 验证执行上下文
func (c *ExecutionContext) Validate() error {
	switch c.Mode {
	case ModeDirectWallet:
		// Account 在直连模式下无意义
	case ModeSmartAccount:
		if c.Account == nil {
			return fmt.Errorf("smart account mode requires an account address")
		}
		if *c.Account == (common.Address{}) {
			return fmt.Errorf("smart account address must not be zero")
		}
	default:
		return fmt.Errorf("unknown execution mode: %s", c.Mode)
	}

	if c.Signer == (common.Address{}) {
		return fmt.Errorf("signer address must not be zero")
	}
	return nil
}
