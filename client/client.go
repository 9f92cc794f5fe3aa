package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainClient 链客户端接口
//
// 引擎对节点的窄依赖：只读合约调用、原始交易广播、回执查询
// 和填充交易所需的少量链上参数。
type ChainClient interface {
	// Call 调用 JSON-RPC 方法
	Call(ctx context.Context, method string, params interface{}) (interface{}, error)

	// CallContract 只读合约调用（eth_call，latest 区块）
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// SendRawTransaction 发送已签名的原始交易
	SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error)

	// TransactionReceipt 查询交易回执；交易未上链时返回 nil, nil
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)

	// ChainID 查询链ID
	ChainID(ctx context.Context) (*big.Int, error)

	// PendingNonceAt 查询地址的 pending nonce
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)

	// SuggestGasPrice 查询建议 gas 价格
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas 估算交易 gas 用量
	EstimateGas(ctx context.Context, msg *CallMsg) (uint64, error)

	// Close 关闭连接
	Close() error
}

// HeadSubscriber 新区块头订阅接口（WebSocket 客户端实现）
//
// 回执等待优先用区块头信号驱动轮询，不支持订阅的客户端退回定时轮询。
type HeadSubscriber interface {
	SubscribeNewHeads(ctx context.Context) (<-chan uint64, error)
}

// CallMsg 合约调用/估算参数
type CallMsg struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Data  []byte
}

// Receipt 交易回执
type Receipt struct {
	TxHash      common.Hash
	Status      uint64 // 1 成功，0 回滚
	BlockNumber uint64
	GasUsed     uint64
}

// Reverted 交易是否已确认但回滚
func (r *Receipt) Reverted() bool {
	return r.Status == 0
}

// NewClient 创建新的客户端
func NewClient(config *Config) (ChainClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Protocol {
	case ProtocolHTTP:
		return NewHTTPClient(config)
	case ProtocolWebSocket:
		return NewWebSocketClient(config)
	default:
		return nil, NewNotSupportedError(fmt.Sprintf("protocol %q", config.Protocol))
	}
}
