package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrWaitTimeout 回执等待超时
//
// 交易可能仍会上链，只是确认等待被放弃；调用方据此归类为
// ConfirmationTimeout 而不是 OnChainFailure。
var ErrWaitTimeout = errors.New("wait for receipt timed out")

// erc20ReadABI ERC-20 只读方法 ABI
const erc20ReadABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// Reader 链上只读访问器
//
// 把 eth_call 包装成带类型的 ERC-20 查询，并提供统一的回执等待。
type Reader struct {
	client ChainClient

	// PollInterval 回执轮询间隔（默认 2 秒）
	PollInterval time.Duration

	abi abi.ABI
}

// NewReader 创建只读访问器
func NewReader(client ChainClient) (*Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ReadABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 read abi: %w", err)
	}

	return &Reader{
		client:       client,
		PollInterval: 2 * time.Second,
		abi:          parsed,
	}, nil
}

// BalanceOf 查询 ERC-20 余额
func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := r.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	output, err := r.client.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf failed: %w", err)
	}

	return r.unpackBig("balanceOf", output)
}

// NativeBalance 查询原生币余额
func (r *Reader) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	result, err := r.client.Call(ctx, "eth_getBalance", []interface{}{owner.Hex(), "latest"})
	if err != nil {
		return nil, fmt.Errorf("call eth_getBalance failed: %w", err)
	}
	return decodeHexBig(result)
}

// Allowance 查询 ERC-20 授权额度
func (r *Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := r.abi.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	output, err := r.client.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("call allowance failed: %w", err)
	}

	return r.unpackBig("allowance", output)
}

// Decimals 查询 ERC-20 精度
func (r *Reader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := r.abi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}

	output, err := r.client.CallContract(ctx, token, data)
	if err != nil {
		return 0, fmt.Errorf("call decimals failed: %w", err)
	}

	values, err := r.abi.Unpack("decimals", output)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	return decimals, nil
}

// WaitForReceipt 等待交易确认
//
// **策略**：
// - 客户端支持 newHeads 订阅时按区块信号轮询，否则按 PollInterval 定时轮询
// - 超时返回 ErrWaitTimeout；放弃等待不会撤销已广播的交易
func (r *Reader) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 优先用区块头订阅驱动
	var headCh <-chan uint64
	if subscriber, ok := r.client.(HeadSubscriber); ok {
		if ch, err := subscriber.SubscribeNewHeads(waitCtx); err == nil {
			headCh = ch
		}
	}

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := r.client.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		// 查询错误不立即终止：节点可能短暂不可达，交给超时兜底

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrWaitTimeout
		case _, ok := <-headCh:
			// 订阅断开时通道被关闭；置 nil 退回定时轮询，避免空转
			if !ok {
				headCh = nil
			}
		case <-ticker.C:
		}
	}
}

// unpackBig 解包单个 uint256 返回值
func (r *Reader) unpackBig(method string, output []byte) (*big.Int, error) {
	values, err := r.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s type %T", method, values[0])
	}
	return value, nil
}
