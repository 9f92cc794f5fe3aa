package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// httpClient HTTP客户端实现
type httpClient struct {
	endpoint string
	client   *http.Client
	logger   Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

// NewHTTPClient 创建HTTP客户端
func NewHTTPClient(config *Config) (ChainClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	httpCli := &http.Client{
		Timeout: time.Duration(config.Timeout) * time.Second,
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Debug && config.Logger != nil {
			retryConfig.OnRetry = func(attempt int, err error) {
				config.Logger.Warn("Retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	return &httpClient{
		endpoint: config.Endpoint,
		client:   httpCli,
		logger:   config.Logger,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// Call 调用JSON-RPC方法
func (c *httpClient) Call(ctx context.Context, method string, params interface{}) (interface{}, error) {
	// 构建JSON-RPC请求，使用原子计数器生成唯一ID
	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	// 发送请求（带重试）
	var resp *http.Response
	err = withRetry(ctx, func() error {
		// 每次重试都创建新的请求（因为 Body 只能读取一次）
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}

		if isRetryableHTTPError(httpResp.StatusCode) {
			httpResp.Body.Close()
			return fmt.Errorf("HTTP error: %d", httpResp.StatusCode)
		}

		resp = httpResp
		return nil
	}, c.retry)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, NewTimeoutError()
		}
		return nil, NewNetworkError(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && c.logger != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("read response failed: %w", err))
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("JSON-RPC response", "status", resp.StatusCode, "body", string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewInvalidResponseError(fmt.Sprintf("HTTP error: %d, body: %s", resp.StatusCode, string(respBody)))
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("unmarshal response failed: %v", err))
	}

	if jsonResp.Error != nil {
		return nil, decodeRPCError(jsonResp.Error)
	}

	return jsonResp.Result, nil
}

// decodeRPCError 归类 JSON-RPC 错误，把执行回滚从节点故障里区分出来
func decodeRPCError(e *jsonRPCError) *Error {
	if strings.Contains(strings.ToLower(e.Message), "revert") {
		return NewRevertedError(e.Message, e.Data)
	}
	return NewRPCError(e.Code, e.Message, e.Data)
}

// CallContract 只读合约调用
func (c *httpClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	params := []interface{}{
		map[string]interface{}{
			"to":   to.Hex(),
			"data": hexutil.Encode(data),
		},
		"latest",
	}

	result, err := c.Call(ctx, "eth_call", params)
	if err != nil {
		return nil, err
	}

	return decodeHexBytes(result)
}

// SendRawTransaction 发送已签名的原始交易
func (c *httpClient) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	result, err := c.Call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(signedTx)})
	if err != nil {
		return common.Hash{}, err
	}

	hashStr, ok := result.(string)
	if !ok {
		return common.Hash{}, NewInvalidResponseError(fmt.Sprintf("expected tx hash string, got %T", result))
	}
	return common.HexToHash(hashStr), nil
}

// TransactionReceipt 查询交易回执
func (c *httpClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash.Hex()})
	if err != nil {
		return nil, err
	}

	// 交易尚未上链
	if result == nil {
		return nil, nil
	}

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		return nil, NewInvalidResponseError(fmt.Sprintf("expected receipt object, got %T", result))
	}

	return decodeReceipt(resultMap)
}

// ChainID 查询链ID
func (c *httpClient) ChainID(ctx context.Context) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_chainId", []interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeHexBig(result)
}

// PendingNonceAt 查询地址的 pending nonce
func (c *httpClient) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	result, err := c.Call(ctx, "eth_getTransactionCount", []interface{}{address.Hex(), "pending"})
	if err != nil {
		return 0, err
	}
	return decodeHexUint64(result)
}

// SuggestGasPrice 查询建议 gas 价格
func (c *httpClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_gasPrice", []interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeHexBig(result)
}

// EstimateGas 估算交易 gas 用量
func (c *httpClient) EstimateGas(ctx context.Context, msg *CallMsg) (uint64, error) {
	callObj := map[string]interface{}{
		"from": msg.From.Hex(),
	}
	if msg.To != nil {
		callObj["to"] = msg.To.Hex()
	}
	if len(msg.Data) > 0 {
		callObj["data"] = hexutil.Encode(msg.Data)
	}
	if msg.Value != nil && msg.Value.Sign() > 0 {
		callObj["value"] = hexutil.EncodeBig(msg.Value)
	}

	result, err := c.Call(ctx, "eth_estimateGas", []interface{}{callObj})
	if err != nil {
		return 0, err
	}
	return decodeHexUint64(result)
}

// Close 关闭连接（HTTP客户端无需特殊处理）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// jsonRPCRequest JSON-RPC请求结构
type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// jsonRPCResponse JSON-RPC响应结构
type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      uint64        `json:"id"`
}

// jsonRPCError JSON-RPC错误结构
type jsonRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// decodeHexBytes 解码十六进制字符串结果为字节切片
func decodeHexBytes(result interface{}) ([]byte, error) {
	str, ok := result.(string)
	if !ok {
		return nil, NewInvalidResponseError(fmt.Sprintf("expected hex string, got %T", result))
	}
	if str == "" || str == "0x" {
		return []byte{}, nil
	}
	data, err := hexutil.Decode(str)
	if err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("decode hex failed: %v", err))
	}
	return data, nil
}

// decodeHexBig 解码十六进制字符串结果为大整数
func decodeHexBig(result interface{}) (*big.Int, error) {
	str, ok := result.(string)
	if !ok {
		return nil, NewInvalidResponseError(fmt.Sprintf("expected hex string, got %T", result))
	}
	value, err := hexutil.DecodeBig(str)
	if err != nil {
		return nil, NewInvalidResponseError(fmt.Sprintf("decode hex number failed: %v", err))
	}
	return value, nil
}

// decodeHexUint64 解码十六进制字符串结果为uint64
func decodeHexUint64(result interface{}) (uint64, error) {
	str, ok := result.(string)
	if !ok {
		return 0, NewInvalidResponseError(fmt.Sprintf("expected hex string, got %T", result))
	}
	value, err := hexutil.DecodeUint64(str)
	if err != nil {
		return 0, NewInvalidResponseError(fmt.Sprintf("decode hex number failed: %v", err))
	}
	return value, nil
}

// decodeReceipt 解码交易回执
func decodeReceipt(m map[string]interface{}) (*Receipt, error) {
	receipt := &Receipt{}

	if hashStr, ok := m["transactionHash"].(string); ok {
		receipt.TxHash = common.HexToHash(hashStr)
	}

	if statusStr, ok := m["status"].(string); ok {
		status, err := hexutil.DecodeUint64(statusStr)
		if err != nil {
			return nil, NewInvalidResponseError(fmt.Sprintf("decode receipt status failed: %v", err))
		}
		receipt.Status = status
	}

	if bnStr, ok := m["blockNumber"].(string); ok && strings.HasPrefix(bnStr, "0x") {
		if bn, err := hexutil.DecodeUint64(bnStr); err == nil {
			receipt.BlockNumber = bn
		}
	}

	if gasStr, ok := m["gasUsed"].(string); ok && strings.HasPrefix(gasStr, "0x") {
		if gas, err := hexutil.DecodeUint64(gasStr); err == nil {
			receipt.GasUsed = gas
		}
	}

	return receipt, nil
}
