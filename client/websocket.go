package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

// websocketClient WebSocket 客户端实现
//
// 除 JSON-RPC 请求/响应外还支持 eth_subscribe 通知分发，
// 回执等待可以用 newHeads 订阅代替定时轮询。
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	closed   int32
	nextID   atomic.Uint64

	muReq    sync.RWMutex
	requests map[uint64]chan *wsResponse

	muSub         sync.RWMutex
	subscriptions map[string]chan uint64
}

// wsResponse JSON-RPC 响应（请求-响应模式）
type wsResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`

	// 订阅通知字段
	Method string           `json:"method,omitempty"`
	Params *wsNotifyPayload `json:"params,omitempty"`
}

// wsNotifyPayload 订阅通知负载
type wsNotifyPayload struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (ChainClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := config.Endpoint
	// 将 http:// 或 https:// 转换为 ws:// 或 wss://
	if len(endpoint) >= 7 && endpoint[:7] == "http://" {
		endpoint = "ws://" + endpoint[7:]
	} else if len(endpoint) >= 8 && endpoint[:8] == "https://" {
		endpoint = "wss://" + endpoint[8:]
	} else if len(endpoint) < 5 || (endpoint[:5] != "ws://" && endpoint[:5] != "wss://") {
		endpoint = "ws://" + endpoint
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial websocket: %w", err))
	}

	c := &websocketClient{
		endpoint:      endpoint,
		conn:          conn,
		requests:      make(map[uint64]chan *wsResponse),
		subscriptions: make(map[string]chan uint64),
	}

	// 启动消息读取循环
	go c.readLoop()

	return c, nil
}

// readLoop 消息读取循环
func (c *websocketClient) readLoop() {
	defer func() {
		atomic.StoreInt32(&c.closed, 1)
		c.muReq.Lock()
		for _, ch := range c.requests {
			close(ch)
		}
		c.requests = make(map[uint64]chan *wsResponse)
		c.muReq.Unlock()

		c.muSub.Lock()
		for _, ch := range c.subscriptions {
			close(ch)
		}
		c.subscriptions = make(map[string]chan uint64)
		c.muSub.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var resp wsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}

		// 订阅通知
		if resp.Method == "eth_subscription" && resp.Params != nil {
			c.dispatchNotification(resp.Params)
			continue
		}

		// 请求-响应
		c.muReq.Lock()
		ch, ok := c.requests[resp.ID]
		if ok {
			delete(c.requests, resp.ID)
		}
		c.muReq.Unlock()
		if ok {
			ch <- &resp
			close(ch)
		}
	}
}

// dispatchNotification 分发 newHeads 通知到订阅通道
func (c *websocketClient) dispatchNotification(payload *wsNotifyPayload) {
	var head struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(payload.Result, &head); err != nil {
		return
	}
	blockNumber, err := hexutil.DecodeUint64(head.Number)
	if err != nil {
		return
	}

	c.muSub.RLock()
	ch, ok := c.subscriptions[payload.Subscription]
	c.muSub.RUnlock()
	if ok {
		select {
		case ch <- blockNumber:
		default:
			// 订阅方没有及时消费时丢弃，区块号只作轮询信号
		}
	}
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params interface{}) (interface{}, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, NewNetworkError(fmt.Errorf("websocket connection closed"))
	}

	id := c.nextID.Add(1)
	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	respCh := make(chan *wsResponse, 1)
	c.muReq.Lock()
	c.requests[id] = respCh
	c.muReq.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.muReq.Lock()
		delete(c.requests, id)
		c.muReq.Unlock()
		return nil, NewNetworkError(fmt.Errorf("write request: %w", err))
	}

	select {
	case <-ctx.Done():
		c.muReq.Lock()
		delete(c.requests, id)
		c.muReq.Unlock()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewTimeoutError()
		}
		return nil, ctx.Err()
	case resp, ok := <-respCh:
		if !ok {
			return nil, NewNetworkError(fmt.Errorf("websocket connection closed"))
		}
		if resp.Error != nil {
			return nil, decodeRPCError(resp.Error)
		}

		var result interface{}
		if len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, &result); err != nil {
				return nil, NewInvalidResponseError(fmt.Sprintf("unmarshal result failed: %v", err))
			}
		}
		return result, nil
	}
}

// SubscribeNewHeads 订阅新区块头，返回区块号通道
func (c *websocketClient) SubscribeNewHeads(ctx context.Context) (<-chan uint64, error) {
	result, err := c.Call(ctx, "eth_subscribe", []interface{}{"newHeads"})
	if err != nil {
		return nil, fmt.Errorf("subscribe newHeads failed: %w", err)
	}

	subscriptionID, ok := result.(string)
	if !ok || subscriptionID == "" {
		return nil, NewInvalidResponseError("missing subscription ID")
	}

	ch := make(chan uint64, 16)
	c.muSub.Lock()
	c.subscriptions[subscriptionID] = ch
	c.muSub.Unlock()

	// 上下文取消时退订
	go func() {
		<-ctx.Done()
		c.muSub.Lock()
		delete(c.subscriptions, subscriptionID)
		c.muSub.Unlock()
		unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = c.Call(unsubCtx, "eth_unsubscribe", []interface{}{subscriptionID})
	}()

	return ch, nil
}

// CallContract 只读合约调用
func (c *websocketClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
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
func (c *websocketClient) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
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
func (c *websocketClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash.Hex()})
	if err != nil {
		return nil, err
	}
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
func (c *websocketClient) ChainID(ctx context.Context) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_chainId", []interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeHexBig(result)
}

// PendingNonceAt 查询地址的 pending nonce
func (c *websocketClient) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	result, err := c.Call(ctx, "eth_getTransactionCount", []interface{}{address.Hex(), "pending"})
	if err != nil {
		return 0, err
	}
	return decodeHexUint64(result)
}

// SuggestGasPrice 查询建议 gas 价格
func (c *websocketClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.Call(ctx, "eth_gasPrice", []interface{}{})
	if err != nil {
		return nil, err
	}
	return decodeHexBig(result)
}

// EstimateGas 估算交易 gas 用量
func (c *websocketClient) EstimateGas(ctx context.Context, msg *CallMsg) (uint64, error) {
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

// Close 关闭连接
func (c *websocketClient) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return c.conn.Close()
}
