package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountClient 智能账户执行服务接口
//
// token-bound 账户（ERC-6551 风格）的所有交易都经账户合约唯一的
// execute(to, value, data) 入口提交，由控制者密钥签名——
// 绝不直接以账户地址为 from 发交易。
type AccountClient interface {
	// Execute 通过账户合约的 execute 入口提交交易
	Execute(ctx context.Context, account, to common.Address, value *big.Int, data []byte) (common.Hash, error)

	// CheckAccountDeployment 检查账户合约是否已部署
	CheckAccountDeployment(ctx context.Context, account common.Address) (bool, error)
}

// AccountServiceConfig 智能账户执行服务配置
type AccountServiceConfig struct {
	// Endpoint 服务端点地址
	Endpoint string
	// Timeout 超时时间（秒）
	Timeout int
	// Retry 重试配置（仅作用于部署检查等读请求）
	Retry *RetryConfig
}

// accountClient 智能账户执行服务 HTTP 实现
type accountClient struct {
	endpoint string
	client   *http.Client
	retry    *RetryConfig
}

// NewAccountClient 创建智能账户执行服务客户端
func NewAccountClient(config *AccountServiceConfig) (AccountClient, error) {
	if config == nil || config.Endpoint == "" {
		return nil, fmt.Errorf("account service endpoint is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}

	return &accountClient{
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: time.Duration(timeout) * time.Second},
		retry:    retryConfig,
	}, nil
}

// executeRequest execute 请求体
type executeRequest struct {
	Account string `json:"account"`
	To      string `json:"to"`
	Value   string `json:"value"`
	Data    string `json:"data"`
}

// executeResponse execute 响应体
type executeResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

// Execute 通过账户合约的 execute 入口提交交易
//
// 提交是写操作，不做自动重试：重复提交可能导致重复执行。
func (c *accountClient) Execute(ctx context.Context, account, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	reqBody, err := json.Marshal(&executeRequest{
		Account: account.Hex(),
		To:      to.Hex(),
		Value:   value.String(),
		Data:    hexutil.Encode(data),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("marshal execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/execute", bytes.NewReader(reqBody))
	if err != nil {
		return common.Hash{}, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return common.Hash{}, NewNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.Hash{}, NewNetworkError(fmt.Errorf("read response failed: %w", err))
	}

	var execResp executeResponse
	if err := json.Unmarshal(respBody, &execResp); err != nil {
		return common.Hash{}, NewInvalidResponseError(fmt.Sprintf("unmarshal response failed: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		if execResp.Error != "" {
			return common.Hash{}, NewInvalidResponseError(fmt.Sprintf("execute rejected: %s", execResp.Error))
		}
		return common.Hash{}, NewInvalidResponseError(fmt.Sprintf("HTTP error: %d", resp.StatusCode))
	}
	if execResp.TxHash == "" {
		return common.Hash{}, NewInvalidResponseError("missing txHash in execute response")
	}

	return common.HexToHash(execResp.TxHash), nil
}

// CheckAccountDeployment 检查账户合约是否已部署
func (c *accountClient) CheckAccountDeployment(ctx context.Context, account common.Address) (bool, error) {
	var deployed bool

	err := withRetry(ctx, func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/v1/accounts/%s/deployment", c.endpoint, account.Hex()), nil)
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}

		resp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}
		defer resp.Body.Close()

		if isRetryableHTTPError(resp.StatusCode) {
			return fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return NewInvalidResponseError(fmt.Sprintf("HTTP error: %d, body: %s", resp.StatusCode, string(body)))
		}

		var result struct {
			Deployed bool `json:"deployed"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
			return NewInvalidResponseError(fmt.Sprintf("unmarshal response failed: %v", decodeErr))
		}

		deployed = result.Deployed
		return nil
	}, c.retry)
	if err != nil {
		return false, err
	}

	return deployed, nil
}
