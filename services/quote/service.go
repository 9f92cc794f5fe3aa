package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/sync/singleflight"

	"github.com/openmint/token-engine-go/types"
)

// Service 报价服务接口
type Service interface {
	// GetSwapQuote 获取聚合器兑换报价
	//
	// taker 必须是资金的实际所有者：SmartAccount 上下文下是账户地址，
	// 绝不是签名者——报价要反映真实持仓方的流动性/taker 位置。
	GetSwapQuote(ctx context.Context, req *QuoteRequest) (*types.SwapQuote, error)
}

// QuoteRequest 报价请求
type QuoteRequest struct {
	SellToken  common.Address // 原生币用 types.NativeTokenPlaceholder
	BuyToken   common.Address
	SellAmount *big.Int
	Taker      common.Address

	// SlippageBps 滑点（基点），0 使用服务默认值
	SlippageBps int
	// FeeBps 平台费（基点）
	FeeBps int
}

// Config 报价服务配置
type Config struct {
	// Endpoint 聚合器端点地址
	Endpoint string
	// Timeout 超时时间（秒）
	Timeout int
	// DefaultSlippageBps 默认滑点（基点）
	DefaultSlippageBps int
	// DefaultFeeBps 默认平台费（基点）
	DefaultFeeBps int
}

// quoteService 报价服务实现
type quoteService struct {
	config *Config
	client *http.Client

	// 相同输入的并发请求合并为一次聚合器调用
	group singleflight.Group
}

// NewService 创建报价服务
func NewService(config *Config) (Service, error) {
	if config == nil || config.Endpoint == "" {
		return nil, fmt.Errorf("aggregator endpoint is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 15
	}

	return &quoteService{
		config: config,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// aggregatorResponse 聚合器响应体
type aggregatorResponse struct {
	BuyAmount          string `json:"buyAmount"`
	LiquidityAvailable bool   `json:"liquidityAvailable"`
	AllowanceTarget    string `json:"allowanceTarget,omitempty"`
	Permit2            *struct {
		EIP712 json.RawMessage `json:"eip712"`
	} `json:"permit2,omitempty"`
	Transaction *struct {
		To    string `json:"to"`
		Data  string `json:"data"`
		Value string `json:"value"`
	} `json:"transaction,omitempty"`
}

// aggregatorError 聚合器错误响应体
type aggregatorError struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	ValidationErrors []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	} `json:"validationErrors,omitempty"`
}

// GetSwapQuote 获取聚合器兑换报价
func (s *quoteService) GetSwapQuote(ctx context.Context, req *QuoteRequest) (*types.SwapQuote, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%s|%s|%s", req.SellToken.Hex(), req.BuyToken.Hex(), req.SellAmount.String(), req.Taker.Hex())
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.fetchQuote(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return result.(*types.SwapQuote), nil
}

// validateRequest 验证报价请求
func (s *quoteService) validateRequest(req *QuoteRequest) error {
	if req == nil {
		return types.NewError(types.ErrKindInvalidAmount, "quote request is nil")
	}
	if req.SellAmount == nil || req.SellAmount.Sign() <= 0 {
		return types.NewError(types.ErrKindInvalidAmount, "sell amount must be positive")
	}
	if req.SellToken == req.BuyToken {
		return types.NewError(types.ErrKindInvalidToken, "sell and buy token must be different")
	}
	if req.Taker == (common.Address{}) {
		return types.NewError(types.ErrKindInvalidToken, "taker address is required")
	}
	return nil
}

// fetchQuote 调用聚合器 REST API
func (s *quoteService) fetchQuote(ctx context.Context, req *QuoteRequest) (*types.SwapQuote, error) {
	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = s.config.DefaultSlippageBps
	}
	fee := req.FeeBps
	if fee == 0 {
		fee = s.config.DefaultFeeBps
	}

	query := url.Values{}
	query.Set("sellToken", req.SellToken.Hex())
	query.Set("buyToken", req.BuyToken.Hex())
	query.Set("sellAmount", req.SellAmount.String())
	query.Set("taker", req.Taker.Hex())
	query.Set("slippageBps", strconv.Itoa(slippage))
	if fee > 0 {
		query.Set("feeBps", strconv.Itoa(fee))
	}

	endpoint := strings.TrimRight(s.config.Endpoint, "/") + "/swap/quote?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "create quote request failed")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "quote request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "read quote response failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, s.mapAggregatorError(resp.StatusCode, body)
	}

	var aggResp aggregatorResponse
	if err := json.Unmarshal(body, &aggResp); err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "unmarshal quote response failed")
	}

	return s.decodeQuote(req, &aggResp)
}

// decodeQuote 把聚合器响应解码为 SwapQuote
func (s *quoteService) decodeQuote(req *QuoteRequest, aggResp *aggregatorResponse) (*types.SwapQuote, error) {
	quote := &types.SwapQuote{
		QuoteResult: types.QuoteResult{
			LiquidityAvailable: aggResp.LiquidityAvailable,
			AsOfAmount:         req.SellAmount.String(),
		},
	}

	// 无流动性时不携带可执行交易
	if !aggResp.LiquidityAvailable {
		quote.BuyAmount = new(big.Int)
		return quote, nil
	}

	buyAmount, ok := new(big.Int).SetString(aggResp.BuyAmount, 10)
	if !ok {
		return nil, types.NewError(types.ErrKindNetworkError, "invalid buyAmount in quote response: %q", aggResp.BuyAmount)
	}
	quote.BuyAmount = buyAmount

	if aggResp.AllowanceTarget != "" {
		quote.AllowanceTarget = common.HexToAddress(aggResp.AllowanceTarget)
	}

	if aggResp.Permit2 != nil && len(aggResp.Permit2.EIP712) > 0 {
		var typedData apitypes.TypedData
		if err := json.Unmarshal(aggResp.Permit2.EIP712, &typedData); err != nil {
			return nil, types.WrapError(types.ErrKindNetworkError, err, "unmarshal permit2 typed data failed")
		}
		quote.Permit2 = &typedData
	}

	if aggResp.Transaction == nil {
		return nil, types.NewError(types.ErrKindNetworkError, "quote response missing transaction")
	}

	data, err := hexutil.Decode(aggResp.Transaction.Data)
	if err != nil {
		return nil, types.WrapError(types.ErrKindNetworkError, err, "decode transaction data failed")
	}

	value := new(big.Int)
	if aggResp.Transaction.Value != "" {
		if _, ok := value.SetString(aggResp.Transaction.Value, 10); !ok {
			return nil, types.NewError(types.ErrKindNetworkError, "invalid transaction value: %q", aggResp.Transaction.Value)
		}
	}

	quote.Transaction = types.AggregatorTransaction{
		To:    common.HexToAddress(aggResp.Transaction.To),
		Data:  data,
		Value: value,
	}

	return quote, nil
}

// mapAggregatorError 把聚合器错误码映射到引擎错误分类
func (s *quoteService) mapAggregatorError(statusCode int, body []byte) error {
	var aggErr aggregatorError
	if err := json.Unmarshal(body, &aggErr); err != nil || aggErr.Code == "" {
		return types.NewError(types.ErrKindNetworkError, "aggregator HTTP error: %d, body: %s", statusCode, string(body))
	}

	switch aggErr.Code {
	case "INSUFFICIENT_LIQUIDITY":
		return types.NewError(types.ErrKindInsufficientLiquidity, "%s", aggErr.Message)
	case "INVALID_TOKEN", "TOKEN_NOT_SUPPORTED":
		return types.NewError(types.ErrKindInvalidToken, "%s", aggErr.Message)
	case "INSUFFICIENT_BALANCE":
		return types.NewError(types.ErrKindInsufficientBalance, "%s", aggErr.Message)
	case "VALIDATION_FAILED", "SWAP_VALIDATION_FAILED":
		reasons := make([]string, 0, len(aggErr.ValidationErrors))
		for _, ve := range aggErr.ValidationErrors {
			reasons = append(reasons, fmt.Sprintf("%s: %s", ve.Field, ve.Reason))
		}
		if len(reasons) == 0 {
			reasons = append(reasons, aggErr.Message)
		}
		return types.NewError(types.ErrKindInvalidAmount, "quote validation failed: %s", strings.Join(reasons, "; "))
	default:
		return types.NewError(types.ErrKindNetworkError, "aggregator error [%s]: %s", aggErr.Code, aggErr.Message)
	}
}
