package operation

import (
	"context"

	"github.com/openmint/token-engine-go/services/quote"
	"github.com/openmint/token-engine-go/types"
)

// QuoteProvider 报价依赖的窄接口（由 services/quote.Service 满足）
type QuoteProvider interface {
	GetSwapQuote(ctx context.Context, req *quote.QuoteRequest) (*types.SwapQuote, error)
}

// Builder 单个代币标准的操作构建器
//
// 纯构建逻辑：把操作意图变成未签名交易计划，不做任何提交。
// 不支持的 标准 × 操作 组合返回 UnsupportedOperation，绝不产出畸形计划。
type Builder interface {
	Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error)
}

// Service 操作构建服务接口
type Service interface {
	// Build 按主体代币标准分发到对应构建器
	Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error)
}

// operationService 操作构建服务实现
//
// 分发表只构造一次；新增标准只需实现 Builder 接口并注册，
// 不需要在任何调用点加分支。
type operationService struct {
	builders map[types.TokenStandard]Builder
}

// NewService 创建操作构建服务
func NewService(quotes QuoteProvider, config *Config) Service {
	if config == nil {
		config = DefaultConfig()
	}

	return &operationService{
		builders: map[types.TokenStandard]Builder{
			types.StandardNative:    &nativeBuilder{quotes: quotes, config: config},
			types.StandardFungible:  &fungibleBuilder{quotes: quotes, config: config},
			types.StandardUniqueNFT: &uniqueNFTBuilder{config: config},
			types.StandardMultiNFT:  &multiNFTBuilder{config: config},
		},
	}
}

// Build 按主体代币标准分发到对应构建器
func (s *operationService) Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	if err := intent.Validate(); err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid operation intent")
	}
	if err := execCtx.Validate(); err != nil {
		return nil, types.WrapError(types.ErrKindInvalidAmount, err, "invalid execution context")
	}

	builder, ok := s.builders[intent.Subject.Standard]
	if !ok {
		return nil, types.NewError(types.ErrKindUnsupportedOperation,
			"no builder for token standard %s", intent.Subject.Standard)
	}

	return builder.Build(ctx, intent, execCtx)
}

// unsupported 构造统一的不支持错误
func unsupported(standard types.TokenStandard, kind types.OperationKind) error {
	return types.NewError(types.ErrKindUnsupportedOperation,
		"%s does not support %s", standard, kind)
}
