package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeTokenPlaceholder 聚合器约定的原生币占位地址
//
// 原生币没有合约地址，报价请求中按行业惯例用 0xeeee…eeee 表示。
var NativeTokenPlaceholder = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// TokenStandard 代币标准
type TokenStandard string

const (
	// StandardNative 链原生币（无合约地址）
	StandardNative TokenStandard = "native"
	// StandardFungible ERC-20 同质化代币
	StandardFungible TokenStandard = "fungible"
	// StandardUniqueNFT ERC-721 唯一性 NFT
	StandardUniqueNFT TokenStandard = "unique_nft"
	// StandardMultiNFT ERC-1155 多版本 NFT
	StandardMultiNFT TokenStandard = "multi_nft"
)

// Valid 检查代币标准是否为已知值
func (s TokenStandard) Valid() bool {
	switch s {
	case StandardNative, StandardFungible, StandardUniqueNFT, StandardMultiNFT:
		return true
	}
	return false
}

// TokenDescriptor 代币描述符
//
// **不可变性**：
// - 构造后不再修改；TokenID 仅对 UniqueNFT/MultiNFT 有意义
// - 原生币的 Contract 为零地址
type TokenDescriptor struct {
	Standard TokenStandard
	Contract common.Address
	TokenID  *big.Int // 仅 UniqueNFT/MultiNFT
	Decimals uint8
	Symbol   string
}

// IsNative 是否为链原生币
func (t *TokenDescriptor) IsNative() bool {
	return t.Standard == StandardNative
}

// Validate 验证描述符自身的一致性
func (t *TokenDescriptor) Validate() error {
	if !t.Standard.Valid() {
		return fmt.Errorf("unknown token standard: %s", t.Standard)
	}

	switch t.Standard {
	case StandardNative:
		if t.Contract != (common.Address{}) {
			return fmt.Errorf("native token must not carry a contract address")
		}
	case StandardUniqueNFT, StandardMultiNFT:
		if t.Contract == (common.Address{}) {
			return fmt.Errorf("%s token requires a contract address", t.Standard)
		}
		if t.TokenID == nil {
			return fmt.Errorf("%s token requires a token ID", t.Standard)
		}
		if t.TokenID.Sign() < 0 {
			return fmt.Errorf("token ID must be non-negative")
		}
	default:
		if t.Contract == (common.Address{}) {
			return fmt.Errorf("%s token requires a contract address", t.Standard)
		}
	}

	return nil
}
