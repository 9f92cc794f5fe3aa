package operation

import "github.com/ethereum/go-ethereum/common"

// Config 操作构建配置
//
// **设计目的**：
// - 避免在构建器内部硬编码销毁地址 / 铸造合约等运行时参数
// - 两个 sink 地址的语义正确性依赖与其运营方的链下约定，必须可配置
type Config struct {
	// BurnAddress ERC-721 销毁 sink 地址
	// （721 不假设合约有原生 burn 入口，销毁=转入约定 sink）
	BurnAddress common.Address

	// ProceedsAddress ERC-1155 销毁 sink 地址
	// （"销毁"是不可逆转入回收地址，不是协议级 burn）
	ProceedsAddress common.Address

	// MinterContract 多版本 NFT 一级铸造合约地址
	MinterContract common.Address

	// Referral 铸造推荐地址（可为零地址）
	Referral common.Address

	// SlippageBps 报价滑点（基点）
	SlippageBps int
	// FeeBps 平台费（基点）
	FeeBps int
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		// 行业惯例的 dead 地址，仅作默认值，部署时应显式配置
		BurnAddress: common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
		SlippageBps: 100,
	}
}
