package operation

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// 各标准入口的最小 ABI。只声明引擎会编码的方法。
const (
	erc20ABIJSON = `[
		{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"burn","type":"function","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
	]`

	erc721ABIJSON = `[
		{"name":"safeTransferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
	]`

	erc1155ABIJSON = `[
		{"name":"safeTransferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]}
	]`

	minterABIJSON = `[
		{"name":"mint","type":"function","inputs":[
			{"name":"recipient","type":"address"},
			{"name":"quantity","type":"uint256"},
			{"name":"tokenContract","type":"address"},
			{"name":"tokenId","type":"uint256"},
			{"name":"totalPrice","type":"uint256"},
			{"name":"currency","type":"address"},
			{"name":"referral","type":"address"},
			{"name":"comment","type":"string"}
		],"outputs":[]}
	]`
)

var (
	erc20ABI   = mustParseABI(erc20ABIJSON)
	erc721ABI  = mustParseABI(erc721ABIJSON)
	erc1155ABI = mustParseABI(erc1155ABIJSON)
	minterABI  = mustParseABI(minterABIJSON)

	// ERC1155SafeTransferSelector ERC-1155 safeTransferFrom 的 4 字节选择器，
	// 执行路由用它区分 send/burn 的进度文案
	ERC1155SafeTransferSelector = [4]byte(erc1155ABI.Methods["safeTransferFrom"].ID[:4])
)

func mustParseABI(abiJSON string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(fmt.Sprintf("parse builtin abi: %v", err))
	}
	return parsed
}

// packERC20Transfer 编码 transfer(to, amount)
func packERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("pack transfer: %w", err)
	}
	return data, nil
}

// packERC20Approve 编码 approve(spender, amount)
func packERC20Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}

// packERC20Burn 编码 burn(amount)，假设代币合约暴露持有者发起的 burn
func packERC20Burn(amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("burn", amount)
	if err != nil {
		return nil, fmt.Errorf("pack burn: %w", err)
	}
	return data, nil
}

// packERC721SafeTransfer 编码 safeTransferFrom(from, to, tokenId)
func packERC721SafeTransfer(from, to common.Address, tokenID *big.Int) ([]byte, error) {
	data, err := erc721ABI.Pack("safeTransferFrom", from, to, tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack safeTransferFrom: %w", err)
	}
	return data, nil
}

// packERC1155SafeTransfer 编码 safeTransferFrom(from, to, id, amount, "")
func packERC1155SafeTransfer(from, to common.Address, tokenID, amount *big.Int) ([]byte, error) {
	data, err := erc1155ABI.Pack("safeTransferFrom", from, to, tokenID, amount, []byte{})
	if err != nil {
		return nil, fmt.Errorf("pack safeTransferFrom: %w", err)
	}
	return data, nil
}

// packMint 编码一级铸造调用
func packMint(recipient common.Address, quantity *big.Int, tokenContract common.Address,
	tokenID, totalPrice *big.Int, currency, referral common.Address, comment string) ([]byte, error) {
	data, err := minterABI.Pack("mint", recipient, quantity, tokenContract, tokenID, totalPrice, currency, referral, comment)
	if err != nil {
		return nil, fmt.Errorf("pack mint: %w", err)
	}
	return data, nil
}
