package utils

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AppendSignature 把原始签名追加到 calldata 末尾
//
// **编码格式**（与聚合器的 permit2 约定一致）：
// - 32 字节大端序签名长度 + 签名字节本身
func AppendSignature(callData []byte, signature []byte) []byte {
	sigLen := new(big.Int).SetInt64(int64(len(signature)))

	lenWord := make([]byte, 32)
	sigLen.FillBytes(lenWord)

	result := make([]byte, 0, len(callData)+32+len(signature))
	result = append(result, callData...)
	result = append(result, lenWord...)
	result = append(result, signature...)
	return result
}

// Selector 提取 calldata 的 4 字节函数选择器
func Selector(callData []byte) ([4]byte, error) {
	var sel [4]byte
	if len(callData) < 4 {
		return sel, fmt.Errorf("calldata too short for selector: %d bytes", len(callData))
	}
	copy(sel[:], callData[:4])
	return sel, nil
}

// DecodeAddressArg 解码 calldata 中第 index 个静态参数为地址
//
// 静态参数按 32 字节对齐排列在选择器之后；地址取每个字的低 20 字节。
func DecodeAddressArg(callData []byte, index int) (common.Address, error) {
	offset := 4 + index*32
	if len(callData) < offset+32 {
		return common.Address{}, fmt.Errorf("calldata too short for argument %d", index)
	}

	word := callData[offset : offset+32]
	// 地址字的高 12 字节必须为零
	for _, b := range word[:12] {
		if b != 0 {
			return common.Address{}, fmt.Errorf("argument %d is not an address", index)
		}
	}

	return common.BytesToAddress(word[12:]), nil
}
