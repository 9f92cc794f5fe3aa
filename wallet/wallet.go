package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrRejected 用户在钱包提供方拒绝了签名/交易请求
//
// 远程钱包实现把提供方的拒绝码（如 EIP-1193 的 4001）映射到这个哨兵错误，
// 执行路由据此归类为 UserRejected，不做自动重试。
var ErrRejected = errors.New("wallet: request rejected by user")

// IsRejected 检查错误链中是否包含用户拒绝
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Wallet 钱包接口
//
// 外部钱包/授权提供方的窄接口：暴露已连接的签名者地址、
// 交易签名和 EIP-712 typed data 签名原语（eth_signTypedData 等价物）。
type Wallet interface {
	// Address 获取签名者地址
	Address() common.Address

	// SignHash 签名给定的 32 字节哈希，返回 65 字节 [R || S || V] 签名
	SignHash(hash []byte) ([]byte, error)

	// SignTypedData 签名 EIP-712 typed data，用于 permit 类授权
	SignTypedData(typedData apitypes.TypedData) ([]byte, error)

	// SignTransaction 签名交易
	SignTransaction(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// SimpleWallet 本地私钥钱包实现（用于测试和开发）
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewWallet 创建新钱包
func NewWallet() (*SimpleWallet, error) {
	// 生成 secp256k1 私钥（与链上使用的曲线保持一致）
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// NewWalletFromPrivateKey 从私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (*SimpleWallet, error) {
	// 移除0x前缀（如果有）
	privateKeyHex = hexRemovePrefix(privateKeyHex)

	privateKey, err := ethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address 获取签名者地址
func (w *SimpleWallet) Address() common.Address {
	return w.address
}

// SignHash 签名哈希值
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	signature, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}

	// go-ethereum 返回 V ∈ {0,1}，合约侧验证方期望 V ∈ {27,28}
	signature[64] += 27
	return signature, nil
}

// SignTypedData 签名 EIP-712 typed data
func (w *SimpleWallet) SignTypedData(typedData apitypes.TypedData) ([]byte, error) {
	// 1. 计算 EIP-712 摘要：keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(message))
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}

	// 2. 签名摘要
	return w.SignHash(hash)
}

// SignTransaction 签名交易
func (w *SimpleWallet) SignTransaction(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain ID is required")
	}

	signer := ethtypes.LatestSignerForChainID(chainID)
	signedTx, err := ethtypes.SignTx(tx, signer, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signedTx, nil
}

// hexRemovePrefix 移除十六进制字符串的0x前缀
func hexRemovePrefix(hexStr string) string {
	if len(hexStr) >= 2 && hexStr[:2] == "0x" {
		return hexStr[2:]
	}
	return hexStr
}
