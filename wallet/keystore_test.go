package wallet

import (
	"encoding/hex"
	"os"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestKeystoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	km, err := NewKeystoreManager(dir)
	if err != nil {
		t.Fatalf("创建Keystore管理器失败: %v", err)
	}

	original, err := NewWallet()
	if err != nil {
		t.Fatalf("生成钱包失败: %v", err)
	}

	path, err := km.SaveWallet(original, "correct horse battery staple")
	if err != nil {
		t.Fatalf("保存钱包失败: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("keystore 文件不存在: %v", err)
	}

	// 私钥绝不明文落盘
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 keystore 文件失败: %v", err)
	}
	keyHex := hex.EncodeToString(ethcrypto.FromECDSA(original.privateKey))
	if strings.Contains(strings.ToLower(string(raw)), keyHex) {
		t.Error("keystore file must not contain plaintext key material")
	}

	loaded, err := NewWalletFromKeystore(dir, original.Address().Hex(), "correct horse battery staple")
	if err != nil {
		t.Fatalf("加载钱包失败: %v", err)
	}
	if loaded.Address() != original.Address() {
		t.Errorf("loaded address = %s, want %s", loaded.Address().Hex(), original.Address().Hex())
	}

	// 加载后的钱包能产出与原钱包一致的签名
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(i)
	}
	sigOriginal, err := original.SignHash(hash)
	if err != nil {
		t.Fatalf("原钱包签名失败: %v", err)
	}
	sigLoaded, err := loaded.SignHash(hash)
	if err != nil {
		t.Fatalf("加载钱包签名失败: %v", err)
	}
	if string(sigOriginal) != string(sigLoaded) {
		t.Error("signatures from original and loaded wallet differ")
	}
}

func TestKeystoreWrongPassword(t *testing.T) {
	dir := t.TempDir()

	km, err := NewKeystoreManager(dir)
	if err != nil {
		t.Fatalf("创建Keystore管理器失败: %v", err)
	}

	w, err := NewWallet()
	if err != nil {
		t.Fatalf("生成钱包失败: %v", err)
	}
	if _, err := km.SaveWallet(w, "right"); err != nil {
		t.Fatalf("保存钱包失败: %v", err)
	}

	if _, err := NewWalletFromKeystore(dir, w.Address().Hex(), "wrong"); err == nil {
		t.Error("expected error for wrong password")
	}
}

func TestKeystoreAddressCaseInsensitive(t *testing.T) {
	dir := t.TempDir()

	km, err := NewKeystoreManager(dir)
	if err != nil {
		t.Fatalf("创建Keystore管理器失败: %v", err)
	}

	w, err := NewWallet()
	if err != nil {
		t.Fatalf("生成钱包失败: %v", err)
	}
	if _, err := km.SaveWallet(w, "pw"); err != nil {
		t.Fatalf("保存钱包失败: %v", err)
	}

	// EIP-55 混合大小写地址也能定位到同一个文件
	loaded, err := NewWalletFromKeystore(dir, strings.ToUpper(w.Address().Hex()), "pw")
	if err != nil {
		t.Fatalf("加载钱包失败: %v", err)
	}
	if loaded.Address() != w.Address() {
		t.Errorf("loaded address = %s, want %s", loaded.Address().Hex(), w.Address().Hex())
	}
}

func TestKeystoreMissingFile(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewWalletFromKeystore(dir, "0x0000000000000000000000000000000000000001", "pw"); err == nil {
		t.Error("expected error for missing keystore file")
	}
}
