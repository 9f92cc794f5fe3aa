// Package integration 提供节点就绪检查与测试环境装配助手。
//
// 集成测试需要一个可达的 JSON-RPC 节点，通过环境变量指定：
//
//	ENGINE_ITEST_RPC  节点端点（如 http://localhost:8545），缺省时跳过测试
//	ENGINE_ITEST_KEY  资金账户私钥（十六进制），缺省时生成空账户
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/openmint/token-engine-go/client"
	"github.com/openmint/token-engine-go/wallet"
)

// RPCEndpoint 返回集成测试节点端点，未配置时为空串
func RPCEndpoint() string {
	return os.Getenv("ENGINE_ITEST_RPC")
}

// EnsureNodeRunning 确保节点可达，否则跳过测试
func EnsureNodeRunning(t *testing.T) {
	t.Helper()

	endpoint := RPCEndpoint()
	if endpoint == "" {
		t.Skip("ENGINE_ITEST_RPC not set, skipping integration test")
	}

	c, err := client.NewClient(&client.Config{Endpoint: endpoint, Protocol: client.ProtocolHTTP, Timeout: 5})
	if err != nil {
		t.Fatalf("创建探活客户端失败: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.ChainID(ctx); err != nil {
		t.Skipf("节点 %s 不可达: %v", endpoint, err)
	}
}

// SetupTestClient 创建指向测试节点的链客户端
func SetupTestClient(t *testing.T) client.ChainClient {
	t.Helper()

	c, err := client.NewClient(&client.Config{
		Endpoint: RPCEndpoint(),
		Protocol: client.ProtocolHTTP,
		Timeout:  30,
	})
	if err != nil {
		t.Fatalf("创建测试客户端失败: %v", err)
	}
	return c
}

// TeardownTestClient 关闭测试客户端
func TeardownTestClient(t *testing.T, c client.ChainClient) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Logf("关闭客户端失败: %v", err)
	}
}

// CreateTestWallet 创建测试钱包
//
// 设置了 ENGINE_ITEST_KEY 时加载资金账户，否则生成新的空账户。
func CreateTestWallet(t *testing.T) *wallet.SimpleWallet {
	t.Helper()

	if key := os.Getenv("ENGINE_ITEST_KEY"); key != "" {
		w, err := wallet.NewWalletFromPrivateKey(key)
		if err != nil {
			t.Fatalf("加载资金账户失败: %v", err)
		}
		return w
	}

	w, err := wallet.NewWallet()
	if err != nil {
		t.Fatalf("生成测试钱包失败: %v", err)
	}
	return w
}
