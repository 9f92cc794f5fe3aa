package client

// Config 客户端配置
type Config struct {
	// Endpoint 节点端点地址
	Endpoint string

	// Protocol 协议类型
	Protocol Protocol

	// Timeout 超时时间（秒）
	Timeout int

	// Retry 重试配置（nil 表示使用默认配置）
	Retry *RetryConfig

	// 调试模式
	Debug bool

	// 日志器（可选）
	Logger Logger
}

// Protocol 协议类型
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolWebSocket Protocol = "websocket"
)

// Logger 日志接口
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8545",
		Protocol: ProtocolHTTP,
		Timeout:  30,
		Debug:    false,
	}
}
