package client

import (
	"errors"
	"testing"
)

func TestNewClientUnsupportedProtocol(t *testing.T) {
	_, err := NewClient(&Config{Endpoint: "http://localhost:8545", Protocol: "grpc"})
	if err == nil {
		t.Fatal("expected error for unsupported protocol")
	}

	var clientErr *Error
	if !errors.As(err, &clientErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if clientErr.Code != ErrCodeNotSupported {
		t.Errorf("code = %d, want %d", clientErr.Code, ErrCodeNotSupported)
	}
}

func TestDecodeRPCError(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantCode int
	}{
		{name: "execution reverted", message: "execution reverted: ERC20: transfer amount exceeds balance", wantCode: ErrCodeReverted},
		{name: "revert case insensitive", message: "Execution Reverted", wantCode: ErrCodeReverted},
		{name: "nonce too low", message: "nonce too low", wantCode: ErrCodeRPCError},
		{name: "method not found", message: "the method eth_foo does not exist", wantCode: ErrCodeRPCError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeRPCError(&jsonRPCError{Code: 3, Message: tt.message})
			if got.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", got.Code, tt.wantCode)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError(cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause must be reachable through errors.Is")
	}
	if NewTimeoutError().Code != ErrCodeTimeout {
		t.Errorf("timeout code = %d, want %d", NewTimeoutError().Code, ErrCodeTimeout)
	}
}
