package quote

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/openmint/token-engine-go/client"
	"github.com/openmint/token-engine-go/types"
)

func TestValidateAmount(t *testing.T) {
	balance := big.NewInt(2_000_000)

	tests := []struct {
		name     string
		amount   string
		balance  *big.Int
		decimals uint8
		want     string
		wantKind types.ErrorKind
	}{
		{
			name:     "within balance",
			amount:   "1.5",
			balance:  balance,
			decimals: 6,
			want:     "1500000",
		},
		{
			name:     "exactly at balance",
			amount:   "2",
			balance:  balance,
			decimals: 6,
			want:     "2000000",
		},
		{
			name:     "exceeds balance",
			amount:   "2.000001",
			balance:  balance,
			decimals: 6,
			wantKind: types.ErrKindInsufficientBalance,
		},
		{
			name:     "nil balance skips ceiling check",
			amount:   "1000000",
			balance:  nil,
			decimals: 6,
			want:     "1000000000000",
		},
		{
			name:     "non numeric",
			amount:   "12a",
			balance:  balance,
			decimals: 6,
			wantKind: types.ErrKindInvalidAmount,
		},
		{
			name:     "multiple decimal points",
			amount:   "1.2.3",
			balance:  balance,
			decimals: 6,
			wantKind: types.ErrKindInvalidAmount,
		},
		{
			name:     "zero",
			amount:   "0",
			balance:  balance,
			decimals: 6,
			wantKind: types.ErrKindInvalidAmount,
		},
		{
			name:     "truncation keeps amount under balance",
			amount:   "1.9999999999",
			balance:  balance,
			decimals: 6,
			want:     "1999999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateAmount(tt.amount, tt.balance, tt.decimals)
			if tt.wantKind != "" {
				if !types.IsKind(err, tt.wantKind) {
					t.Errorf("error kind = %s, want %s", types.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ValidateAmount = %s, want %s", got, tt.want)
			}
		})
	}
}

// balanceStubClient 按方法选择器返回预置余额/精度的链客户端桩
type balanceStubClient struct {
	balance  *big.Int
	decimals uint8
	native   *big.Int
	callErr  error
}

var (
	selBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31}
	selDecimals  = []byte{0x31, 0x3c, 0xe5, 0x67}
)

func (s *balanceStubClient) Call(ctx context.Context, method string, params interface{}) (interface{}, error) {
	if method == "eth_getBalance" {
		if s.callErr != nil {
			return nil, s.callErr
		}
		return hexutil.EncodeBig(s.native), nil
	}
	return nil, errors.New("unexpected method " + method)
}

func (s *balanceStubClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if s.callErr != nil {
		return nil, s.callErr
	}
	switch {
	case bytes.HasPrefix(data, selBalanceOf):
		return common.BigToHash(s.balance).Bytes(), nil
	case bytes.HasPrefix(data, selDecimals):
		return common.BigToHash(big.NewInt(int64(s.decimals))).Bytes(), nil
	}
	return nil, errors.New("unexpected calldata")
}

func (s *balanceStubClient) SendRawTransaction(ctx context.Context, signedTx []byte) (common.Hash, error) {
	return common.Hash{}, errors.New("not implemented")
}

func (s *balanceStubClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*client.Receipt, error) {
	return nil, nil
}

func (s *balanceStubClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (s *balanceStubClient) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	return 0, nil
}

func (s *balanceStubClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (s *balanceStubClient) EstimateGas(ctx context.Context, msg *client.CallMsg) (uint64, error) {
	return 21000, nil
}

func (s *balanceStubClient) Close() error { return nil }

func newTestChecker(t *testing.T, stub *balanceStubClient) *BalanceChecker {
	t.Helper()
	reader, err := client.NewReader(stub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewBalanceChecker(reader)
}

var checkerOwner = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

func TestCheckSpendableERC20UsesOnChainDecimals(t *testing.T) {
	// 描述符里的精度是 18，链上实际是 6；以链上为准，"1.5" 解析为 1500000
	checker := newTestChecker(t, &balanceStubClient{
		balance:  big.NewInt(2_000_000),
		decimals: 6,
	})

	token := &types.TokenDescriptor{
		Standard: types.StandardFungible,
		Contract: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Decimals: 18,
	}

	got, err := checker.CheckSpendable(context.Background(), token, checkerOwner, "1.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "1500000" {
		t.Errorf("CheckSpendable = %s, want 1500000", got)
	}
}

func TestCheckSpendableERC20ExceedsBalance(t *testing.T) {
	checker := newTestChecker(t, &balanceStubClient{
		balance:  big.NewInt(2_000_000),
		decimals: 6,
	})

	token := &types.TokenDescriptor{
		Standard: types.StandardFungible,
		Contract: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Decimals: 6,
	}

	_, err := checker.CheckSpendable(context.Background(), token, checkerOwner, "2.000001")
	if !types.IsKind(err, types.ErrKindInsufficientBalance) {
		t.Errorf("error kind = %s, want %s", types.KindOf(err), types.ErrKindInsufficientBalance)
	}
}

func TestCheckSpendableNative(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	checker := newTestChecker(t, &balanceStubClient{native: oneEther})

	token := &types.TokenDescriptor{Standard: types.StandardNative, Decimals: 18}

	got, err := checker.CheckSpendable(context.Background(), token, checkerOwner, "0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "500000000000000000" {
		t.Errorf("CheckSpendable = %s, want 500000000000000000", got)
	}
}

func TestCheckSpendableReadFailure(t *testing.T) {
	checker := newTestChecker(t, &balanceStubClient{callErr: errors.New("node unreachable")})

	token := &types.TokenDescriptor{
		Standard: types.StandardFungible,
		Contract: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Decimals: 6,
	}

	_, err := checker.CheckSpendable(context.Background(), token, checkerOwner, "1")
	if !types.IsKind(err, types.ErrKindNetworkError) {
		t.Errorf("error kind = %s, want %s", types.KindOf(err), types.ErrKindNetworkError)
	}
}

func TestValidateEditionQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		balance  *big.Int
		want     string
		wantKind types.ErrorKind
	}{
		{name: "valid", quantity: "3", balance: big.NewInt(10), want: "3"},
		{name: "fractional", quantity: "1.5", balance: big.NewInt(10), wantKind: types.ErrKindInvalidAmount},
		{name: "zero", quantity: "0", balance: big.NewInt(10), wantKind: types.ErrKindInvalidAmount},
		{name: "exceeds holdings", quantity: "11", balance: big.NewInt(10), wantKind: types.ErrKindInsufficientBalance},
		{name: "nil balance", quantity: "100", balance: nil, want: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateEditionQuantity(tt.quantity, tt.balance)
			if tt.wantKind != "" {
				if !types.IsKind(err, tt.wantKind) {
					t.Errorf("error kind = %s, want %s", types.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ValidateEditionQuantity = %s, want %s", got, tt.want)
			}
		})
	}
}
