package approval

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/wallet"
)

// fakeReader 按调用顺序返回预置的额度值
type fakeReader struct {
	values []*big.Int
	calls  int
}

func (r *fakeReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if r.calls >= len(r.values) {
		return r.values[len(r.values)-1], nil
	}
	value := r.values[r.calls]
	r.calls++
	return value, nil
}

// fakeExecutor 记录提交的交易计划
type fakeExecutor struct {
	executed []*types.TransactionPlan
	result   *types.ExecutionResult
	err      error
}

func (e *fakeExecutor) Execute(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	e.executed = append(e.executed, plan)
	if e.err != nil {
		return &types.ExecutionResult{ErrorKind: types.KindOf(e.err)}, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &types.ExecutionResult{Success: true, TxHash: common.HexToHash("0x01")}, nil
}

// fakeWallet 记录签名请求次数
type fakeWallet struct {
	address   common.Address
	signature []byte
	signCalls int
	signErr   error
}

func (w *fakeWallet) Address() common.Address { return w.address }

func (w *fakeWallet) SignHash(hash []byte) ([]byte, error) { return w.signature, nil }

func (w *fakeWallet) SignTypedData(typedData apitypes.TypedData) ([]byte, error) {
	w.signCalls++
	if w.signErr != nil {
		return nil, w.signErr
	}
	return w.signature, nil
}

func (w *fakeWallet) SignTransaction(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return tx, nil
}

var (
	ownerAddr   = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	signerAddr  = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	tokenAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spenderAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testSignature() []byte {
	sig := make([]byte, 65)
	for i := range sig {
		sig[i] = byte(i + 1)
	}
	return sig
}

func directCtx() *types.ExecutionContext {
	return &types.ExecutionContext{Mode: types.ModeDirectWallet, Signer: signerAddr}
}

func smartAccountCtx() *types.ExecutionContext {
	account := ownerAddr
	return &types.ExecutionContext{Mode: types.ModeSmartAccount, Signer: signerAddr, Account: &account}
}

func classicPlan(required *big.Int) *types.TransactionPlan {
	return &types.TransactionPlan{
		To:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
		CallData:      []byte{0xde, 0xad},
		Value:         new(big.Int),
		NeedsApproval: true,
		Approval: &types.ApprovalPlan{
			Kind:          types.ApprovalClassic,
			TokenContract: tokenAddr,
			Spender:       spenderAddr,
			Amount:        required,
		},
	}
}

func permitPlan(owner string) *types.TransactionPlan {
	return &types.TransactionPlan{
		To:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
		CallData:      []byte{0xca, 0xfe, 0xba, 0xbe},
		Value:         new(big.Int),
		NeedsApproval: true,
		Approval: &types.ApprovalPlan{
			Kind:            types.ApprovalPermit,
			AllowanceTarget: spenderAddr,
			TypedMessage: &apitypes.TypedData{
				Message: apitypes.TypedDataMessage{"owner": owner},
			},
		},
	}
}

func TestResolvePassThrough(t *testing.T) {
	executor := &fakeExecutor{}
	svc := NewService(&fakeReader{values: []*big.Int{big.NewInt(0)}}, executor)

	plan := &types.TransactionPlan{To: tokenAddr, Value: new(big.Int)}
	resolved, err := svc.Resolve(context.Background(), plan, directCtx(), &fakeWallet{address: signerAddr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resolved.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(resolved.Steps))
	}
	if resolved.Steps[0].Kind != types.StepMainCall {
		t.Errorf("step kind = %s, want main_call", resolved.Steps[0].Kind)
	}
	if resolved.Steps[0].Plan != plan {
		t.Error("pass-through must return the plan unchanged")
	}
	if len(executor.executed) != 0 {
		t.Error("no transaction should be submitted")
	}
}

func TestClassicSkipsWhenAllowanceSufficient(t *testing.T) {
	reader := &fakeReader{values: []*big.Int{big.NewInt(100)}}
	executor := &fakeExecutor{}
	svc := NewService(reader, executor)

	resolved, err := svc.Resolve(context.Background(), classicPlan(big.NewInt(50)), directCtx(), &fakeWallet{address: signerAddr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(executor.executed) != 0 {
		t.Error("approval must not be submitted when allowance is sufficient")
	}
	if len(resolved.Steps) != 1 || resolved.Steps[0].Kind != types.StepMainCall {
		t.Error("expected a single main call step")
	}
}

func TestClassicResolutionIsIdempotent(t *testing.T) {
	// 额度足够时重复 Resolve 绝不提交第二笔授权
	reader := &fakeReader{values: []*big.Int{big.NewInt(100), big.NewInt(100)}}
	executor := &fakeExecutor{}
	svc := NewService(reader, executor)

	for i := 0; i < 2; i++ {
		if _, err := svc.Resolve(context.Background(), classicPlan(big.NewInt(50)), directCtx(), &fakeWallet{address: signerAddr}); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if len(executor.executed) != 0 {
		t.Errorf("approvals submitted = %d, want 0", len(executor.executed))
	}
}

func TestClassicSubmitsApproval(t *testing.T) {
	// 额度不足 → 提交 approve → 确认后重读足够
	reader := &fakeReader{values: []*big.Int{big.NewInt(0), big.NewInt(50)}}
	executor := &fakeExecutor{}
	svc := NewService(reader, executor)

	resolved, err := svc.Resolve(context.Background(), classicPlan(big.NewInt(50)), directCtx(), &fakeWallet{address: signerAddr})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(executor.executed) != 1 {
		t.Fatalf("approvals submitted = %d, want 1", len(executor.executed))
	}
	approveTx := executor.executed[0]
	if approveTx.To != tokenAddr {
		t.Errorf("approve to = %s, want token contract", approveTx.To.Hex())
	}
	wantSelector := approveABI.Methods["approve"].ID[:4]
	if !bytes.Equal(approveTx.CallData[:4], wantSelector) {
		t.Errorf("selector = %x, want approve", approveTx.CallData[:4])
	}

	if len(resolved.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(resolved.Steps))
	}
	if resolved.Steps[0].Kind != types.StepTransaction || resolved.Steps[1].Kind != types.StepMainCall {
		t.Error("steps out of order: approval must precede main call")
	}
}

func TestClassicApprovalNotEffective(t *testing.T) {
	// 确认后重读仍不足 → ApprovalNotEffective
	reader := &fakeReader{values: []*big.Int{big.NewInt(0), big.NewInt(0)}}
	svc := NewService(reader, &fakeExecutor{})

	_, err := svc.Resolve(context.Background(), classicPlan(big.NewInt(50)), directCtx(), &fakeWallet{address: signerAddr})
	if !types.IsKind(err, types.ErrKindApprovalNotEffective) {
		t.Errorf("error kind = %s, want ApprovalNotEffective", types.KindOf(err))
	}
}

func TestPermitOwnerMismatchBeforeSigning(t *testing.T) {
	// SmartAccount 上下文：消息 owner 是签名者而非账户 → 签名请求发出前失败
	w := &fakeWallet{address: signerAddr, signature: testSignature()}
	svc := NewService(&fakeReader{values: []*big.Int{big.NewInt(0)}}, &fakeExecutor{})

	_, err := svc.Resolve(context.Background(), permitPlan(signerAddr.Hex()), smartAccountCtx(), w)
	if !types.IsKind(err, types.ErrKindPermitOwnerMismatch) {
		t.Fatalf("error kind = %s, want PermitOwnerMismatch", types.KindOf(err))
	}
	if w.signCalls != 0 {
		t.Errorf("signature requests = %d, want 0 (must fail before signing)", w.signCalls)
	}
}

func TestPermitMissingOwnerFailsClosed(t *testing.T) {
	w := &fakeWallet{address: signerAddr, signature: testSignature()}
	svc := NewService(&fakeReader{values: []*big.Int{big.NewInt(0)}}, &fakeExecutor{})

	plan := permitPlan(signerAddr.Hex())
	delete(plan.Approval.TypedMessage.Message, "owner")

	_, err := svc.Resolve(context.Background(), plan, smartAccountCtx(), w)
	if !types.IsKind(err, types.ErrKindPermitOwnerMismatch) {
		t.Errorf("error kind = %s, want PermitOwnerMismatch", types.KindOf(err))
	}
	if w.signCalls != 0 {
		t.Error("must not sign a message with no owner field")
	}
}

func TestPermitSignsAndAppendsSignature(t *testing.T) {
	// 消息 owner == 账户地址 → 控制者代签，签名追加到主交易 calldata
	w := &fakeWallet{address: signerAddr, signature: testSignature()}
	svc := NewService(&fakeReader{values: []*big.Int{big.NewInt(0)}}, &fakeExecutor{})

	plan := permitPlan(ownerAddr.Hex())
	originalCallData := make([]byte, len(plan.CallData))
	copy(originalCallData, plan.CallData)

	resolved, err := svc.Resolve(context.Background(), plan, smartAccountCtx(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.signCalls != 1 {
		t.Fatalf("signature requests = %d, want 1", w.signCalls)
	}

	if len(resolved.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(resolved.Steps))
	}
	signed := resolved.Steps[0].Plan.CallData

	wantLen := len(originalCallData) + 32 + 65
	if len(signed) != wantLen {
		t.Fatalf("signed calldata length = %d, want %d", len(signed), wantLen)
	}
	if !bytes.Equal(signed[:len(originalCallData)], originalCallData) {
		t.Error("original calldata prefix modified")
	}
	if signed[len(originalCallData)+31] != 65 {
		t.Errorf("signature length word = %d, want 65", signed[len(originalCallData)+31])
	}
	if !bytes.Equal(signed[len(originalCallData)+32:], testSignature()) {
		t.Error("appended signature mismatch")
	}

	// 值语义：输入计划不被修改
	if !bytes.Equal(plan.CallData, originalCallData) {
		t.Error("input plan calldata was mutated")
	}
}

func TestPermitRejectedBySigner(t *testing.T) {
	w := &fakeWallet{address: signerAddr, signErr: wallet.ErrRejected}
	svc := NewService(&fakeReader{values: []*big.Int{big.NewInt(0)}}, &fakeExecutor{})

	_, err := svc.Resolve(context.Background(), permitPlan(ownerAddr.Hex()), smartAccountCtx(), w)
	if !types.IsKind(err, types.ErrKindUserRejected) {
		t.Errorf("error kind = %s, want UserRejected", types.KindOf(err))
	}
}

func TestPermitSkipsWhenAllowanceSufficient(t *testing.T) {
	// permit 消息携带 permitted.{token,amount} 且额度已足够时免签名
	w := &fakeWallet{address: signerAddr, signature: testSignature()}
	reader := &fakeReader{values: []*big.Int{big.NewInt(1000)}}
	svc := NewService(reader, &fakeExecutor{})

	plan := permitPlan(ownerAddr.Hex())
	plan.Approval.TypedMessage.Message["permitted"] = map[string]interface{}{
		"token":  tokenAddr.Hex(),
		"amount": "500",
	}

	resolved, err := svc.Resolve(context.Background(), plan, smartAccountCtx(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.signCalls != 0 {
		t.Errorf("signature requests = %d, want 0", w.signCalls)
	}
	if !bytes.Equal(resolved.Steps[0].Plan.CallData, plan.CallData) {
		t.Error("calldata must be unchanged when permit is skipped")
	}
}
