package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/wallet"
)

// fakeBuilders 记录构建调用
type fakeBuilders struct {
	calls []string
	kinds []types.OperationKind
	plan  *types.TransactionPlan
	err   error
}

func (f *fakeBuilders) Build(ctx context.Context, intent *types.OperationIntent, execCtx *types.ExecutionContext) (*types.TransactionPlan, error) {
	f.calls = append(f.calls, "build")
	f.kinds = append(f.kinds, intent.Kind)
	return f.plan, f.err
}

// fakeApproval 记录解析调用
type fakeApproval struct {
	calls    *[]string
	resolved *types.ResolvedPlan
	err      error
}

func (f *fakeApproval) Resolve(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ResolvedPlan, error) {
	*f.calls = append(*f.calls, "resolve")
	return f.resolved, f.err
}

// fakeExecutor 记录执行调用
type fakeExecutor struct {
	calls  *[]string
	result *types.ExecutionResult
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, plan *types.TransactionPlan, execCtx *types.ExecutionContext, signer wallet.Wallet) (*types.ExecutionResult, error) {
	*f.calls = append(*f.calls, "execute")
	return f.result, f.err
}

var recipientAddr = common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC")

func testIntent() *types.OperationIntent {
	return &types.OperationIntent{
		Amount: "1",
		Subject: types.TokenDescriptor{
			Standard: types.StandardFungible,
			Contract: common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Decimals: 18,
		},
		Recipient: &recipientAddr,
	}
}

func testExecCtx() *types.ExecutionContext {
	return &types.ExecutionContext{
		Mode:   types.ModeDirectWallet,
		Signer: common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"),
	}
}

func testStack() (*fakeBuilders, *fakeApproval, *fakeExecutor, Service) {
	plan := &types.TransactionPlan{To: recipientAddr, Value: big.NewInt(1)}
	builders := &fakeBuilders{plan: plan}
	approvals := &fakeApproval{
		calls: &builders.calls,
		resolved: &types.ResolvedPlan{
			Steps: []types.ResolvedStep{{Kind: types.StepMainCall, Plan: plan}},
		},
	}
	executor := &fakeExecutor{
		calls:  &builders.calls,
		result: &types.ExecutionResult{Success: true, TxHash: common.HexToHash("0x01")},
	}
	return builders, approvals, executor, NewService(builders, approvals, executor, nil)
}

func TestRunOrdering(t *testing.T) {
	// 严格顺序：构建 → 授权解析 → 主交易执行
	builders, _, _, svc := testStack()

	result, err := svc.Send(context.Background(), testIntent(), testExecCtx(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}

	want := []string{"build", "resolve", "execute"}
	if len(builders.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", builders.calls, want)
	}
	for i, call := range want {
		if builders.calls[i] != call {
			t.Fatalf("calls = %v, want %v", builders.calls, want)
		}
	}
}

func TestOperationKindsSetPerEntrypoint(t *testing.T) {
	builders, _, _, svc := testStack()
	ctx := context.Background()
	intent := testIntent()
	intent.Counterparty = &types.TokenDescriptor{
		Standard: types.StandardNative, Decimals: 18,
	}
	execCtx := testExecCtx()

	svc.Buy(ctx, intent, execCtx, nil)
	svc.Swap(ctx, intent, execCtx, nil)
	svc.Send(ctx, intent, execCtx, nil)
	svc.Burn(ctx, intent, execCtx, nil)

	want := []types.OperationKind{types.OpBuy, types.OpSwap, types.OpSend, types.OpBurn}
	for i, kind := range want {
		if builders.kinds[i] != kind {
			t.Errorf("call %d kind = %s, want %s", i, builders.kinds[i], kind)
		}
	}

	// 调用方的意图不被修改
	if intent.Kind != "" {
		t.Error("input intent was mutated")
	}
}

func TestBuildErrorShortCircuits(t *testing.T) {
	builders, approvals, executor, svc := testStack()
	buildErr := types.NewError(types.ErrKindUnsupportedOperation, "not offered")
	builders.err = buildErr

	_, err := svc.Burn(context.Background(), testIntent(), testExecCtx(), nil)
	if err != buildErr {
		t.Errorf("error = %v, want the builder error unmodified", err)
	}

	_ = approvals
	_ = executor
	for _, call := range builders.calls {
		if call == "resolve" || call == "execute" {
			t.Errorf("%s must not run after build failure", call)
		}
	}
}

func TestApprovalErrorShortCircuits(t *testing.T) {
	builders, approvals, _, svc := testStack()
	approvalErr := types.NewError(types.ErrKindPermitOwnerMismatch, "owner mismatch")
	approvals.err = approvalErr
	approvals.resolved = nil

	_, err := svc.Send(context.Background(), testIntent(), testExecCtx(), nil)
	if err != approvalErr {
		t.Errorf("error = %v, want the approval error unmodified", err)
	}
	for _, call := range builders.calls {
		if call == "execute" {
			t.Error("main call must not run after approval failure")
		}
	}
}

func TestExecutionErrorPropagates(t *testing.T) {
	_, _, executor, svc := testStack()
	execErr := types.NewError(types.ErrKindOnChainFailure, "reverted")
	executor.err = execErr
	executor.result = &types.ExecutionResult{ErrorKind: types.ErrKindOnChainFailure}

	result, err := svc.Send(context.Background(), testIntent(), testExecCtx(), nil)
	if err != execErr {
		t.Errorf("error = %v, want the execution error unmodified", err)
	}
	if result == nil || result.Success {
		t.Error("expected failed result")
	}
}
