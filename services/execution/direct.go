package execution

import (
	"context"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/openmint/token-engine-go/client"
	"github.com/openmint/token-engine-go/types"
	"github.com/openmint/token-engine-go/wallet"
)

// executeDirect 直连钱包模式执行
//
// 流程：填充交易参数（nonce/gas）→ 本地签名 → 广播原始交易 → 等待确认。
func (s *executionService) executeDirect(ctx context.Context, plan *types.TransactionPlan, signer wallet.Wallet) (*types.ExecutionResult, error) {
	from := signer.Address()

	// 1. 填充链上参数
	nonce, err := s.chain.PendingNonceAt(ctx, from)
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "fetch nonce failed")
	}

	gasPrice, err := s.chain.SuggestGasPrice(ctx)
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "fetch gas price failed")
	}

	to := plan.To
	gasLimit, err := s.chain.EstimateGas(ctx, &client.CallMsg{
		From:  from,
		To:    &to,
		Value: plan.Value,
		Data:  plan.CallData,
	})
	if err != nil {
		// 估算失败通常意味着调用会回滚
		return failed(types.ErrKindOnChainFailure),
			types.WrapError(types.ErrKindOnChainFailure, err, "gas estimation failed")
	}

	chainID, err := s.chain.ChainID(ctx)
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "fetch chain id failed")
	}

	// 2. 构建并签名交易
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    plan.Value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     plan.CallData,
	})

	s.report("awaiting signature from %s", from.Hex())
	signedTx, err := signer.SignTransaction(tx, chainID)
	if err != nil {
		if wallet.IsRejected(err) {
			return failed(types.ErrKindUserRejected),
				types.WrapError(types.ErrKindUserRejected, err, "transaction rejected in wallet")
		}
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "sign transaction failed")
	}

	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "encode signed transaction failed")
	}

	// 3. 广播并等待确认
	txHash, err := s.chain.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return failed(types.ErrKindNetworkError),
			types.WrapError(types.ErrKindNetworkError, err, "broadcast transaction failed")
	}

	return s.waitForConfirmation(ctx, txHash)
}
