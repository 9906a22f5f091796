package execution

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/execution/signer"
)

// ChainBroadcaster sends a single unsigned call through the same
// estimate/fee-select/sign/send/poll pipeline ExecuteAction uses for a
// step, but synchronously and without an Action/Store — the shape every
// adapter capability (lend, claim_rewards, place_order, ...) needs to turn
// one calldata.Call into a confirmed transaction hash. It implements
// erc20.Broadcaster.
type ChainBroadcaster struct {
	Gateway *chain.Gateway
	Signer  signer.Signer
	ChainID int64
	Opts    ExecuteOptions
}

// SendAndWait packs value=0; use SendValueAndWait for native-value calls
// (wrap/unwrap flows).
func (b *ChainBroadcaster) SendAndWait(ctx context.Context, call calldata.Call) (common.Hash, error) {
	return b.SendValueAndWait(ctx, call, big.NewInt(0))
}

// SendValueAndWait broadcasts call with the given wei value attached,
// waiting for a successful receipt before returning.
func (b *ChainBroadcaster) SendValueAndWait(ctx context.Context, call calldata.Call, value *big.Int) (common.Hash, error) {
	scoped, err := b.Gateway.ScopedClient(ctx, b.ChainID)
	if err != nil {
		return common.Hash{}, err
	}
	eth := scoped.Raw()

	opts := b.Opts
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = GasBufferMultiplier
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultTransactionTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	signed, err := buildAndSignCall(ctx, eth, b.Signer, call.To, call.Data, value, opts)
	if err != nil {
		return common.Hash{}, canon.Wrap("send_and_wait", canon.ErrRPC, err)
	}

	if sendErr := WithRetry(ctx, func() error { return eth.SendTransaction(ctx, signed) }); sendErr != nil {
		return common.Hash{}, canon.Wrap("send_and_wait", canon.ErrRevert, sendErr)
	}

	receipt, err := waitForReceipt(ctx, eth, signed.Hash(), opts)
	if err != nil {
		return signed.Hash(), err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signed.Hash(), canon.NewAdapterError("send_and_wait", canon.ErrRevert, "transaction reverted on-chain")
	}
	return signed.Hash(), nil
}

func buildAndSignCall(ctx context.Context, eth *ethclient.Client, txSigner signer.Signer, to common.Address, data []byte, value *big.Int, opts ExecuteOptions) (*types.Transaction, error) {
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	msg := ethereum.CallMsg{From: txSigner.Address(), To: &to, Value: value, Data: data}
	gasLimit, err := eth.EstimateGas(ctx, msg)
	if err != nil {
		return nil, err
	}
	gasLimit = uint64(float64(gasLimit) * opts.GasMultiplier)

	header, err := eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	nonce, err := eth.PendingNonceAt(ctx, txSigner.Address())
	if err != nil {
		return nil, err
	}

	var unsigned *types.Transaction
	if header.BaseFee != nil {
		tipCap, err := resolveTipCap(ctx, eth, opts.MaxPriorityFeeGwei)
		if err != nil {
			return nil, err
		}
		feeCap, err := resolveFeeCap(header.BaseFee, tipCap, opts.MaxFeeGwei)
		if err != nil {
			return nil, err
		}
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID: chainID, Nonce: nonce, GasTipCap: tipCap, GasFeeCap: feeCap,
			Gas: gasLimit, To: &to, Value: value, Data: data,
		})
	} else {
		gasPrice, err := resolveLegacyGasPrice(ctx, eth, opts.MaxFeeGwei)
		if err != nil {
			return nil, err
		}
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce: nonce, GasPrice: gasPrice, Gas: gasLimit, To: &to, Value: value, Data: data,
		})
	}
	return txSigner.SignTx(chainID, unsigned)
}

func waitForReceipt(ctx context.Context, eth *ethclient.Client, hash common.Hash, opts ExecuteOptions) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, opts.StepTimeout)
	defer cancel()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := eth.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if waitCtx.Err() != nil {
			return nil, waitCtx.Err()
		}
		select {
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}
