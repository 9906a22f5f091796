package rateswap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/registry"
)

// bridgeLeg describes one direction of the HYPE LayerZero OFT bridge.
// HyperEVM is the native-origin chain: HYPE there is the gas asset, so the
// send call pays msg.value = amount + nativeFee. Arbitrum holds the
// ERC20-wrapped representation, so only the LayerZero nativeFee rides in
// msg.value; the amount itself transfers via the OFT's token balance.
type bridgeLeg struct {
	SrcChainID  int64
	DstChainID  int64
	DstEid      uint32
	NativeOrigin bool
}

func resolveBridgeLeg(destChainID int64) (bridgeLeg, error) {
	switch destChainID {
	case registry.ChainIDArbitrumOne:
		return bridgeLeg{
			SrcChainID:   registry.ChainIDHyperEVM,
			DstChainID:   registry.ChainIDArbitrumOne,
			DstEid:       registry.LZEidArbitrum,
			NativeOrigin: true,
		}, nil
	case registry.ChainIDHyperEVM:
		return bridgeLeg{
			SrcChainID:   registry.ChainIDArbitrumOne,
			DstChainID:   registry.ChainIDHyperEVM,
			DstEid:       registry.LZEidHyperEVM,
			NativeOrigin: false,
		}, nil
	default:
		return bridgeLeg{}, canon.NewAdapterError("resolve_bridge_leg", canon.ErrUnsupported, "unsupported bridge destination chain")
	}
}

func (a *BorosAdapter) oft(chainID int64) (common.Address, error) {
	addr, ok := a.HypeOFT[chainID]
	if !ok {
		return common.Address{}, canon.NewAdapterError("oft", canon.ErrConfig, "no OFT contract configured for chain")
	}
	return addr, nil
}

// floorToGranularity rounds amount down to the OFT's decimalConversionRate
// granularity: amounts are always transferred as whole multiples of it,
// and the dust would otherwise be silently dropped by the contract.
func floorToGranularity(ctx context.Context, c *chain.Client, oft common.Address, amount *big.Int) (*big.Int, error) {
	call, err := calldata.EncodeCall(oftABI, oft, "decimalConversionRate")
	if err != nil {
		return nil, canon.Wrap("decimal_conversion_rate", canon.ErrSchema, err)
	}
	data, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return nil, canon.Wrap("decimal_conversion_rate", canon.ErrRPC, err)
	}
	out, err := calldata.Decode(oftABI, "decimalConversionRate", data)
	if err != nil || len(out) == 0 {
		return nil, canon.NewAdapterError("decimal_conversion_rate", canon.ErrSchema, "empty decimalConversionRate response")
	}
	rate, ok := out[0].(*big.Int)
	if !ok || rate == nil || rate.Sign() <= 0 {
		return amount, nil
	}
	floored := new(big.Int).Div(amount, rate)
	floored.Mul(floored, rate)
	return floored, nil
}

// oftSendParamArgs mirrors LayerZeroOFTABI's SendParam tuple: go-ethereum's
// abi.Pack matches a tuple input against a Go struct by `abi:` tag, not by
// positional field order, the same convention the lending-pool planner
// uses for Morpho's MarketParams tuple.
type oftSendParamArgs struct {
	DstEid       uint32   `abi:"dstEid"`
	To           [32]byte `abi:"to"`
	AmountLD     *big.Int `abi:"amountLD"`
	MinAmountLD  *big.Int `abi:"minAmountLD"`
	ExtraOptions []byte   `abi:"extraOptions"`
	ComposeMsg   []byte   `abi:"composeMsg"`
	OftCmd       []byte   `abi:"oftCmd"`
}

// oftFeeArgs mirrors LayerZeroOFTABI's MessagingFee tuple.
type oftFeeArgs struct {
	NativeFee  *big.Int `abi:"nativeFee"`
	LzTokenFee *big.Int `abi:"lzTokenFee"`
}

func buildSendParam(dstEid uint32, to common.Address, amount *big.Int) (oftSendParamArgs, error) {
	toBytes32, err := calldata.ToBytes32(to)
	if err != nil {
		return oftSendParamArgs{}, err
	}
	return oftSendParamArgs{
		DstEid:       dstEid,
		To:           toBytes32,
		AmountLD:     amount,
		MinAmountLD:  amount,
		ExtraOptions: []byte{},
		ComposeMsg:   []byte{},
		OftCmd:       []byte{},
	}, nil
}

// quoteSendFee calls quoteSend(sendParam, false) and returns the nativeFee
// part of the quote; lzTokenFee is not returned.
func (a *BorosAdapter) quoteSendFee(ctx context.Context, c *chain.Client, leg bridgeLeg, to common.Address, amount *big.Int) (*big.Int, error) {
	oft, err := a.oft(leg.SrcChainID)
	if err != nil {
		return nil, err
	}
	sendParam, err := buildSendParam(leg.DstEid, to, amount)
	if err != nil {
		return nil, err
	}
	call, err := calldata.EncodeCall(oftABI, oft, "quoteSend", sendParam, false)
	if err != nil {
		return nil, canon.Wrap("quote_send", canon.ErrSchema, err)
	}
	data, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return nil, canon.Wrap("quote_send", canon.ErrRPC, err)
	}
	out, err := calldata.Decode(oftABI, "quoteSend", data)
	if err != nil || len(out) < 1 {
		return nil, canon.NewAdapterError("quote_send", canon.ErrSchema, "empty quoteSend response")
	}
	nativeFee, ok := out[0].(*big.Int)
	if !ok || nativeFee == nil {
		return nil, canon.NewAdapterError("quote_send", canon.ErrSchema, "quoteSend returned no nativeFee")
	}
	return nativeFee, nil
}

// QuoteBridge prices a HYPE bridge transfer toward destChainID: the source
// chain is inferred as the venue's other supported chain. The LayerZero
// nativeFee (denominated in the source chain's gas asset, in ether units)
// is reported via Quote.MidAPR — the only numeric field the RateSwapAdapter
// quote shape offers — since a bridge transfer has no APR of its own.
func (a *BorosAdapter) QuoteBridge(ctx context.Context, account, destChainID string, amount canon.BigInt) (canon.Quote, error) {
	const op = "quote_bridge"
	addr, err := parseAccount(account)
	if err != nil {
		return canon.Quote{}, err
	}
	dstChainID, err := parseChainID(destChainID)
	if err != nil {
		return canon.Quote{}, err
	}
	leg, err := resolveBridgeLeg(dstChainID)
	if err != nil {
		return canon.Quote{}, err
	}
	if a.Gateway == nil {
		return canon.Quote{}, canon.NewAdapterError(op, canon.ErrConfig, "no chain gateway configured")
	}
	c, err := a.Gateway.ScopedClient(ctx, leg.SrcChainID)
	if err != nil {
		return canon.Quote{}, canon.Wrap(op, canon.ErrRPC, err)
	}
	oft, err := a.oft(leg.SrcChainID)
	if err != nil {
		return canon.Quote{}, err
	}
	floored, err := floorToGranularity(ctx, c, oft, nonNilBigInt(amount.Int))
	if err != nil {
		return canon.Quote{}, err
	}
	nativeFee, err := a.quoteSendFee(ctx, c, leg, addr, floored)
	if err != nil {
		return canon.Quote{}, err
	}
	feeEther := weiToEtherFloat(nativeFee)
	return canon.Quote{MarketID: destChainID, MidAPR: &feeEther, FromBook: false}, nil
}

// SendBridge quotes and then executes the bridge send, paying
// msg.value = amount + nativeFee on the native-origin leg (HyperEVM) and
// msg.value = nativeFee only on the ERC20-origin leg (Arbitrum).
func (a *BorosAdapter) SendBridge(ctx context.Context, account, destChainID string, amount canon.BigInt) (adapter.LendResult, error) {
	const op = "send_bridge"
	addr, err := parseAccount(account)
	if err != nil {
		return adapter.LendResult{}, err
	}
	dstChainID, err := parseChainID(destChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	leg, err := resolveBridgeLeg(dstChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	if a.Gateway == nil {
		return adapter.LendResult{}, canon.NewAdapterError(op, canon.ErrConfig, "no chain gateway configured")
	}
	c, err := a.Gateway.ScopedClient(ctx, leg.SrcChainID)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap(op, canon.ErrRPC, err)
	}
	oft, err := a.oft(leg.SrcChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	floored, err := floorToGranularity(ctx, c, oft, nonNilBigInt(amount.Int))
	if err != nil {
		return adapter.LendResult{}, err
	}
	nativeFee, err := a.quoteSendFee(ctx, c, leg, addr, floored)
	if err != nil {
		return adapter.LendResult{}, err
	}
	sendParam, err := buildSendParam(leg.DstEid, addr, floored)
	if err != nil {
		return adapter.LendResult{}, err
	}
	fee := oftFeeArgs{NativeFee: nativeFee, LzTokenFee: big.NewInt(0)}

	call, err := calldata.EncodeCall(oftABI, oft, "send", sendParam, fee, addr)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap(op, canon.ErrSchema, err)
	}

	value := new(big.Int).Set(nativeFee)
	if leg.NativeOrigin {
		value.Add(value, floored)
	}

	b, err := a.broadcaster(leg.SrcChainID)
	if err != nil {
		return adapter.LendResult{}, err
	}
	hash, err := b.SendValueAndWait(ctx, call, value)
	if err != nil {
		return adapter.LendResult{}, canon.Wrap(op, canon.ErrRevert, err)
	}
	return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
}

func weiToEtherFloat(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	v, _ := f.Float64()
	return v
}
