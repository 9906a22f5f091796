package rateswap

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/ratemath"
)

// marketAcc packs the venue's 26-byte account key: a 20-byte address, a
// 1-byte sub-account id, a 2-byte token id, and a 3-byte market id field —
// "ffffff" marks the cross-margin book rather than a single isolated
// market, matching _get_market_acc's local-fallback packing.
func marketAcc(account common.Address, accountID uint8, tokenID uint16, marketIDHex string) string {
	if marketIDHex == "" {
		marketIDHex = marketAccCrossMarginMarker
	}
	return account.Hex() + byteHex(accountID) + uint16Hex(tokenID) + marketIDHex
}

func byteHex(b uint8) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xf]})
}

func uint16Hex(v uint16) string {
	return byteHex(uint8(v >> 8)) + byteHex(uint8(v))
}

// PlaceOrder resolves the account's market-acc, selects a limit tick from
// the live book when the caller didn't pin one, and broadcasts the
// server-built place-order calldata.
func (a *BorosAdapter) PlaceOrder(ctx context.Context, req adapter.PlaceOrderRequest) (adapter.PlaceOrderResult, error) {
	const op = "place_order"
	addr, err := parseAccount(req.Account)
	if err != nil {
		return adapter.PlaceOrderResult{}, err
	}
	chainID := a.homeChainID()

	tickStep, err := a.marketTickStep(ctx, req.MarketID)
	if err != nil {
		return adapter.PlaceOrderResult{}, err
	}

	tick := int64(0)
	if req.LimitTick != nil {
		tick = *req.LimitTick
	} else {
		book, err := a.fetchOrderBook(ctx, req.MarketID, tickStep)
		if err != nil {
			return adapter.PlaceOrderResult{}, err
		}
		tick, err = pickLimitTickForFill(book, req.Side, req.Size, tickStep)
		if err != nil {
			return adapter.PlaceOrderResult{}, err
		}
	}

	acc := marketAcc(addr, a.AccountID, uint16(defaultCollateralTokenID), "")

	var body map[string]any
	if err := a.postJSON(ctx, op, pathPlaceOrder, map[string]any{
		"marketId":  req.MarketID,
		"marketAcc": acc,
		"side":      string(req.Side),
		"size":      req.Size.String(),
		"limitTick": tick,
	}, &body); err != nil {
		return adapter.PlaceOrderResult{}, err
	}

	result, err := a.broadcastCalldata(ctx, op, chainID, body)
	if err != nil {
		return adapter.PlaceOrderResult{}, err
	}

	order := canon.LimitOrder{
		MarketID:      req.MarketID,
		Side:          req.Side,
		Size:          req.Size,
		LimitTick:     tick,
		LimitAPR:      ratemath.RateFromTick(tick, tickStep),
		FilledSize:    canon.Zero(),
		RemainingSize: req.Size,
		Status:        canon.OrderOpen,
	}
	txHash := ""
	if len(result.TxHashes) > 0 {
		txHash = result.TxHashes[0]
	}
	return adapter.PlaceOrderResult{Order: order, TxHash: txHash}, nil
}

// CancelOrder cancels a resting order by id.
func (a *BorosAdapter) CancelOrder(ctx context.Context, account, orderID string) (adapter.LendResult, error) {
	const op = "cancel_order"
	if _, err := parseAccount(account); err != nil {
		return adapter.LendResult{}, err
	}
	chainID := a.homeChainID()

	var body map[string]any
	if err := a.postJSON(ctx, op, pathCancelOrder, map[string]any{
		"userAddress": account,
		"accountId":   int64(a.AccountID),
		"orderId":     orderID,
	}, &body); err != nil {
		return adapter.LendResult{}, err
	}
	return a.broadcastCalldata(ctx, op, chainID, body)
}

// ClosePosition fully unwinds an account's active position in marketID at
// current market price.
func (a *BorosAdapter) ClosePosition(ctx context.Context, account, marketID string) (adapter.LendResult, error) {
	const op = "close_position"
	if _, err := parseAccount(account); err != nil {
		return adapter.LendResult{}, err
	}
	chainID := a.homeChainID()

	var body map[string]any
	if err := a.postJSON(ctx, op, pathClosePosition, map[string]any{
		"userAddress": account,
		"accountId":   int64(a.AccountID),
		"marketId":    marketID,
	}, &body); err != nil {
		return adapter.LendResult{}, err
	}
	return a.broadcastCalldata(ctx, op, chainID, body)
}
