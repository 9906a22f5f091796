package rateswap

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
)

// txPayload is a single unsigned call recovered from a calldata-building
// endpoint's response. The API sometimes nests {to,data,value} under one of
// several wrapper keys rather than returning it at the top level.
type txPayload struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

var txPayloadWrapperKeys = []string{"data", "calldata", "transaction", "tx", "result"}

// unwrapTxPayload walks raw for a {to,data[,value]} object, checking the
// top level first and then each wrapper key in turn.
func unwrapTxPayload(raw map[string]any) (txPayload, bool) {
	if tx, ok := txFromObject(raw); ok {
		return tx, true
	}
	for _, key := range txPayloadWrapperKeys {
		nested, ok := raw[key].(map[string]any)
		if !ok {
			continue
		}
		if tx, ok := txFromObject(nested); ok {
			return tx, true
		}
	}
	return txPayload{}, false
}

func txFromObject(obj map[string]any) (txPayload, bool) {
	toRaw, hasTo := obj["to"]
	dataRaw, hasData := obj["data"]
	if !hasTo || !hasData {
		return txPayload{}, false
	}
	toStr, ok := toRaw.(string)
	if !ok || !common.IsHexAddress(toStr) {
		return txPayload{}, false
	}
	dataStr, ok := dataRaw.(string)
	if !ok {
		return txPayload{}, false
	}
	value := big.NewInt(0)
	if v, ok := obj["value"]; ok {
		value = parseBigAny(v)
	}
	return txPayload{
		To:    common.HexToAddress(toStr),
		Data:  common.FromHex(dataStr),
		Value: value,
	}, true
}

// calldatasFromObject recovers a multi-tx {"calldatas": ["0x...", ...]}
// payload, every entry of which is sent sequentially to the fixed router
// address rather than a per-tx `to`.
func calldatasFromObject(raw map[string]any) ([][]byte, bool) {
	list, ok := raw["calldatas"].([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([][]byte, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, common.FromHex(s))
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func parseBigAny(v any) *big.Int {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			if n, ok := new(big.Int).SetString(s[2:], 16); ok {
				return n
			}
			return big.NewInt(0)
		}
		if n, ok := new(big.Int).SetString(s, 10); ok {
			return n
		}
		return big.NewInt(0)
	case float64:
		return big.NewInt(int64(t))
	default:
		return big.NewInt(0)
	}
}

const broadcastMaxRetries = 2

// broadcastCalldata sends the unsigned call(s) recovered from a
// calldata-building endpoint's response body. A single-tx payload retries
// on revert (exponential-ish backoff, 2*(attempt+1)s) and on non-revert
// error (flat 1s backoff), up to broadcastMaxRetries. A multi-tx
// `calldatas` payload sends every entry to the configured router in order,
// stopping at the first failure and returning the hashes collected so far.
func (a *BorosAdapter) broadcastCalldata(ctx context.Context, op string, chainID int64, body map[string]any) (adapter.LendResult, error) {
	b, err := a.broadcaster(chainID)
	if err != nil {
		return adapter.LendResult{}, err
	}

	if batch, ok := calldatasFromObject(body); ok {
		router, err := a.router(chainID)
		if err != nil {
			return adapter.LendResult{}, err
		}
		var hashes []string
		for i, data := range batch {
			hash, err := b.SendAndWait(ctx, calldata.Call{To: router, Data: data})
			if err != nil {
				return adapter.LendResult{TxHashes: hashes}, canon.Wrap(op, canon.ErrRevert, fmt.Errorf("calldata %d/%d failed: %w", i+1, len(batch), err))
			}
			hashes = append(hashes, hash.Hex())
		}
		return adapter.LendResult{TxHashes: hashes}, nil
	}

	tx, ok := unwrapTxPayload(body)
	if !ok {
		return adapter.LendResult{}, canon.NewAdapterError(op, canon.ErrSchema, "calldata response had no recognizable transaction payload")
	}

	var lastErr error
	for attempt := 0; attempt <= broadcastMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return adapter.LendResult{}, ctx.Err()
			case <-time.After(backoffDelay(attempt, lastErr)):
			}
		}
		hash, err := b.SendValueAndWait(ctx, calldata.Call{To: tx.To, Data: tx.Data}, tx.Value)
		if err == nil {
			return adapter.LendResult{TxHashes: []string{hash.Hex()}}, nil
		}
		lastErr = err
	}
	return adapter.LendResult{}, canon.Wrap(op, canon.ErrRevert, lastErr)
}

func backoffDelay(attempt int, lastErr error) time.Duration {
	var adapterErr *canon.AdapterError
	if ae, ok := lastErr.(*canon.AdapterError); ok {
		adapterErr = ae
	}
	if adapterErr != nil && adapterErr.Kind == canon.ErrRevert {
		return time.Duration(2*attempt) * time.Second
	}
	return 1 * time.Second
}
