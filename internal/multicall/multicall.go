// Package multicall bundles many read calls into as few eth_call round
// trips as possible, chunking large batches and falling back to per-call
// execution when a chunk reverts.
package multicall

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
)

// DefaultChunkSize is the default hint for how many calls to bundle into a
// single aggregate() invocation before node-side calldata/gas limits make a
// single revert likely to poison the whole batch.
const DefaultChunkSize = 300

const aggregateABI = `[
	{"name":"aggregate","type":"function","stateMutability":"nonpayable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"callData","type":"bytes"}]}],"outputs":[{"name":"blockNumber","type":"uint256"},{"name":"returnData","type":"bytes[]"}]}
]`

var parsedAggregateABI = calldata.ParseABI(aggregateABI)

// Call is one read in a multicall batch.
type Call struct {
	Target common.Address
	Data   []byte
}

type aggregateTuple struct {
	Target   common.Address
	CallData []byte
}

// Result is the outcome for a single call in the batch. Bytes is nil (not
// empty) when the call failed, so callers can distinguish "call reverted"
// from "call returned a zero-length success" without a second field.
type Result struct {
	Bytes []byte
	Err   error
}

// Ok reports whether the call succeeded.
func (r Result) Ok() bool { return r.Err == nil }

// Aggregate runs calls through the on-chain Multicall contract at
// multicallAddr, chunking at chunkSize (DefaultChunkSize if <= 0). Within a
// chunk, one revert downgrades that whole chunk to per-call execution so a
// single rogue read never poisons the batch; the returned slice always has
// len(calls) entries in input order.
func Aggregate(ctx context.Context, c *chain.Client, multicallAddr common.Address, calls []Call, chunkSize int, tag chain.BlockTag) ([]Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	out := make([]Result, len(calls))
	for start := 0; start < len(calls); start += chunkSize {
		end := start + chunkSize
		if end > len(calls) {
			end = len(calls)
		}
		chunk := calls[start:end]
		results, err := aggregateChunk(ctx, c, multicallAddr, chunk, tag)
		if err != nil {
			// Whole chunk reverted: fall back to per-call execution so one
			// rogue target never poisons the rest of the chunk.
			results = perCallFallback(ctx, c, chunk, tag)
		}
		copy(out[start:end], results)
	}
	return out, nil
}

func aggregateChunk(ctx context.Context, c *chain.Client, multicallAddr common.Address, chunk []Call, tag chain.BlockTag) ([]Result, error) {
	tuples := make([]aggregateTuple, len(chunk))
	for i, call := range chunk {
		tuples[i] = aggregateTuple{Target: call.Target, CallData: call.Data}
	}

	packed, err := parsedAggregateABI.Pack("aggregate", tuples)
	if err != nil {
		return nil, canon.NewAdapterError("aggregate", canon.ErrSchema, "pack aggregate call: "+err.Error())
	}
	raw, err := c.EthCall(ctx, multicallAddr, packed, tag)
	if err != nil {
		return nil, err
	}
	vals, err := calldata.Decode(parsedAggregateABI, "aggregate", raw)
	if err != nil {
		return nil, err
	}
	returnData, ok := vals[1].([][]byte)
	if !ok {
		return nil, canon.NewAdapterError("aggregate", canon.ErrSchema, "unexpected aggregate return shape")
	}
	if len(returnData) != len(chunk) {
		return nil, canon.NewAdapterError("aggregate", canon.ErrSchema, "aggregate returned mismatched slot count")
	}
	out := make([]Result, len(chunk))
	for i, data := range returnData {
		out[i] = Result{Bytes: data}
	}
	return out, nil
}

func perCallFallback(ctx context.Context, c *chain.Client, chunk []Call, tag chain.BlockTag) []Result {
	out := make([]Result, len(chunk))
	for i, call := range chunk {
		data, err := c.EthCall(ctx, call.Target, call.Data, tag)
		if err != nil {
			out[i] = Result{Err: err}
			continue
		}
		out[i] = Result{Bytes: data}
	}
	return out
}

// BigIntFromSlot is a convenience for decoding the common single-uint256
// return shape out of a successful Result.
func BigIntFromSlot(r Result) (*big.Int, bool) {
	if !r.Ok() || len(r.Bytes) < 32 {
		return nil, false
	}
	return new(big.Int).SetBytes(r.Bytes[:32]), true
}
