// Package erc20 provides ERC20 metadata/balance reads and the
// ensure_allowance guarantee shared by every adapter that moves tokens
// through a pool or router contract.
package erc20

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
)

// MaxUint256 is the conventional "infinite"/"full amount" sentinel passed
// to approve and to withdraw_full/repay_full calls.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const metadataABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const metadataBytes32ABI = `[
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

var (
	parsedABI        = calldata.ParseABI(metadataABI)
	parsedBytes32ABI = calldata.ParseABI(metadataBytes32ABI)
)

// ApprovalResetRequired is the static (chain_id, token_lower) -> true table
// of tokens whose approve() rejects a non-zero-to-non-zero allowance
// transition (USDT on Ethereum mainnet being the canonical example).
// ensure_allowance consults it uniformly regardless of which adapter calls
// it, so the table lives here rather than scattered in per-adapter files.
var ApprovalResetRequired = map[[2]string]bool{
	{"1", "0xdac17f958d2ee523a2206206994597c13d831ec7"}: true, // USDT mainnet
}

func resetKey(chainID int64, token string) [2]string {
	return [2]string{itoa(chainID), strings.ToLower(token)}
}

func itoa(v int64) string {
	return big.NewInt(v).String()
}

// RequiresApprovalReset reports whether token on chainID must go through
// approve(spender, 0) before approve(spender, newAmount) can succeed.
func RequiresApprovalReset(chainID int64, token string) bool {
	return ApprovalResetRequired[resetKey(chainID, token)]
}

func BalanceOf(ctx context.Context, c *chain.Client, token, owner common.Address, tag chain.BlockTag) (*big.Int, error) {
	call, err := calldata.EncodeCall(parsedABI, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, tag)
	if err != nil {
		return nil, err
	}
	vals, err := calldata.Decode(parsedABI, "balanceOf", out)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

func Decimals(ctx context.Context, c *chain.Client, token common.Address) (int, error) {
	call, err := calldata.EncodeCall(parsedABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return 0, err
	}
	vals, err := calldata.Decode(parsedABI, "decimals", out)
	if err != nil {
		return 0, err
	}
	return int(vals[0].(uint8)), nil
}

// Symbol reads the ERC20 symbol, falling back to bytes32 decoding for
// non-standard tokens (e.g. MKR) whose symbol()/name() return bytes32
// instead of string.
func Symbol(ctx context.Context, c *chain.Client, token common.Address) (string, error) {
	return stringOrBytes32(ctx, c, token, "symbol")
}

func Name(ctx context.Context, c *chain.Client, token common.Address) (string, error) {
	return stringOrBytes32(ctx, c, token, "name")
}

func stringOrBytes32(ctx context.Context, c *chain.Client, token common.Address, fn string) (string, error) {
	call, err := calldata.EncodeCall(parsedABI, token, fn)
	if err != nil {
		return "", err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err == nil {
		if vals, derr := calldata.Decode(parsedABI, fn, out); derr == nil && len(vals) == 1 {
			if s, ok := vals[0].(string); ok {
				return s, nil
			}
		}
	}
	call32, err := calldata.EncodeCall(parsedBytes32ABI, token, fn)
	if err != nil {
		return "", err
	}
	out32, err := c.EthCall(ctx, call32.To, call32.Data, chain.Latest)
	if err != nil {
		return "", err
	}
	vals32, err := calldata.Decode(parsedBytes32ABI, fn, out32)
	if err != nil {
		return "", err
	}
	raw := vals32[0].([32]byte)
	return strings.TrimRight(string(raw[:]), "\x00"), nil
}

func Allowance(ctx context.Context, c *chain.Client, token, owner, spender common.Address) (*big.Int, error) {
	call, err := calldata.EncodeCall(parsedABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := c.EthCall(ctx, call.To, call.Data, chain.Latest)
	if err != nil {
		return nil, err
	}
	vals, err := calldata.Decode(parsedABI, "allowance", out)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

// ApproveCall builds the unsigned approve(spender, amount) call.
func ApproveCall(token, spender common.Address, amount *big.Int) (calldata.Call, error) {
	return calldata.EncodeCall(parsedABI, token, "approve", spender, amount)
}

// Broadcaster sends a single unsigned call and waits for its receipt; the
// transaction pipeline (C5) implements this for ensure_allowance.
type Broadcaster interface {
	SendAndWait(ctx context.Context, call calldata.Call) (common.Hash, error)
}

// EnsureAllowanceResult reports whether ensure_allowance had to broadcast,
// and if so which transaction hash(es) it produced, in order.
type EnsureAllowanceResult struct {
	Broadcast bool
	TxHashes  []common.Hash
}

// EnsureAllowance guarantees allowance(owner, spender) >= need, broadcasting
// at most a reset-then-set pair for tokens in ApprovalResetRequired and
// exactly one approve otherwise. It never broadcasts when the existing
// allowance already covers need. Both broadcasts (when two are needed)
// await their receipts before returning.
func EnsureAllowance(ctx context.Context, c *chain.Client, b Broadcaster, chainID int64, token, owner, spender common.Address, need, approveTo *big.Int) (EnsureAllowanceResult, error) {
	current, err := Allowance(ctx, c, token, owner, spender)
	if err != nil {
		return EnsureAllowanceResult{}, err
	}
	if current.Cmp(need) >= 0 {
		return EnsureAllowanceResult{}, nil
	}

	result := EnsureAllowanceResult{Broadcast: true}
	if RequiresApprovalReset(chainID, token.Hex()) {
		resetCall, err := ApproveCall(token, spender, big.NewInt(0))
		if err != nil {
			return result, err
		}
		hash, err := b.SendAndWait(ctx, resetCall)
		if err != nil {
			return result, canon.Wrap("ensure_allowance", canon.ErrAllowance, err)
		}
		result.TxHashes = append(result.TxHashes, hash)
	}

	setCall, err := ApproveCall(token, spender, approveTo)
	if err != nil {
		return result, err
	}
	hash, err := b.SendAndWait(ctx, setCall)
	if err != nil {
		return result, canon.Wrap("ensure_allowance", canon.ErrAllowance, err)
	}
	result.TxHashes = append(result.TxHashes, hash)
	return result, nil
}
