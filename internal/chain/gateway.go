// Package chain is the Chain Gateway: it hands out a scoped RPC client per
// chain id and exposes the small read surface every adapter needs
// (eth_call, balance, block, receipt, log decoding) without each call site
// dialing and closing its own ethclient.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/wayfinder-paths/adapter-runtime/internal/calldata"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
)

// BlockTag selects the abstract block a read is evaluated against.
// Informational reads default to Latest; reads that must observe
// post-inclusion state (nonce acquisition, post-send balance deltas, debt
// reads immediately following a broadcast) use Pending.
type BlockTag string

const (
	Latest  BlockTag = "latest"
	Pending BlockTag = "pending"
)

func (t BlockTag) blockNumber() *big.Int {
	switch t {
	case Pending:
		return big.NewInt(-1) // rpc.PendingBlockNumber
	default:
		return nil // nil selects "latest" for go-ethereum's block-number-pointer APIs
	}
}

// Client is a scoped per-chain RPC handle. It is acquired for the duration
// of a single adapter operation and released (Close) on scope exit; it is
// safe for concurrent use by the operation's own goroutines.
type Client struct {
	chainID int64
	rpcURL  string
	eth     *ethclient.Client
}

// Gateway caches one Client per chain id for the lifetime of the process.
// Concurrent ScopedClient calls for different chain ids proceed in
// parallel; the in-memory cache is write-once-per-key, so a race between
// two callers dialing the same chain id produces identical clients and
// requires no lock beyond the map mutex itself.
type Gateway struct {
	mu      sync.Mutex
	byChain map[int64]*Client
	rpcURLs map[int64]string
}

func NewGateway() *Gateway {
	return &Gateway{
		byChain: make(map[int64]*Client),
		rpcURLs: make(map[int64]string),
	}
}

// SetRPCURL registers (or overrides) the endpoint used for a chain id.
// Adapters call this once during wiring; ScopedClient fails for chain ids
// with no registered URL.
func (g *Gateway) SetRPCURL(chainID int64, url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rpcURLs[chainID] = url
}

// ScopedClient returns the cached Client for chainID, dialing on first use.
func (g *Gateway) ScopedClient(ctx context.Context, chainID int64) (*Client, error) {
	g.mu.Lock()
	if c, ok := g.byChain[chainID]; ok {
		g.mu.Unlock()
		return c, nil
	}
	url, ok := g.rpcURLs[chainID]
	g.mu.Unlock()
	if !ok {
		return nil, canon.NewAdapterError("scoped_client", canon.ErrConfig, fmt.Sprintf("no rpc url configured for chain %d", chainID))
	}

	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, canon.Wrap("scoped_client", canon.ErrRPC, err)
	}
	c := &Client{chainID: chainID, rpcURL: url, eth: eth}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.byChain[chainID]; ok {
		eth.Close()
		return existing, nil
	}
	g.byChain[chainID] = c
	return c, nil
}

// Close releases every cached client. Call once at process shutdown, not
// per-operation — Client is long-lived and shared across adapters.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.byChain {
		c.eth.Close()
	}
	g.byChain = make(map[int64]*Client)
}

func (c *Client) ChainID() int64 { return c.chainID }

func (c *Client) EthCall(ctx context.Context, to common.Address, data []byte, tag BlockTag) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := c.eth.CallContract(ctx, msg, tag.blockNumber())
	if err != nil {
		return nil, canon.Wrap("eth_call", canon.ErrRevert, err)
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context, addr common.Address, tag BlockTag) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr, tag.blockNumber())
	if err != nil {
		return nil, canon.Wrap("get_balance", canon.ErrRPC, err)
	}
	return bal, nil
}

func (c *Client) GetBlock(ctx context.Context, tag BlockTag) (*types.Header, error) {
	hdr, err := c.eth.HeaderByNumber(ctx, tag.blockNumber())
	if err != nil {
		return nil, canon.Wrap("get_block", canon.ErrRPC, err)
	}
	return hdr, nil
}

func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, canon.Wrap("get_transaction_receipt", canon.ErrRPC, err)
	}
	return receipt, nil
}

// PendingNonceAt returns the next usable nonce for addr, observing
// not-yet-mined transactions — used by the transaction pipeline's nonce
// acquisition, which always reads Pending.
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, canon.Wrap("pending_nonce", canon.ErrRPC, err)
	}
	return nonce, nil
}

// SuggestGasTipCap and SendTransaction pass through to the underlying
// ethclient; the transaction pipeline owns fee-selection policy.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, canon.Wrap("suggest_gas_tip_cap", canon.ErrRPC, err)
	}
	return tip, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return canon.Wrap("send_transaction", canon.ErrRPC, err)
	}
	return nil
}

func (c *Client) Raw() *ethclient.Client { return c.eth }

// FilterLogs recovers logs emitted by contracts at addrs between fromBlock
// and toBlock (nil toBlock means latest), returned as the codec's plain
// EventLog shape ready for calldata.DecodeEvent.
func (c *Client) FilterLogs(ctx context.Context, addrs []common.Address, topics [][]common.Hash, fromBlock, toBlock *big.Int) ([]calldata.EventLog, error) {
	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: addrs,
		Topics:    topics,
	})
	if err != nil {
		return nil, canon.Wrap("filter_logs", canon.ErrRPC, err)
	}
	out := make([]calldata.EventLog, len(logs))
	for i, l := range logs {
		out[i] = calldata.EventLog{Address: l.Address, Topics: l.Topics, Data: l.Data}
	}
	return out, nil
}
