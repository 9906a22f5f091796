package app

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter/lendingpool"
	"github.com/wayfinder-paths/adapter-runtime/internal/adapter/rateswap"
	"github.com/wayfinder-paths/adapter-runtime/internal/chain"
	"github.com/wayfinder-paths/adapter-runtime/internal/execution"
	execsigner "github.com/wayfinder-paths/adapter-runtime/internal/execution/signer"
	"github.com/wayfinder-paths/adapter-runtime/internal/registry"
)

// adapterGateway lazily builds the chain.Gateway the lending-pool and
// rate-swap adapters read through, applying any configured RPC overrides
// and otherwise falling back to the registry default per chain.
func (s *runtimeState) adapterGateway() *chain.Gateway {
	if s.gateway != nil {
		return s.gateway
	}
	gw := chain.NewGateway()
	for _, chainID := range s.settings.AdapterChainIDs {
		if override, ok := s.settings.RPCOverrides[chainID]; ok && override != "" {
			gw.SetRPCURL(chainID, override)
			continue
		}
		if rpc, ok := registry.DefaultRPCURL(chainID); ok {
			gw.SetRPCURL(chainID, rpc)
		}
	}
	s.gateway = gw
	return gw
}

func chainAddressMap(chainIDs []int64, lookup func(int64) (string, bool)) map[int64]common.Address {
	out := make(map[int64]common.Address)
	for _, chainID := range chainIDs {
		if addr, ok := lookup(chainID); ok {
			out[chainID] = common.HexToAddress(addr)
		}
	}
	return out
}

// aaveAdapter wires a lendingpool.AaveAdapter against every configured
// chain that has a registered PoolAddressesProvider, with one
// execution.ChainBroadcaster per chain bound to txSigner — the C5 send
// pipeline this adapter's Lend/Borrow/... calls exercise for real.
func (s *runtimeState) aaveAdapter(txSigner execsigner.Signer, opts execution.ExecuteOptions) *lendingpool.AaveAdapter {
	gw := s.adapterGateway()
	broadcasters := make(map[int64]lendingpool.ChainBroadcaster, len(s.settings.AdapterChainIDs))
	for _, chainID := range s.settings.AdapterChainIDs {
		broadcasters[chainID] = &execution.ChainBroadcaster{Gateway: gw, Signer: txSigner, ChainID: chainID, Opts: opts}
	}
	return &lendingpool.AaveAdapter{
		Gateway:          gw,
		Multicall:        chainAddressMap(s.settings.AdapterChainIDs, registry.Multicall3),
		AddressProviders: chainAddressMap(s.settings.AdapterChainIDs, registry.AavePoolAddressProvider),
		Broadcasters:     broadcasters,
	}
}

// morphoAdapter wires a lendingpool.MorphoAdapter the same way, against
// every configured chain that has a registered Morpho Blue singleton.
func (s *runtimeState) morphoAdapter(txSigner execsigner.Signer, opts execution.ExecuteOptions) *lendingpool.MorphoAdapter {
	gw := s.adapterGateway()
	broadcasters := make(map[int64]lendingpool.ChainBroadcaster, len(s.settings.AdapterChainIDs))
	for _, chainID := range s.settings.AdapterChainIDs {
		broadcasters[chainID] = &execution.ChainBroadcaster{Gateway: gw, Signer: txSigner, ChainID: chainID, Opts: opts}
	}
	return &lendingpool.MorphoAdapter{
		Gateway:      gw,
		Multicall:    chainAddressMap(s.settings.AdapterChainIDs, registry.Multicall3),
		MorphoBlue:   chainAddressMap(s.settings.AdapterChainIDs, registry.MorphoBlue),
		Distributor:  chainAddressMap(s.settings.AdapterChainIDs, registry.MorphoRewardsDistributor),
		Broadcasters: broadcasters,
	}
}

// borosAdapter wires a rateswap.BorosAdapter against the configured home
// chain plus the LayerZero OFT bridge leg on whichever chain is reachable.
func (s *runtimeState) borosAdapter(txSigner execsigner.Signer, opts execution.ExecuteOptions) *rateswap.BorosAdapter {
	gw := s.adapterGateway()
	broadcasters := make(map[int64]rateswap.ChainBroadcaster, len(s.settings.AdapterChainIDs))
	for _, chainID := range s.settings.AdapterChainIDs {
		broadcasters[chainID] = &execution.ChainBroadcaster{Gateway: gw, Signer: txSigner, ChainID: chainID, Opts: opts}
	}
	accountID := uint8(0)
	if s.settings.BorosAccountID >= 0 && s.settings.BorosAccountID <= 255 {
		accountID = uint8(s.settings.BorosAccountID)
	}
	return &rateswap.BorosAdapter{
		Gateway:      gw,
		BaseURL:      s.settings.BorosBaseURL,
		AccountID:    accountID,
		HomeChainID:  s.settings.BorosHomeChainID,
		MarketHub:    chainAddressMap(s.settings.AdapterChainIDs, registry.BorosMarketHub),
		Router:       chainAddressMap(s.settings.AdapterChainIDs, registry.BorosRouter),
		HypeOFT:      chainAddressMap(s.settings.AdapterChainIDs, registry.HypeOFT),
		Broadcasters: broadcasters,
	}
}

// defaultAdapterSigner resolves the signer backend the adapter command
// surface uses when a command leaves --signer/--key-source at their
// cobra-level zero values, falling back to the configured defaults.
func (s *runtimeState) defaultAdapterSigner(signerBackend, keySource string) (execsigner.Signer, error) {
	if signerBackend == "" {
		signerBackend = s.settings.SignerBackend
	}
	if keySource == "" {
		keySource = s.settings.SignerKeySource
	}
	return newExecutionSigner(signerBackend, keySource, "")
}
