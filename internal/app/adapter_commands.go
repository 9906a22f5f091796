package app

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	clierr "github.com/wayfinder-paths/adapter-runtime/internal/errors"
	"github.com/wayfinder-paths/adapter-runtime/internal/execution"
	execsigner "github.com/wayfinder-paths/adapter-runtime/internal/execution/signer"
	"github.com/wayfinder-paths/adapter-runtime/internal/model"
)

// lendingPoolAdapter resolves the named money-market venue against a
// signer built from the command's own --signer/--key-source flags, falling
// back to the configured defaults when left blank.
func (s *runtimeState) lendingPoolAdapter(protocol, signerBackend, keySource string) (adapter.LendingPoolAdapter, error) {
	txSigner, err := s.defaultAdapterSigner(signerBackend, keySource)
	if err != nil {
		return nil, err
	}
	opts := execution.DefaultExecuteOptions()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "aave":
		return s.aaveAdapter(txSigner, opts), nil
	case "morpho":
		return s.morphoAdapter(txSigner, opts), nil
	default:
		return nil, clierr.New(clierr.CodeUsage, "--protocol must be aave or morpho")
	}
}

func (s *runtimeState) rateSwapAdapter(signerBackend, keySource string) (adapter.RateSwapAdapter, error) {
	txSigner, err := s.defaultAdapterSigner(signerBackend, keySource)
	if err != nil {
		return nil, err
	}
	return s.borosAdapter(txSigner, execution.DefaultExecuteOptions()), nil
}

func parseBigIntArg(flag, value string) (canon.BigInt, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return canon.BigInt{}, clierr.New(clierr.CodeUsage, "invalid "+flag+": expected a base-10 integer")
	}
	return canon.NewBigInt(v), nil
}

// newAdapterCommand builds the command surface for the capability-typed
// adapter contract: get_all_markets/get_full_user_state/lend/unlend/borrow/
// repay/set_collateral/claim_rewards against the lending-pool adapters, and
// the full rate-swap venue flow (quote, order, withdrawal, bridge) against
// the Boros adapter.
func (s *runtimeState) newAdapterCommand() *cobra.Command {
	root := &cobra.Command{Use: "adapter", Short: "Protocol adapter runtime (lending-pool and rate-swap venues)"}
	root.AddCommand(s.newAdapterGetAllMarketsCommand())
	root.AddCommand(s.newAdapterGetFullUserStateCommand())
	root.AddCommand(s.newAdapterLendVerbCommand("lend", "Supply assets into a lending-pool adapter"))
	root.AddCommand(s.newAdapterLendVerbCommand("unlend", "Withdraw assets from a lending-pool adapter"))
	root.AddCommand(s.newAdapterLendVerbCommand("borrow", "Borrow assets from a lending-pool adapter"))
	root.AddCommand(s.newAdapterLendVerbCommand("repay", "Repay borrowed assets on a lending-pool adapter"))
	root.AddCommand(s.newAdapterSetCollateralCommand())
	root.AddCommand(s.newAdapterClaimRewardsCommand())
	root.AddCommand(s.newRateSwapCommand())
	return root
}

func (s *runtimeState) newAdapterGetAllMarketsCommand() *cobra.Command {
	var protocol, chainArg, signerBackend, keySource string
	var includeRewards bool
	cmd := &cobra.Command{
		Use:   "get-all-markets",
		Short: "List every market a lending-pool adapter reports on a chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			start := time.Now()
			a, err := s.lendingPoolAdapter(protocol, signerBackend, keySource)
			if err != nil {
				return err
			}
			markets, err := a.GetAllMarkets(ctx, chainArg, includeRewards)
			statuses := []model.ProviderStatus{{Name: protocol, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), markets, nil, cacheMetaBypass(), statuses, false)
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "Lending-pool protocol (aave|morpho)")
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier (CAIP-2 or decimal chain id)")
	cmd.Flags().BoolVar(&includeRewards, "include-rewards", false, "Include per-market reward/incentive data")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", "", "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func (s *runtimeState) newAdapterGetFullUserStateCommand() *cobra.Command {
	var protocol, account, chains, signerBackend, keySource string
	var includeZero bool
	cmd := &cobra.Command{
		Use:   "get-full-user-state",
		Short: "Fetch an account's full position state from a lending-pool adapter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			start := time.Now()
			a, err := s.lendingPoolAdapter(protocol, signerBackend, keySource)
			if err != nil {
				return err
			}
			chainIDs := splitNonEmpty(chains)
			if len(chainIDs) == 0 {
				for _, chainID := range s.settings.AdapterChainIDs {
					chainIDs = append(chainIDs, big.NewInt(chainID).String())
				}
			}
			state, err := a.GetFullUserState(ctx, account, chainIDs, includeZero)
			statuses := []model.ProviderStatus{{Name: protocol, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), state, nil, cacheMetaBypass(), statuses, false)
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "Lending-pool protocol (aave|morpho)")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&chains, "chains", "", "Comma-separated chain identifiers (empty scans every configured chain)")
	cmd.Flags().BoolVar(&includeZero, "include-zero", false, "Include zero-balance positions")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", "", "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *runtimeState) newAdapterLendVerbCommand(verb, short string) *cobra.Command {
	var protocol, chainArg, underlying, account, amount string
	var native, full bool
	var signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			start := time.Now()
			a, err := s.lendingPoolAdapter(protocol, signerBackend, keySource)
			if err != nil {
				return err
			}
			var amountValue canon.BigInt
			if !full {
				amountValue, err = parseBigIntArg("--amount", amount)
				if err != nil {
					return err
				}
			}
			req := adapter.LendRequest{
				ChainID:    chainArg,
				Underlying: underlying,
				Account:    account,
				Amount:     amountValue,
				Native:     native,
				Full:       full,
			}
			var result adapter.LendResult
			switch verb {
			case "lend":
				result, err = a.Lend(ctx, req)
			case "unlend":
				result, err = a.Unlend(ctx, req)
			case "borrow":
				result, err = a.Borrow(ctx, req)
			case "repay":
				result, err = a.Repay(ctx, req)
			}
			statuses := []model.ProviderStatus{{Name: protocol, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), statuses, false)
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "Lending-pool protocol (aave|morpho)")
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier")
	cmd.Flags().StringVar(&underlying, "underlying", "", "Underlying asset address")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in base units (ignored when --full is set)")
	cmd.Flags().BoolVar(&native, "native", false, "Wrap/unwrap through the chain's native asset")
	cmd.Flags().BoolVar(&full, "full", false, "Use the maximum amount the pool reports (withdraw/repay only)")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("underlying")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newAdapterSetCollateralCommand() *cobra.Command {
	var protocol, chainArg, underlying, account string
	var enabled bool
	var signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "set-collateral",
		Short: "Toggle whether a supplied asset backs borrows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			start := time.Now()
			a, err := s.lendingPoolAdapter(protocol, signerBackend, keySource)
			if err != nil {
				return err
			}
			result, err := a.SetCollateral(ctx, adapter.SetCollateralRequest{
				ChainID: chainArg, Underlying: underlying, Account: account, Enabled: enabled,
			})
			statuses := []model.ProviderStatus{{Name: protocol, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), statuses, false)
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "Lending-pool protocol (aave|morpho)")
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier")
	cmd.Flags().StringVar(&underlying, "underlying", "", "Underlying asset address")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Whether the asset should back borrows")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("underlying")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newAdapterClaimRewardsCommand() *cobra.Command {
	var protocol, chainArg, account, assets string
	var signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "claim-rewards",
		Short: "Claim accrued reward/incentive tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			start := time.Now()
			a, err := s.lendingPoolAdapter(protocol, signerBackend, keySource)
			if err != nil {
				return err
			}
			result, err := a.ClaimRewards(ctx, adapter.ClaimRewardsRequest{
				ChainID: chainArg, Account: account, Assets: splitNonEmpty(assets),
			})
			statuses := []model.ProviderStatus{{Name: protocol, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
			s.captureCommandDiagnostics(nil, statuses, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), statuses, false)
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "Lending-pool protocol (aave|morpho)")
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&assets, "assets", "", "Comma-separated asset list (empty derives from the lens)")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
