package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/wayfinder-paths/adapter-runtime/internal/adapter"
	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
	clierr "github.com/wayfinder-paths/adapter-runtime/internal/errors"
	execsigner "github.com/wayfinder-paths/adapter-runtime/internal/execution/signer"
	"github.com/wayfinder-paths/adapter-runtime/internal/model"
)

const rateSwapProviderName = "boros"

func parseOrderSide(raw string) (canon.OrderSide, error) {
	switch canon.OrderSide(raw) {
	case canon.SideLong:
		return canon.SideLong, nil
	case canon.SideShort:
		return canon.SideShort, nil
	default:
		return "", clierr.New(clierr.CodeUsage, "--side must be long or short")
	}
}

// newRateSwapCommand builds the fixed-rate rate-swap venue's command
// surface: market discovery and quoting, order lifecycle, the two-phase
// withdrawal cooldown, and the cross-chain HYPE bridge.
func (s *runtimeState) newRateSwapCommand() *cobra.Command {
	root := &cobra.Command{Use: "rateswap", Short: "Fixed-rate order-book venue (rate-swap adapter)"}
	root.AddCommand(s.newRateSwapMarketsCommand())
	root.AddCommand(s.newRateSwapQuoteMarketCommand())
	root.AddCommand(s.newRateSwapQuoteFillCommand())
	root.AddCommand(s.newRateSwapUserStateCommand())
	root.AddCommand(s.newRateSwapPlaceOrderCommand())
	root.AddCommand(s.newRateSwapCancelOrderCommand())
	root.AddCommand(s.newRateSwapClosePositionCommand())
	root.AddCommand(s.newRateSwapSweepCommand())
	root.AddCommand(s.newRateSwapWithdrawRequestCommand())
	root.AddCommand(s.newRateSwapWithdrawFinalizeCommand())
	root.AddCommand(s.newRateSwapBridgeQuoteCommand())
	root.AddCommand(s.newRateSwapBridgeSendCommand())
	return root
}

func (s *runtimeState) runRateSwapCommand(cmd *cobra.Command, signerBackend, keySource string, fn func(context.Context, adapter.RateSwapAdapter) (any, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	start := time.Now()
	a, err := s.rateSwapAdapter(signerBackend, keySource)
	if err != nil {
		return err
	}
	data, err := fn(ctx, a)
	statuses := []model.ProviderStatus{{Name: rateSwapProviderName, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
	s.captureCommandDiagnostics(nil, statuses, false)
	if err != nil {
		return err
	}
	return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass(), statuses, false)
}

func (s *runtimeState) newRateSwapMarketsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "List every rate-swap market across every maturity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, "", "", func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.ListMarketsAll(ctx)
			})
		},
	}
	return cmd
}

func (s *runtimeState) newRateSwapQuoteMarketCommand() *cobra.Command {
	var marketID string
	cmd := &cobra.Command{
		Use:   "quote-market",
		Short: "Quote a market's current bid/ask/mid APR",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, "", "", func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				markets, err := a.ListMarketsAll(ctx)
				if err != nil {
					return nil, err
				}
				for _, m := range markets {
					if m.MarketID == marketID {
						return a.QuoteMarket(ctx, m)
					}
				}
				return nil, clierr.New(clierr.CodeUsage, "unknown market id: "+marketID)
			})
		},
	}
	cmd.Flags().StringVar(&marketID, "market-id", "", "Market identifier")
	_ = cmd.MarkFlagRequired("market-id")
	return cmd
}

func (s *runtimeState) newRateSwapQuoteFillCommand() *cobra.Command {
	var marketID, side, size string
	cmd := &cobra.Command{
		Use:   "quote-fill",
		Short: "Quote the book-depth fill price for a given size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orderSide, err := parseOrderSide(side)
			if err != nil {
				return err
			}
			sizeAmount, err := parseBigIntArg("--size", size)
			if err != nil {
				return err
			}
			return s.runRateSwapCommand(cmd, "", "", func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.QuoteFill(ctx, adapter.RateSwapQuoteRequest{MarketID: marketID, Side: orderSide, Size: sizeAmount})
			})
		},
	}
	cmd.Flags().StringVar(&marketID, "market-id", "", "Market identifier")
	cmd.Flags().StringVar(&side, "side", "", "Order side (long|short)")
	cmd.Flags().StringVar(&size, "size", "", "Fill size in base units")
	_ = cmd.MarkFlagRequired("market-id")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func (s *runtimeState) newRateSwapUserStateCommand() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "user-state",
		Short: "Fetch an account's rate-swap positions, balances, and queued withdrawals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, "", "", func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.GetFullUserState(ctx, account)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func (s *runtimeState) newRateSwapPlaceOrderCommand() *cobra.Command {
	var marketID, account, side, size string
	var limitTick int64
	var useLimitTick bool
	var signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "place-order",
		Short: "Place a limit order, picking a fill tick from book depth when --limit-tick is omitted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orderSide, err := parseOrderSide(side)
			if err != nil {
				return err
			}
			sizeAmount, err := parseBigIntArg("--size", size)
			if err != nil {
				return err
			}
			var tickPtr *int64
			if useLimitTick {
				tickPtr = &limitTick
			}
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.PlaceOrder(ctx, adapter.PlaceOrderRequest{
					MarketID: marketID, Account: account, Side: orderSide, Size: sizeAmount, LimitTick: tickPtr,
				})
			})
		},
	}
	cmd.Flags().StringVar(&marketID, "market-id", "", "Market identifier")
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&side, "side", "", "Order side (long|short)")
	cmd.Flags().StringVar(&size, "size", "", "Order size in base units")
	cmd.Flags().Int64Var(&limitTick, "limit-tick", 0, "Explicit limit tick (omit to derive one from book depth)")
	cmd.Flags().BoolVar(&useLimitTick, "use-limit-tick", false, "Pin --limit-tick instead of deriving one from the book")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("market-id")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func (s *runtimeState) newRateSwapCancelOrderCommand() *cobra.Command {
	var account, orderID, signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "cancel-order",
		Short: "Cancel a resting order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.CancelOrder(ctx, account, orderID)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&orderID, "order-id", "", "Order identifier")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("order-id")
	return cmd
}

func (s *runtimeState) newRateSwapClosePositionCommand() *cobra.Command {
	var account, marketID, signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "close-position",
		Short: "Fully unwind an active position at current market price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.ClosePosition(ctx, account, marketID)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&marketID, "market-id", "", "Market identifier")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("market-id")
	return cmd
}

func (s *runtimeState) newRateSwapSweepCommand() *cobra.Command {
	var account, tokenID, marketID, signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep an isolated-margin position into the cross-margin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.SweepIsolatedToCross(ctx, account, tokenID, marketID)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&tokenID, "token-id", "", "Collateral token id")
	cmd.Flags().StringVar(&marketID, "market-id", "", "Isolated market identifier")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("token-id")
	_ = cmd.MarkFlagRequired("market-id")
	return cmd
}

func (s *runtimeState) newRateSwapWithdrawRequestCommand() *cobra.Command {
	var account, underlying, amount, signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "withdraw-request",
		Short: "Start the cooldown-gated withdrawal's first phase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amountValue, err := parseBigIntArg("--amount", amount)
			if err != nil {
				return err
			}
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.RequestWithdrawal(ctx, account, underlying, amountValue)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&underlying, "underlying", "", "Underlying asset")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in base units")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("underlying")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newRateSwapWithdrawFinalizeCommand() *cobra.Command {
	var account, underlying, signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "withdraw-finalize",
		Short: "Complete a withdrawal once its cooldown has elapsed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.FinalizeWithdrawal(ctx, account, underlying)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account address")
	cmd.Flags().StringVar(&underlying, "underlying", "", "Underlying asset (or its numeric token id)")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("underlying")
	return cmd
}

func (s *runtimeState) newRateSwapBridgeQuoteCommand() *cobra.Command {
	var account, destChainID, amount string
	cmd := &cobra.Command{
		Use:   "bridge-quote",
		Short: "Quote the LayerZero OFT bridge fee toward destChainID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amountValue, err := parseBigIntArg("--amount", amount)
			if err != nil {
				return err
			}
			return s.runRateSwapCommand(cmd, "", "", func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.QuoteBridge(ctx, account, destChainID, amountValue)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Destination recipient address")
	cmd.Flags().StringVar(&destChainID, "dest-chain", "", "Destination chain identifier")
	cmd.Flags().StringVar(&amount, "amount", "", "Bridge amount in base units")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("dest-chain")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newRateSwapBridgeSendCommand() *cobra.Command {
	var account, destChainID, amount, signerBackend, keySource string
	cmd := &cobra.Command{
		Use:   "bridge-send",
		Short: "Execute the LayerZero OFT bridge send toward destChainID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amountValue, err := parseBigIntArg("--amount", amount)
			if err != nil {
				return err
			}
			return s.runRateSwapCommand(cmd, signerBackend, keySource, func(ctx context.Context, a adapter.RateSwapAdapter) (any, error) {
				return a.SendBridge(ctx, account, destChainID, amountValue)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Destination recipient address")
	cmd.Flags().StringVar(&destChainID, "dest-chain", "", "Destination chain identifier")
	cmd.Flags().StringVar(&amount, "amount", "", "Bridge amount in base units")
	cmd.Flags().StringVar(&signerBackend, "signer", "", "Signer backend override (local)")
	cmd.Flags().StringVar(&keySource, "key-source", execsigner.KeySourceAuto, "Key source override (auto|env|file|keystore)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("dest-chain")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
