package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rangeKeeper/internal/chain"
	"rangeKeeper/internal/config"
	"rangeKeeper/internal/position"
)

func main() {
	root := &cobra.Command{
		Use:          "keeper",
		Short:        "Off-chain keeper for concentrated liquidity positions",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "chain RPC URL")
	root.PersistentFlags().String("position-manager", "", "position manager contract address")
	root.PersistentFlags().String("state-view", "", "state view contract address")
	root.PersistentFlags().String("private-key", "", "signing key hex (or KEEPER_PRIVATE_KEY)")
	root.PersistentFlags().Int("max-retries", 3, "maximum read retry attempts")
	root.PersistentFlags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	root.PersistentFlags().Duration("call-timeout", 30*time.Second, "per-call RPC timeout")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newStatusCmd())
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newRebalanceCmd())
	root.AddCommand(newCompoundCmd())
	root.AddCommand(newVanityCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime bundles everything a chain-facing subcommand needs.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	client *chain.Client
	reader *position.StateReader

	positionManager common.Address
	stateView       common.Address
}

func newRuntime(ctx context.Context, cmd *cobra.Command, needSigner bool) (*runtime, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var signer *chain.Signer
	if cfg.PrivateKey != "" {
		signer, err = chain.NewSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
	}
	if needSigner && signer == nil {
		return nil, fmt.Errorf("private key is required (set KEEPER_PRIVATE_KEY or --private-key)")
	}

	client, err := chain.NewClient(ctx, chain.ClientConfig{
		RPCURL:       cfg.RPCURL,
		CallTimeout:  cfg.CallTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, signer, logger)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	positionManager := common.HexToAddress(cfg.PositionManager)
	stateView := common.HexToAddress(cfg.StateView)
	reader := position.NewStateReader(client, positionManager, stateView, logger)

	return &runtime{
		cfg:             cfg,
		logger:          logger,
		client:          client,
		reader:          reader,
		positionManager: positionManager,
		stateView:       stateView,
	}, nil
}

func (rt *runtime) close() {
	rt.client.Close()
	rt.logger.Sync()
}

// owner is the account positions belong to: the recipient override when
// set, otherwise the signing account.
func (rt *runtime) owner() (common.Address, error) {
	if rt.cfg.Recipient != "" {
		return common.HexToAddress(rt.cfg.Recipient), nil
	}
	addr := rt.client.SignerAddress()
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("recipient is required without a signing key")
	}
	return addr, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parsePositionIDs accepts decimal or 0x-hex token ids.
func parsePositionIDs(raw []string) ([]*big.Int, error) {
	ids := make([]*big.Int, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		base := 10
		digits := item
		if strings.HasPrefix(item, "0x") || strings.HasPrefix(item, "0X") {
			base = 16
			digits = item[2:]
		}
		id, ok := new(big.Int).SetString(digits, base)
		if !ok || id.Sign() < 0 {
			return nil, fmt.Errorf("invalid position id %q", item)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one position id is required")
	}
	return ids, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
