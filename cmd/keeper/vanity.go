package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"rangeKeeper/internal/vanity"
)

func newVanityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vanity",
		Short: "Search a CREATE2 salt for a vanity contract address",
		RunE:  runVanity,
	}
	cmd.Flags().String("deployer", "", "CREATE2 factory address")
	cmd.Flags().String("init-code-hash", "", "keccak256 of the deployment bytecode")
	cmd.Flags().String("suffix", "", "wanted hex suffix of the address")
	cmd.Flags().Uint64("max-attempts", 0, "attempt bound, 0 for the default")
	return cmd
}

// runVanity is purely local: no RPC, no signer.
func runVanity(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	deployer, _ := cmd.Flags().GetString("deployer")
	initCodeHash, _ := cmd.Flags().GetString("init-code-hash")
	suffix, _ := cmd.Flags().GetString("suffix")
	maxAttempts, _ := cmd.Flags().GetUint64("max-attempts")

	if !common.IsHexAddress(deployer) {
		return fmt.Errorf("deployer must be a hex address")
	}

	res, err := vanity.Search(ctx, vanity.Params{
		Deployer:     common.HexToAddress(deployer),
		InitCodeHash: common.HexToHash(initCodeHash),
		Suffix:       suffix,
		MaxAttempts:  maxAttempts,
	})
	if err != nil {
		return err
	}

	fmt.Printf("salt     %s\n", res.Salt.Hex())
	fmt.Printf("address  %s\n", res.Address.Hex())
	fmt.Printf("attempts %d\n", res.Attempts)
	return nil
}
