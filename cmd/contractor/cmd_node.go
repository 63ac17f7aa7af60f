package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Inspect the configured Algorand node",
}

var nodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the node is reachable and print its last round",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		node, err := ledger.NewClient(ledger.Config{Address: cfg.Algod.Address, Token: cfg.Algod.Token, Timeout: cfg.Algod.Timeout}, log)
		if err != nil {
			return err
		}
		round, err := node.Ping(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): last round %d\n", cfg.Algod.Network, cfg.Algod.Address, round)
		return nil
	},
}

func init() {
	nodeCmd.AddCommand(nodeStatusCmd)
}
