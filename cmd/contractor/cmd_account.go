package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GIL794/algorand-ai-contract-creator/internal/keystore"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
)

var (
	accountKeystore     string
	accountShowMnemonic bool
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage test accounts",
}

var accountNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a test account and store its key encrypted",
	Long: `Generates a key pair, encrypts it into the keystore file and prints the
address with a faucet link for funding it on testnet. The mnemonic is only
printed with --show-mnemonic.`,
	Args: cobra.NoArgs,
	RunE: runAccountNew,
}

var accountBalanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show an account balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountBalance,
}

func init() {
	accountNewCmd.Flags().StringVar(&accountKeystore, "keystore", "", "Keystore file to create (default from config)")
	accountNewCmd.Flags().BoolVar(&accountShowMnemonic, "show-mnemonic", false, "Also print the 25-word mnemonic")

	accountCmd.AddCommand(accountNewCmd)
	accountCmd.AddCommand(accountBalanceCmd)
}

func runAccountNew(cmd *cobra.Command, args []string) error {
	path := accountKeystore
	if path == "" {
		path = cfg.Keystore.Path
	}

	acct, key, err := keystore.NewAccount(cfg.Algod.FaucetURL)
	if err != nil {
		return err
	}
	defer keystore.Wipe(key)

	passphrase, err := keystorePassphrase("New keystore passphrase: ")
	if err != nil {
		return err
	}
	defer wipeBytes(passphrase)

	if _, err := keystore.Save(path, key, passphrase); err != nil {
		return err
	}
	console.Info().Str("path", path).Msg("Key stored")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Address:  %s\n", acct.Address)
	if acct.FaucetURL != "" {
		fmt.Fprintf(out, "Fund it:  %s\n", acct.FaucetURL)
	}
	if accountShowMnemonic {
		fmt.Fprintf(out, "Mnemonic: %s\n", acct.Mnemonic)
	}
	return nil
}

func runAccountBalance(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	node, err := ledger.NewClient(ledger.Config{Address: cfg.Algod.Address, Token: cfg.Algod.Token, Timeout: cfg.Algod.Timeout}, log)
	if err != nil {
		return err
	}
	micro, err := node.AccountBalance(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s ALGO (%d microAlgos)\n", ledger.MicroAlgosToAlgos(micro), micro)
	return nil
}
