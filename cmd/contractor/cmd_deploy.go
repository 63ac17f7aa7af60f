package main

import (
	"bufio"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/deployer"
	"github.com/GIL794/algorand-ai-contract-creator/internal/keystore"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
)

var (
	deployKeystore      string
	deployMnemonicStdin bool
	deploySchema        string
	deployYes           bool
	deployNote          string
)

var deployCmd = &cobra.Command{
	Use:   "deploy <file|->",
	Short: "Compile a program document and deploy it as an application",
	Long: `Compiles the document, shows the program hashes, the sender and the
state schemas, and asks for confirmation before signing and submitting one
application-create transaction. Nothing is resubmitted automatically: on a
timeout, check the printed transaction id before trying again.

The signing key comes from the encrypted keystore, or from a mnemonic read
on stdin with --mnemonic-stdin. It is wiped from memory after the call.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&deployKeystore, "keystore", "", "Keystore file (default from config)")
	deployCmd.Flags().BoolVar(&deployMnemonicStdin, "mnemonic-stdin", false, "Read the signing mnemonic from the first line of stdin")
	deployCmd.Flags().StringVar(&deploySchema, "schema", "", "Schema profile: default or extended (document hints when unset)")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "Skip the confirmation prompt")
	deployCmd.Flags().StringVar(&deployNote, "note", "", "Transaction note")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if args[0] == "-" && deployMnemonicStdin {
		return errors.New("cannot read both the document and the mnemonic from stdin")
	}
	source, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}
	stdin := bufio.NewReader(cmd.InOrStdin())

	a, err := newApp(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer a.Close()

	approval, err := a.compiler.Compile(ctx, source, teal.ModeApplication)
	if err != nil {
		return err
	}
	clearArt, err := a.compiler.CompileClear(ctx, source)
	if err != nil {
		return err
	}
	global, local, err := resolveSchemas(approval, deploySchema, cmd.Flags().Changed("schema"))
	if err != nil {
		return err
	}

	key, err := signingKey(stdin)
	if err != nil {
		return err
	}
	defer keystore.Wipe(key)
	sender, err := keystore.Address(key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Network:        %s (%s)\n", cfg.Algod.Network, cfg.Algod.Address)
	fmt.Fprintf(out, "Sender:         %s\n", sender)
	fmt.Fprintf(out, "Approval:       %s (%d bytes)\n", approval.ContentHash, len(approval.Bytecode))
	fmt.Fprintf(out, "Clear:          %s (%d bytes)\n", clearArt.ContentHash, len(clearArt.Bytecode))
	fmt.Fprintf(out, "Global schema:  %d uints, %d byte slices\n", global.NumUints, global.NumByteSlices)
	fmt.Fprintf(out, "Local schema:   %d uints, %d byte slices\n", local.NumUints, local.NumByteSlices)

	if !deployYes {
		confirmed, err := confirm(out, stdin, "Deploy this application?")
		if err != nil {
			return err
		}
		if !confirmed {
			console.Warn().Msg("Deployment cancelled")
			return nil
		}
	}

	console.Info().Msg("Submitting application create transaction")
	record, err := a.deployer.Deploy(ctx, deployer.Request{
		Approval:     approval,
		Clear:        clearArt,
		Key:          key,
		GlobalSchema: global,
		LocalSchema:  local,
		Note:         []byte(deployNote),
	})
	if err != nil {
		var de *deployer.Error
		if errors.As(err, &de) && de.TxID != "" {
			explorer := ledger.Explorer{BaseURL: cfg.Algod.ExplorerURL}
			console.Error().Str("tx_id", de.TxID).Str("explorer", explorer.TransactionURL(de.TxID)).
				Msg("Transaction outcome unknown or rejected; check it before resubmitting")
		}
		return err
	}

	fmt.Fprintf(out, "\nApplication ID: %d\n", record.ProgramID)
	fmt.Fprintf(out, "Address:        %s\n", record.ProgramAddress)
	fmt.Fprintf(out, "Transaction:    %s (round %d)\n", record.TransactionID, record.ConfirmedRound)
	if record.ExplorerURL != "" {
		fmt.Fprintf(out, "Explorer:       %s\n", record.ExplorerURL)
	}
	return nil
}

// resolveSchemas prefers an explicit profile, then the document's hints,
// then the configured profile. A missing hint falls back to the profile.
func resolveSchemas(approval *compiler.Artifact, profile string, explicit bool) (models.StateSchema, models.StateSchema, error) {
	if explicit {
		return cfg.Schema.Resolve(profile)
	}
	global, local, err := cfg.Schema.Resolve(cfg.Schema.Profile)
	if err != nil {
		return global, local, err
	}
	if approval.GlobalSchema != nil {
		global = *approval.GlobalSchema
	}
	if approval.LocalSchema != nil {
		local = *approval.LocalSchema
	}
	return global, local, nil
}

func signingKey(stdin *bufio.Reader) (ed25519.PrivateKey, error) {
	if deployMnemonicStdin {
		line, err := stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read mnemonic: %w", err)
		}
		return keystore.FromMnemonic(line)
	}

	path := deployKeystore
	if path == "" {
		path = cfg.Keystore.Path
	}
	passphrase, err := keystorePassphrase("Keystore passphrase: ")
	if err != nil {
		return nil, err
	}
	defer wipeBytes(passphrase)
	return keystore.Load(path, passphrase)
}

// keystorePassphrase returns the configured passphrase or prompts for it on
// the terminal without echo.
func keystorePassphrase(prompt string) ([]byte, error) {
	if cfg.Keystore.Passphrase != "" {
		return []byte(cfg.Keystore.Passphrase), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no keystore passphrase: set KEYSTORE_PASSPHRASE or run from a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

func confirm(out io.Writer, in *bufio.Reader, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
