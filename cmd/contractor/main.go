// Command contractor generates, compiles and deploys Algorand applications
// from natural-language descriptions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/config"
	"github.com/GIL794/algorand-ai-contract-creator/internal/logger"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	cfg     *config.Config
	log     *zap.Logger
	console zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "contractor",
	Short: "AI-assisted Algorand smart contract generator",
	Long: `contractor turns a plain-language description into a program document,
compiles it to TEAL through an Algorand node and, after explicit
confirmation, deploys it as an application.

Generated documents are data: they are decoded and lowered, never executed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logCfg := logger.Config{
			Level:      cfg.Log.Level,
			Encoding:   cfg.Log.Encoding,
			OutputPath: cfg.Log.OutputPath,
			Env:        cfg.Env,
			Network:    cfg.Algod.Network,
		}
		// Keep stdout for command output.
		if logCfg.OutputPath == "" && cmd.Name() != "serve" {
			logCfg.OutputPath = "stderr"
		}
		if verbose {
			logCfg.Level = "debug"
		}
		log, err = logger.New(logCfg)
		if err != nil {
			return err
		}
		console = logger.NewConsole(os.Stderr, verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall command timeout")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// commandContext applies the --timeout flag to the command context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
