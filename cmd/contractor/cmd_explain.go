package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

var (
	explainProvider string
	explainModel    string
)

var explainCmd = &cobra.Command{
	Use:   "explain <file|->",
	Short: "Explain a program document in plain language",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	explainCmd.Flags().StringVarP(&explainProvider, "provider", "p", "", "Provider (default from config)")
	explainCmd.Flags().StringVarP(&explainModel, "model", "m", "", "Model (default from config)")
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	source, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}

	p, model := models.Provider(cfg.AI.Provider), cfg.AI.Model
	if explainProvider != "" {
		parsed, err := models.ParseProvider(explainProvider)
		if err != nil {
			return err
		}
		if parsed != p {
			model = ""
		}
		p = parsed
	}
	if explainModel != "" {
		model = explainModel
	}

	a, err := newApp(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer a.Close()

	text, err := a.generator.Explain(ctx, p, model, source)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
