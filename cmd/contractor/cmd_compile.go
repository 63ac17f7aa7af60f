package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
)

var (
	compileMode string
	compileTEAL bool
	compileJSON bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <file|->",
	Short: "Compile a program document to TEAL and bytecode",
	Long: `Validates the document, lowers it to TEAL and asks the node to assemble
it. Prints the program hash and size; --teal also prints the TEAL source.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileMode, "mode", "program", "Compile mode: program or signature")
	compileCmd.Flags().BoolVar(&compileTEAL, "teal", false, "Print the generated TEAL")
	compileCmd.Flags().BoolVar(&compileJSON, "json", false, "Print the artifacts as JSON")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	mode, err := teal.ParseMode(compileMode)
	if err != nil {
		return err
	}
	source, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer a.Close()

	artifacts := []*compiler.Artifact{}
	approval, err := a.compiler.Compile(ctx, source, mode)
	if err != nil {
		return err
	}
	artifacts = append(artifacts, approval)
	if mode == teal.ModeApplication {
		clearArt, err := a.compiler.CompileClear(ctx, source)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, clearArt)
	}

	out := cmd.OutOrStdout()
	if compileJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(artifacts)
	}
	for i, art := range artifacts {
		label := "approval"
		if i == 1 {
			label = "clear"
		}
		fmt.Fprintf(out, "%-8s  %s  %d bytes  (%s)\n", label, art.ContentHash, len(art.Bytecode), art.Mode)
		if compileTEAL {
			fmt.Fprintln(out, art.TEAL)
		}
	}
	return nil
}

// readSource reads a document from a file, or from stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
