package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

var (
	genProvider    string
	genModel       string
	genTemperature float64
	genRetries     int
	genSave        bool
	genJSON        bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Generate a program document from a description",
	Long: `Asks the configured provider for a program document, validating each
response and retrying with the previous failure reason until the attempt
budget is spent. The document is printed to stdout.

Example:
  contractor generate "A counter that anyone can increment" --save`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genProvider, "provider", "p", "", "Provider: openai, perplexity or ollama (default from config)")
	generateCmd.Flags().StringVarP(&genModel, "model", "m", "", "Model name (default from config)")
	generateCmd.Flags().Float64Var(&genTemperature, "temperature", -1, "Sampling temperature in [0, 1] (default from config)")
	generateCmd.Flags().IntVar(&genRetries, "retries", 0, "Maximum attempts (default from config)")
	generateCmd.Flags().BoolVar(&genSave, "save", false, "Save the document to the artifacts directory")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print the full generation result as JSON")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	req, err := generationRequest(strings.Join(args, " "))
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer a.Close()

	console.Info().Str("provider", string(req.Provider)).Int("max_attempts", req.MaxRetries).Msg("Generating contract")
	result := a.generator.Generate(ctx, req)

	if genJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}

	if !result.Succeeded() {
		for _, att := range result.Attempts {
			console.Warn().Int("attempt", att.Number).Str("kind", string(att.ErrorKind)).Msg(att.Error)
		}
		return fmt.Errorf("generation failed: %s", result.Error)
	}
	console.Info().
		Str("model", result.Metadata.Model).
		Int("attempts", result.Metadata.AttemptCount).
		Str("request_id", result.Metadata.RequestID).
		Msg("Contract generated")

	if !genJSON {
		printArtifact(cmd.OutOrStdout(), cmd.ErrOrStderr(), result.Artifact)
	}

	if genSave {
		path, err := a.artifacts.Save(req.Description, result.Artifact.SourceCode)
		if err != nil {
			return err
		}
		console.Info().Str("path", path).Msg("Saved")
	}
	return nil
}

func generationRequest(description string) (models.GenerationRequest, error) {
	p := models.Provider(cfg.AI.Provider)
	model := cfg.AI.Model
	if genProvider != "" {
		parsed, err := models.ParseProvider(genProvider)
		if err != nil {
			return models.GenerationRequest{}, err
		}
		if parsed != p {
			model = ""
		}
		p = parsed
	}
	if genModel != "" {
		model = genModel
	}
	temperature := cfg.AI.Temperature
	if genTemperature >= 0 {
		temperature = genTemperature
	}
	retries := cfg.AI.MaxRetries
	if genRetries > 0 {
		retries = genRetries
	}
	return models.NewGenerationRequest(description, p, model, temperature, retries)
}

// printArtifact writes the document to out and the prose sections to notes.
func printArtifact(out, notes io.Writer, art *models.ParsedArtifact) {
	fmt.Fprintln(out, strings.TrimRight(art.SourceCode, "\n"))
	for _, section := range []struct{ title, body string }{
		{"Explanation", art.Explanation},
		{"Deployment notes", art.DeploymentNotes},
		{"Audit notes", art.AuditNotes},
	} {
		if strings.TrimSpace(section.body) == "" {
			continue
		}
		fmt.Fprintf(notes, "\n## %s\n%s\n", section.title, strings.TrimSpace(section.body))
	}
}
