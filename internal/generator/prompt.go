package generator

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompts/system.md
var defaultSystemPrompt string

// DefaultSystemPrompt describes the program document format to the model.
func DefaultSystemPrompt() string { return defaultSystemPrompt }

const previousErrorHeader = "PREVIOUS ATTEMPT FAILED WITH ERROR:"

// BuildUserPrompt embeds previousError verbatim when it is non-empty.
func BuildUserPrompt(description, previousError string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate an Algorand smart contract program document for the following requirement:\n\n%s\n\n", description)
	b.WriteString("Ensure the contract is production-ready and follows all security guidelines.")
	if previousError != "" {
		fmt.Fprintf(&b, "\n\n%s\n%s\n", previousErrorHeader, previousError)
	}
	return b.String()
}

const explainSystemPrompt = "You are an expert at explaining blockchain smart contracts in simple terms. " +
	"Provide a clear, non-technical summary suitable for business stakeholders."

func buildExplainPrompt(source string) string {
	return fmt.Sprintf("Explain this Algorand smart contract:\n\n%s\n\nInclude: purpose, key operations, user interactions, and risks.", source)
}
