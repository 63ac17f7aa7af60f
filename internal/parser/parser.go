// Package parser turns free-form model output into a ParsedArtifact.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

type section int

const (
	sectionNone section = iota
	sectionSource
	sectionExplanation
	sectionDeployment
	sectionAudit
)

const fenceMarker = "```"

// Parse never fails. Text without any heading or fenced block is returned
// as SourceCode unchanged.
func Parse(raw string) models.ParsedArtifact {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), len(raw)+1)

	var (
		current    = sectionNone
		structured bool
		inFence    bool
		fenced     strings.Builder
		firstFence string
		haveFence  bool
		sections   = map[section]*strings.Builder{}
	)

	appendLine := func(s section, line string) {
		if s == sectionNone {
			return
		}
		b, ok := sections[s]
		if !ok {
			b = &strings.Builder{}
			sections[s] = b
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	closeFence := func() {
		inFence = false
		if !haveFence {
			firstFence = fenced.String()
			haveFence = true
			return
		}
		// Later blocks belong to whatever section they appear in.
		if current != sectionSource {
			appendLine(current, strings.TrimRight(fenced.String(), "\n"))
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, fenceMarker) {
				closeFence()
				continue
			}
			fenced.WriteString(line)
			fenced.WriteByte('\n')
			continue
		}

		if strings.HasPrefix(trimmed, fenceMarker) {
			structured = true
			inFence = true
			fenced.Reset()
			continue
		}

		if s, rest, ok := heading(line); ok {
			structured = true
			current = s
			if rest != "" {
				appendLine(current, rest)
			}
			continue
		}

		appendLine(current, line)
	}
	if inFence {
		closeFence()
	}

	if !structured {
		return models.ParsedArtifact{SourceCode: raw}
	}

	text := func(s section) string {
		if b, ok := sections[s]; ok {
			return strings.TrimSpace(b.String())
		}
		return ""
	}

	source := text(sectionSource)
	if haveFence {
		source = strings.TrimRight(firstFence, "\n")
	}

	return models.ParsedArtifact{
		SourceCode:      source,
		Explanation:     text(sectionExplanation),
		DeploymentNotes: text(sectionDeployment),
		AuditNotes:      text(sectionAudit),
	}
}

var (
	numbering = regexp.MustCompile(`^\d+[.)]\s*`)
	titleText = regexp.MustCompile(`^[A-Za-z][A-Za-z &/()-]*$`)
)

// heading recognises "## Title", "**Title**", "1. Title:" and "Title: text"
// lines whose title names one of the known sections. Indented lines and
// identifiers such as approval_program are never headings.
func heading(line string) (section, string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return sectionNone, "", false
	}

	marked := false
	t := line
	if strings.HasPrefix(t, "#") {
		marked = true
		t = strings.TrimLeft(t, "#")
	}
	t = numbering.ReplaceAllString(strings.TrimSpace(t), "")
	if strings.HasPrefix(t, "**") || strings.HasPrefix(t, "__") {
		marked = true
	}
	t = strings.Trim(t, "*_ ")

	title, rest := t, ""
	if i := strings.Index(t, ":"); i >= 0 {
		title = strings.Trim(t[:i], "*_ ")
		rest = strings.TrimSpace(strings.Trim(t[i+1:], "*_ "))
		marked = true
	}
	if !marked || len(title) > 40 || !titleText.MatchString(title) {
		return sectionNone, "", false
	}

	s := classify(strings.ToLower(title))
	if s == sectionNone {
		return sectionNone, "", false
	}
	return s, rest, true
}

func classify(title string) section {
	switch {
	case strings.Contains(title, "audit"), strings.Contains(title, "security"):
		return sectionAudit
	case strings.Contains(title, "deploy"):
		return sectionDeployment
	case strings.Contains(title, "explanation"), strings.Contains(title, "explain"),
		strings.Contains(title, "summary"), strings.HasPrefix(title, "how it works"),
		strings.HasPrefix(title, "purpose"), strings.HasPrefix(title, "logic"):
		return sectionExplanation
	}
	for _, prefix := range []string{"code", "source", "program", "contract code", "smart contract", "generated code", "generated contract"} {
		if strings.HasPrefix(title, prefix) {
			return sectionSource
		}
	}
	return sectionNone
}
