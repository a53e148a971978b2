package prompt

import (
	"strings"

	"inkwell-ai/internal/domain"
)

// overviewFallbackRunes caps how much skill content stands in for a missing
// overview. Fixed so the same skill always yields the same prompt bytes.
const overviewFallbackRunes = 500

// Selection is the document excerpt the user is working on.
type Selection struct {
	DocumentName string
	Text         string
}

// Context carries optional document state into the prompt.
type Context struct {
	Selection *Selection
}

// Builder renders skills into system prompts. Build is pure: the same skill
// and context always produce byte-identical output.
type Builder struct{}

// NewBuilder creates a prompt builder.
func NewBuilder() *Builder { return &Builder{} }

// Build renders the system prompt for a skill execution.
func (b *Builder) Build(skill domain.Skill, pctx Context) string {
	var sb strings.Builder

	sb.WriteString("You are a writing assistant executing the skill ")
	sb.WriteString(strings.TrimSpace(skill.Name))
	sb.WriteString(".\n\n")

	if desc := strings.TrimSpace(skill.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}

	overview := strings.TrimSpace(skill.Overview)
	if overview == "" {
		overview = truncateRunes(strings.TrimSpace(skill.Content), overviewFallbackRunes)
	}
	if overview != "" {
		sb.WriteString(overview)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Instructions\n\n")
	sb.WriteString(strings.TrimSpace(skill.Content))
	sb.WriteString("\n")

	if pctx.Selection != nil && pctx.Selection.Text != "" {
		sb.WriteString("\n## Document context\n\n")
		if pctx.Selection.DocumentName != "" {
			sb.WriteString("Document: ")
			sb.WriteString(pctx.Selection.DocumentName)
			sb.WriteString("\n")
		}
		sb.WriteString("<selection>\n")
		sb.WriteString(pctx.Selection.Text)
		sb.WriteString("\n</selection>\n")
	}

	return sb.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
