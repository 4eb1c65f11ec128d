package agent

import (
	"fmt"
	"strings"
	"time"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName    string
	AgentID      string
	Role         string
	Model        string
	Tools        []ToolDef
	ContextBlock string
	ExtraPrompt  string
}

// BuildSystemPrompt constructs the system prompt for the LLM.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	// Identity
	if cfg.AgentName != "" {
		fmt.Fprintf(&b, "You are %s", cfg.AgentName)
		if cfg.Role != "" {
			fmt.Fprintf(&b, ", the team's %s", cfg.Role)
		}
		b.WriteString(".\n")
	}

	// Date context
	b.WriteString(fmt.Sprintf("Current date: %s\n", time.Now().Format("2006-01-02")))

	b.WriteString("\n")

	// Guidelines
	b.WriteString("Guidelines:\n")
	b.WriteString("- When using tools, explain what you're doing.\n")

	// Tool definitions
	if len(cfg.Tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("You can call tools by outputting a fenced code block with the language tag `tool_call`:\n\n")
		b.WriteString("```tool_call\n{\"tool\": \"tool_name\", \"input\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("After a tool is executed, the result will be provided and you give your final response.\n\n")
		for _, t := range cfg.Tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.InputSchema)
			}
			b.WriteString("\n")
		}
	}

	// Retrieved context
	if cfg.ContextBlock != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ContextBlock)
		b.WriteString("\n")
	}

	// Extra/custom prompt
	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}
