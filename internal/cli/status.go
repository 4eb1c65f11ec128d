package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Jarvis status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Jarvis %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Tools:   %s\n", paths.Tools)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			auth := "none"
			if cfg.Gateway.Auth.Token != "" {
				auth = "token"
			}
			fmt.Printf("Gateway: port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, auth)

			// Providers
			var providers []string
			if cfg.Providers.OpenRouter.BaseURL != "" {
				providers = append(providers, "openrouter")
			}
			if cfg.Providers.Ollama.BaseURL != "" {
				providers = append(providers, "ollama")
			}
			fmt.Printf("LLM:     %s\n", strings.Join(providers, ", "))

			// Agents
			for _, a := range cfg.Agents.List {
				fmt.Printf("Agent:   id=%s role=%s provider=%s model=%s\n",
					a.ID, a.Role, a.Provider, a.Model)
			}

			fmt.Printf("Budget:  scope=%s limit=$%.2f\n", cfg.Budget.Scope, cfg.Budget.DefaultLimit)
			fmt.Printf("Tools:   sandbox=%s threshold=%d autoInstall=%d\n",
				cfg.Tools.SandboxMode, cfg.Tools.SafetyThreshold, len(cfg.Tools.AutoInstall))

			if cfg.Retrieval.Enabled {
				source := cfg.Retrieval.ServiceURL
				if source == "" {
					source = "local"
				}
				fmt.Printf("RAG:     source=%s limit=%d threshold=%.2f\n",
					source, cfg.Retrieval.Limit, cfg.Retrieval.ScoreThreshold)
			} else {
				fmt.Println("RAG:     (disabled)")
			}

			if cfg.Voice.Enabled {
				fmt.Printf("Voice:   service=%s voice=%s\n", cfg.Voice.ServiceURL, cfg.Voice.DefaultVoice)
			} else {
				fmt.Println("Voice:   (disabled)")
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
