package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarvislabs/jarvis/internal/config"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect the configured agent pool",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentInfoCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			for _, a := range cfg.Agents.List {
				fmt.Printf("  %-28s %-22s role=%-10s %s/%s\n",
					a.ID, a.Name, a.Role, a.Provider, a.Model)
			}
			return nil
		},
	}
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <agent-id>",
		Short: "Show details about an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			for _, a := range cfg.Agents.List {
				if a.ID != args[0] {
					continue
				}

				fmt.Printf("Agent: %s (%s)\n", a.ID, a.Name)
				fmt.Printf("  Role:      %s\n", a.Role)
				fmt.Printf("  Provider:  %s\n", a.Provider)
				fmt.Printf("  Model:     %s\n", a.Model)
				maxTokens := a.MaxTokens
				if maxTokens == 0 {
					maxTokens = cfg.Agents.Defaults.MaxTokens
				}
				fmt.Printf("  MaxTokens: %d\n", maxTokens)
				temp := a.Temperature
				if temp == nil {
					temp = cfg.Agents.Defaults.Temperature
				}
				if temp != nil {
					fmt.Printf("  Temp:      %.2f\n", *temp)
				}
				if len(a.Tools) > 0 {
					fmt.Printf("  Tools:     %s\n", strings.Join(a.Tools, ", "))
				}
				if a.SystemPrompt != "" {
					fmt.Printf("  Prompt:    %s\n", a.SystemPrompt)
				}
				return nil
			}

			return fmt.Errorf("agent not found: %s", args[0])
		},
	}
}
