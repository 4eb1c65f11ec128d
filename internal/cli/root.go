// Package cli implements the jarvis command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/logging"
)

var (
	homeDir  string
	cfgFile  string
	logLevel string
	logJSON  bool

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jarvis",
		Short: "Jarvis multi-agent AI assistant platform",
		Long:  "Jarvis runs a pool of LLM-backed agents behind a WebSocket gateway, with cost tracking, a sandboxed tool workbench, retrieval, and voice.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if homeDir != "" {
				paths = config.PathsForBase(homeDir)
			} else if paths, err = config.ResolvePaths(); err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			style := "pretty"
			if logJSON {
				style = "json"
			}
			log = logging.NewStyled(level, style)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&homeDir, "home", "", "base directory (default ~/.jarvis, or JARVIS_HOME)")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.jarvis/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newAgentCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
