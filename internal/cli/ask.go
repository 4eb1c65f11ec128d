package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jarvislabs/jarvis/internal/agent"
	"github.com/jarvislabs/jarvis/internal/config"
	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
	"github.com/jarvislabs/jarvis/internal/hooks"
	"github.com/jarvislabs/jarvis/internal/llm"
	"github.com/jarvislabs/jarvis/internal/orchestrator"
)

func newAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask [task]",
		Short: "Run one task through the agent pool and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			registry := llm.NewRegistryFromConfig(cfg.Providers, cfg.Agents.List, log)
			pool := agent.NewPool(cfg.Agents.List, registry, agent.NewToolRegistry(), log)
			ledger := costledger.NewLedger(costledger.Options{
				DefaultLimit: domain.MoneyFromFloat(cfg.Budget.DefaultLimit),
				Thresholds:   cfg.Budget.Thresholds,
			}, log)

			orch := orchestrator.New(orchestrator.Options{
				Config: &cfg,
				Pool:   pool,
				Ledger: ledger,
				Hooks:  hooks.NewManager(log),
				Log:    log,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := orch.Initialize(ctx); err != nil {
				return err
			}
			defer orch.Shutdown(context.Background())

			outcome, err := orch.ProcessTask(ctx, sessionID, task)
			if err != nil {
				return err
			}

			res := outcome.Result
			if !res.Success {
				return fmt.Errorf("task failed: %s", res.Error)
			}

			fmt.Println(res.Result)
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[agent=%s model=%s tokens=%d cost=%s]\n",
				res.AgentID, res.Model, res.TokensUsed, res.Cost)
			for _, alert := range outcome.Alerts {
				fmt.Fprintf(cmd.ErrOrStderr(), "budget alert (%s): %s\n", alert.Tier, alert.Message)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "cli", "session id for cost accounting")

	return cmd
}
